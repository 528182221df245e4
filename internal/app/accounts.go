package app

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"educraft/pkg/auth"
	"educraft/pkg/domain"
	"educraft/pkg/store"
)

// Field bounds mirror the persistent schema's column widths so both
// backends accept exactly the same inputs.
const maxUsernameLen = 30

// RegisterInput is the self-service signup payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
	Profile  domain.Profile
}

// Register creates an account and returns it with a signed token.
// The password is hashed before the store is touched, so the duplicate
// check and insert happen without bcrypt inside any lock.
func (a *App) Register(in RegisterInput) (domain.Account, string, error) {
	username := strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(username); n < 3 || n > maxUsernameLen {
		return domain.Account{}, "", validationf("username must be 3 to %d characters", maxUsernameLen)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Account{}, "", validationf("invalid email address")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.Account{}, "", validationf("%s", err.Error())
	}

	role := domain.RoleTeacher
	if in.Role != "" {
		parsed, ok := domain.ParseAccountRole(in.Role)
		if !ok {
			return domain.Account{}, "", validationf("unknown role %q", in.Role)
		}
		// Admin accounts are provisioned, never self-registered.
		if parsed == domain.RoleAdmin {
			return domain.Account{}, "", validationf("role %q cannot be self-assigned", in.Role)
		}
		role = parsed
	}

	// Existence check before spending bcrypt on a doomed insert.
	// CreateAccount still enforces uniqueness under its own lock, so a
	// racing signup that slips past this check fails there.
	taken, err := a.store.HasAccount(username, email)
	if err != nil {
		return domain.Account{}, "", err
	}
	if taken {
		return domain.Account{}, "", validationf("%s", store.ErrDuplicateAccount.Error())
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Account{}, "", err
	}

	account, err := a.store.CreateAccount(domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Profile:      in.Profile,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			return domain.Account{}, "", validationf("%s", err.Error())
		}
		return domain.Account{}, "", err
	}

	tok, err := a.tokens.Issue(account.ID)
	if err != nil {
		return domain.Account{}, "", err
	}
	a.log.Info("account registered", "account_id", account.ID, "role", account.Role)
	return account, tok, nil
}

// Login verifies credentials and returns the account with a fresh token.
func (a *App) Login(email, password string) (domain.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	account, ok, err := a.store.GetAccountByEmail(email)
	if err != nil {
		return domain.Account{}, "", err
	}
	if !ok || !auth.CheckPassword(password, account.PasswordHash) {
		return domain.Account{}, "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if updated, found, err := a.store.UpdateAccount(account.ID, store.AccountUpdate{LastLoginAt: &now}); err == nil && found {
		account = updated
	} else if err != nil {
		// Login still succeeds when the stamp cannot be written.
		a.log.Warn("last login stamp failed", "account_id", account.ID, "error", err)
	}

	tok, err := a.tokens.Issue(account.ID)
	if err != nil {
		return domain.Account{}, "", err
	}
	return account, tok, nil
}

// GetAccount returns an account by id.
func (a *App) GetAccount(id string) (domain.Account, error) {
	account, ok, err := a.store.GetAccountByID(id)
	if err != nil {
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return account, nil
}

// UpdateProfile replaces the caller's profile.
func (a *App) UpdateProfile(accountID string, profile domain.Profile) (domain.Account, error) {
	account, ok, err := a.store.UpdateAccount(accountID, store.AccountUpdate{Profile: &profile})
	if err != nil {
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return account, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (a *App) ChangePassword(accountID, current, next string) error {
	account, ok, err := a.store.GetAccountByID(accountID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if !auth.CheckPassword(current, account.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := auth.ValidatePassword(next); err != nil {
		return validationf("%s", err.Error())
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	_, _, err = a.store.UpdateAccount(accountID, store.AccountUpdate{PasswordHash: &hash})
	return err
}

// AccountPage is one page of accounts with the total count.
type AccountPage struct {
	Items []domain.Account
	Total int64
}

// ListAccounts returns a page of accounts. Admin only.
func (a *App) ListAccounts(viewer domain.Account, skip, limit int) (AccountPage, error) {
	if viewer.Role != domain.RoleAdmin {
		return AccountPage{}, ErrForbidden
	}
	var page AccountPage
	var g errgroup.Group
	g.Go(func() error {
		items, err := a.store.ListAccounts(skip, limit)
		page.Items = items
		return err
	})
	g.Go(func() error {
		total, err := a.store.CountAccounts()
		page.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return AccountPage{}, err
	}
	return page, nil
}

// SetAccountRole changes another account's role. Admin only.
func (a *App) SetAccountRole(viewer domain.Account, accountID, role string) (domain.Account, error) {
	if viewer.Role != domain.RoleAdmin {
		return domain.Account{}, ErrForbidden
	}
	parsed, ok := domain.ParseAccountRole(role)
	if !ok {
		return domain.Account{}, validationf("unknown role %q", role)
	}
	account, found, err := a.store.UpdateAccount(accountID, store.AccountUpdate{Role: &parsed})
	if err != nil {
		return domain.Account{}, err
	}
	if !found {
		return domain.Account{}, ErrNotFound
	}
	return account, nil
}
