package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"educraft/pkg/ai"
	"educraft/pkg/domain"
	"educraft/pkg/store"
	"educraft/pkg/token"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	issuer, err := token.New(token.Config{Secret: "test-secret-test-secret"})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	a, err := New(Config{
		Store:  store.NewFallbackStore(nil, store.NewMemoryStore(), nil),
		Tokens: issuer,
		AI:     ai.NewDispatcher("mock", nil),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func register(t *testing.T, a *App, username, email string) domain.Account {
	t.Helper()
	account, _, err := a.Register(RegisterInput{
		Username: username,
		Email:    email,
		Password: "sup3rsecret",
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return account
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	a := newTestApp(t)

	account, tok, err := a.Register(RegisterInput{
		Username: "ms-frizzle",
		Email:    "Frizzle@Example.com",
		Password: "magicbus1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tok == "" {
		t.Fatal("expected a token from Register")
	}
	if account.Email != "frizzle@example.com" {
		t.Fatalf("email not normalized: %q", account.Email)
	}
	if account.Role != domain.RoleTeacher {
		t.Fatalf("expected default teacher role, got %s", account.Role)
	}
	if account.PasswordHash == "magicbus1" {
		t.Fatal("password stored in clear")
	}

	logged, tok2, err := a.Login("frizzle@example.com", "magicbus1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != account.ID {
		t.Fatalf("login resolved wrong account %s", logged.ID)
	}
	if logged.LastLoginAt == nil {
		t.Fatal("expected last login stamp")
	}
	verified, err := a.VerifyToken(tok2)
	if err != nil || verified.ID != account.ID {
		t.Fatalf("VerifyToken: %v account=%v", err, verified.ID)
	}
}

func TestLoginErrorsAreGeneric(t *testing.T) {
	a := newTestApp(t)
	register(t, a, "alice", "alice@example.com")

	if _, _, err := a.Login("alice@example.com", "wrongpass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, _, err := a.Login("nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email must yield the same error, got %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndWeakInput(t *testing.T) {
	a := newTestApp(t)
	register(t, a, "alice", "alice@example.com")

	_, _, err := a.Register(RegisterInput{Username: "alice", Email: "other@example.com", Password: "sup3rsecret"})
	if !IsValidation(err) {
		t.Fatalf("duplicate username should be a validation error, got %v", err)
	}
	_, _, err = a.Register(RegisterInput{Username: "bob", Email: "bob@example.com", Password: "short"})
	if !IsValidation(err) {
		t.Fatalf("weak password should be a validation error, got %v", err)
	}
	_, _, err = a.Register(RegisterInput{Username: "eve", Email: "eve@example.com", Password: "sup3rsecret", Role: "admin"})
	if !IsValidation(err) {
		t.Fatalf("self-assigned admin should be rejected, got %v", err)
	}
}

// The volatile backend has no column widths, so the bounds the database
// schema enforces must hold before any store is touched.
func TestRegisterRejectsOverlongUsername(t *testing.T) {
	a := newTestApp(t)
	_, _, err := a.Register(RegisterInput{
		Username: strings.Repeat("x", 40),
		Email:    "long@example.com",
		Password: "sup3rsecret",
	})
	if !IsValidation(err) {
		t.Fatalf("40-char username should be a validation error, got %v", err)
	}
}

func TestCreateResourceRejectsOversizedFields(t *testing.T) {
	a := newTestApp(t)
	creator := register(t, a, "creator", "creator@example.com")

	base := CreateResourceInput{ContentType: "text", Category: "worksheet"}

	in := base
	in.Title = strings.Repeat("t", 300)
	if _, err := a.CreateResource(creator, in); !IsValidation(err) {
		t.Fatalf("300-char title should be a validation error, got %v", err)
	}

	in = base
	in.Title = "ok"
	in.Description = strings.Repeat("d", 2000)
	if _, err := a.CreateResource(creator, in); !IsValidation(err) {
		t.Fatalf("2000-char description should be a validation error, got %v", err)
	}

	in = base
	in.Title = "ok"
	in.Tags = make([]string, 15)
	for i := range in.Tags {
		in.Tags[i] = strings.Repeat("g", 60)
	}
	if _, err := a.CreateResource(creator, in); !IsValidation(err) {
		t.Fatalf("15 oversize tags should be a validation error, got %v", err)
	}

	in = base
	in.Title = "ok"
	in.Tags = []string{strings.Repeat("g", 60)}
	if _, err := a.CreateResource(creator, in); !IsValidation(err) {
		t.Fatalf("60-char tag should be a validation error, got %v", err)
	}
}

func TestUpdateResourceRejectsOversizedFields(t *testing.T) {
	a := newTestApp(t)
	creator := register(t, a, "creator", "creator@example.com")
	resource, err := a.CreateResource(creator, CreateResourceInput{
		Title:       "Fractions revision",
		ContentType: "text",
		Category:    "worksheet",
	})
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	long := CreateResourceInput{Title: strings.Repeat("t", 300)}
	if _, err := a.UpdateResource(creator, resource.ID, long, ResourceFieldMask{Title: true}); !IsValidation(err) {
		t.Fatalf("oversize title update should be a validation error, got %v", err)
	}
	tags := CreateResourceInput{Tags: make([]string, 11)}
	if _, err := a.UpdateResource(creator, resource.ID, tags, ResourceFieldMask{Tags: true}); !IsValidation(err) {
		t.Fatalf("11-tag update should be a validation error, got %v", err)
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	a := newTestApp(t)
	account := register(t, a, "alice", "alice@example.com")

	if err := a.ChangePassword(account.ID, "wrong", "newpass123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if err := a.ChangePassword(account.ID, "sup3rsecret", "newpass123"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := a.Login("alice@example.com", "newpass123"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestResourceVisibilityAndViews(t *testing.T) {
	a := newTestApp(t)
	creator := register(t, a, "creator", "creator@example.com")
	other := register(t, a, "other", "other@example.com")

	private, err := a.CreateResource(creator, CreateResourceInput{
		Title:       "Fractions revision",
		ContentType: "text",
		Category:    "worksheet",
	})
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	if _, err := a.GetResource(other, private.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("private resource must look missing to others, got %v", err)
	}

	// Owner reads never bump the counter.
	got, err := a.GetResource(creator, private.ID)
	if err != nil {
		t.Fatalf("GetResource as owner: %v", err)
	}
	if got.Views != 0 {
		t.Fatalf("owner read bumped views to %d", got.Views)
	}

	shared, err := a.CreateResource(creator, CreateResourceInput{
		Title:       "Shared quiz",
		ContentType: "text",
		Category:    "quiz",
		IsPublic:    true,
	})
	if err != nil {
		t.Fatalf("CreateResource public: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := a.GetResource(other, shared.ID); err != nil {
			t.Fatalf("GetResource as other: %v", err)
		}
	}
	got, err = a.GetResource(creator, shared.ID)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if got.Views != 3 {
		t.Fatalf("expected 3 views, got %d", got.Views)
	}
}

func TestResourceMutationAuthorization(t *testing.T) {
	a := newTestApp(t)
	creator := register(t, a, "creator", "creator@example.com")
	other := register(t, a, "other", "other@example.com")

	resource, err := a.CreateResource(creator, CreateResourceInput{
		Title:       "Shared notes",
		ContentType: "text",
		Category:    "reference",
		IsPublic:    true,
	})
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	_, err = a.UpdateResource(other, resource.ID, CreateResourceInput{Title: "hijack"}, ResourceFieldMask{Title: true})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner update should be forbidden, got %v", err)
	}
	if err := a.DeleteResource(other, resource.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner delete should be forbidden, got %v", err)
	}

	admin := register(t, a, "boss", "boss@example.com")
	admin.Role = domain.RoleAdmin
	updated, err := a.UpdateResource(admin, resource.ID, CreateResourceInput{Title: "Moderated title"}, ResourceFieldMask{Title: true})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Title != "Moderated title" {
		t.Fatalf("title not updated: %q", updated.Title)
	}
}

func TestToggleLikeFlips(t *testing.T) {
	a := newTestApp(t)
	creator := register(t, a, "creator", "creator@example.com")
	fan := register(t, a, "fan", "fan@example.com")

	resource, err := a.CreateResource(creator, CreateResourceInput{
		Title:       "Poster",
		ContentType: "image",
		Category:    "reference",
		IsPublic:    true,
	})
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	liked, err := a.ToggleLike(fan, resource.ID)
	if err != nil || !liked.LikedBy(fan.ID) {
		t.Fatalf("first toggle should like: %v %v", err, liked.Likes)
	}
	unliked, err := a.ToggleLike(fan, resource.ID)
	if err != nil || unliked.LikedBy(fan.ID) {
		t.Fatalf("second toggle should unlike: %v %v", err, unliked.Likes)
	}
}

func TestGenerateUnknownProviderFallsBackToMock(t *testing.T) {
	a := newTestApp(t)
	account := register(t, a, "teacher", "teacher@example.com")

	record, err := a.Generate(context.Background(), account, GenerateInput{
		Prompt:      "Explain photosynthesis to 10 year olds",
		ContentType: "text",
		Provider:    "does-not-exist",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if record.Provider != "mock" {
		t.Fatalf("expected mock substitution, got provider %q", record.Provider)
	}
	if record.Metadata["isMock"] != true {
		t.Fatalf("expected isMock metadata, got %v", record.Metadata)
	}
	if record.Status != domain.GenerationCompleted {
		t.Fatalf("unexpected status %s", record.Status)
	}

	page, err := a.ListGenerations(account, 0, 10)
	if err != nil {
		t.Fatalf("ListGenerations: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one record, got total=%d items=%d", page.Total, len(page.Items))
	}
}

func TestGenerateRejectsNonGeneratableTypes(t *testing.T) {
	a := newTestApp(t)
	account := register(t, a, "teacher", "teacher@example.com")

	_, err := a.Generate(context.Background(), account, GenerateInput{Prompt: "narrate this", ContentType: "audio"})
	if !IsValidation(err) {
		t.Fatalf("audio generation should be a validation error, got %v", err)
	}
	_, err = a.Generate(context.Background(), account, GenerateInput{Prompt: "x", ContentType: "presentation"})
	if !IsValidation(err) {
		t.Fatalf("presentation generation should be a validation error, got %v", err)
	}
}

func TestGenerationRecordsArePrivate(t *testing.T) {
	a := newTestApp(t)
	owner := register(t, a, "owner", "owner@example.com")
	peer := register(t, a, "peer", "peer@example.com")

	record, err := a.Generate(context.Background(), owner, GenerateInput{Prompt: "hello", ContentType: "text"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := a.GetGeneration(peer, record.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("peer read should look missing, got %v", err)
	}
	if err := a.DeleteGeneration(peer, record.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("peer delete should look missing, got %v", err)
	}
	if err := a.DeleteGeneration(owner, record.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestListAccountsAdminOnly(t *testing.T) {
	a := newTestApp(t)
	account := register(t, a, "plain", "plain@example.com")

	if _, err := a.ListAccounts(account, 0, 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin listing should be forbidden, got %v", err)
	}

	admin := account
	admin.Role = domain.RoleAdmin
	page, err := a.ListAccounts(admin, 0, 10)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one account, got %d", page.Total)
	}
}
