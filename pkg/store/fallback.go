package store

import (
	"errors"
	"log/slog"

	"educraft/pkg/domain"
)

// FallbackStore routes every operation to the persistent backend when it is
// reachable and to the volatile backend otherwise. Reachability is probed
// fresh on every call from the live driver connection; nothing is cached, so
// two steps of one request may legitimately land on different backends.
//
// Entities belong to whichever backend created them. A record written to the
// database while it was up is invisible to the volatile store during an
// outage, and records created during an outage are lost on restart. Callers
// must not retry a not-found against the other backend.
type FallbackStore struct {
	persistent *GormStore
	volatile   *MemoryStore
	log        *slog.Logger
}

// NewFallbackStore wires the two backends. persistent may be nil when the
// database never came up; every call then goes straight to the volatile
// store.
func NewFallbackStore(persistent *GormStore, volatile *MemoryStore, logger *slog.Logger) *FallbackStore {
	if volatile == nil {
		volatile = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{persistent: persistent, volatile: volatile, log: logger}
}

// Available reports whether the persistent backend currently serves calls.
func (f *FallbackStore) Available() bool {
	return f.persistent.Available()
}

// Persistent exposes the wrapped persistent backend, nil when absent.
func (f *FallbackStore) Persistent() *GormStore { return f.persistent }

// Volatile exposes the wrapped volatile backend.
func (f *FallbackStore) Volatile() *MemoryStore { return f.volatile }

// recoverable reports whether an error is connectivity-class: validation
// failures (duplicate key) surface to the caller and never trigger fallback.
func recoverable(err error) bool {
	return err != nil && !errors.Is(err, ErrDuplicateAccount)
}

func (f *FallbackStore) fallingBack(op string, err error) {
	f.log.Warn("persistent backend failed, serving from volatile store", "op", op, "err", err)
}

func (f *FallbackStore) CreateAccount(account domain.Account) (domain.Account, error) {
	if f.Available() {
		created, err := f.persistent.CreateAccount(account)
		if !recoverable(err) {
			return created, err
		}
		f.fallingBack("create_account", err)
	}
	return f.volatile.CreateAccount(account)
}

func (f *FallbackStore) GetAccountByID(id string) (domain.Account, bool, error) {
	if f.Available() {
		account, ok, err := f.persistent.GetAccountByID(id)
		if err == nil {
			return account, ok, nil
		}
		f.fallingBack("get_account_by_id", err)
	}
	return f.volatile.GetAccountByID(id)
}

func (f *FallbackStore) GetAccountByEmail(email string) (domain.Account, bool, error) {
	if f.Available() {
		account, ok, err := f.persistent.GetAccountByEmail(email)
		if err == nil {
			return account, ok, nil
		}
		f.fallingBack("get_account_by_email", err)
	}
	return f.volatile.GetAccountByEmail(email)
}

func (f *FallbackStore) HasAccount(username, email string) (bool, error) {
	if f.Available() {
		ok, err := f.persistent.HasAccount(username, email)
		if err == nil {
			return ok, nil
		}
		f.fallingBack("has_account", err)
	}
	return f.volatile.HasAccount(username, email)
}

func (f *FallbackStore) UpdateAccount(id string, update AccountUpdate) (domain.Account, bool, error) {
	if f.Available() {
		account, ok, err := f.persistent.UpdateAccount(id, update)
		if err == nil {
			return account, ok, nil
		}
		f.fallingBack("update_account", err)
	}
	return f.volatile.UpdateAccount(id, update)
}

func (f *FallbackStore) ListAccounts(skip, limit int) ([]domain.Account, error) {
	if f.Available() {
		accounts, err := f.persistent.ListAccounts(skip, limit)
		if err == nil {
			return accounts, nil
		}
		f.fallingBack("list_accounts", err)
	}
	return f.volatile.ListAccounts(skip, limit)
}

func (f *FallbackStore) CountAccounts() (int64, error) {
	if f.Available() {
		count, err := f.persistent.CountAccounts()
		if err == nil {
			return count, nil
		}
		f.fallingBack("count_accounts", err)
	}
	return f.volatile.CountAccounts()
}

func (f *FallbackStore) CreateGeneration(record domain.GenerationRecord) (domain.GenerationRecord, error) {
	if f.Available() {
		created, err := f.persistent.CreateGeneration(record)
		if err == nil {
			return created, nil
		}
		f.fallingBack("create_generation", err)
	}
	return f.volatile.CreateGeneration(record)
}

func (f *FallbackStore) GetGeneration(id string) (domain.GenerationRecord, bool, error) {
	if f.Available() {
		record, ok, err := f.persistent.GetGeneration(id)
		if err == nil {
			return record, ok, nil
		}
		f.fallingBack("get_generation", err)
	}
	return f.volatile.GetGeneration(id)
}

func (f *FallbackStore) ListGenerationsByAccount(accountID string, skip, limit int) ([]domain.GenerationRecord, error) {
	if f.Available() {
		records, err := f.persistent.ListGenerationsByAccount(accountID, skip, limit)
		if err == nil {
			return records, nil
		}
		f.fallingBack("list_generations", err)
	}
	return f.volatile.ListGenerationsByAccount(accountID, skip, limit)
}

func (f *FallbackStore) CountGenerationsByAccount(accountID string) (int64, error) {
	if f.Available() {
		count, err := f.persistent.CountGenerationsByAccount(accountID)
		if err == nil {
			return count, nil
		}
		f.fallingBack("count_generations", err)
	}
	return f.volatile.CountGenerationsByAccount(accountID)
}

func (f *FallbackStore) DeleteGeneration(id string) (bool, error) {
	if f.Available() {
		ok, err := f.persistent.DeleteGeneration(id)
		if err == nil {
			return ok, nil
		}
		f.fallingBack("delete_generation", err)
	}
	return f.volatile.DeleteGeneration(id)
}

func (f *FallbackStore) CreateResource(resource domain.Resource) (domain.Resource, error) {
	if f.Available() {
		created, err := f.persistent.CreateResource(resource)
		if err == nil {
			return created, nil
		}
		f.fallingBack("create_resource", err)
	}
	return f.volatile.CreateResource(resource)
}

func (f *FallbackStore) GetResource(id string) (domain.Resource, bool, error) {
	if f.Available() {
		resource, ok, err := f.persistent.GetResource(id)
		if err == nil {
			return resource, ok, nil
		}
		f.fallingBack("get_resource", err)
	}
	return f.volatile.GetResource(id)
}

func (f *FallbackStore) FindResources(query ResourceQuery) ([]domain.Resource, error) {
	if f.Available() {
		resources, err := f.persistent.FindResources(query)
		if err == nil {
			return resources, nil
		}
		f.fallingBack("find_resources", err)
	}
	return f.volatile.FindResources(query)
}

func (f *FallbackStore) CountResources(query ResourceQuery) (int64, error) {
	if f.Available() {
		count, err := f.persistent.CountResources(query)
		if err == nil {
			return count, nil
		}
		f.fallingBack("count_resources", err)
	}
	return f.volatile.CountResources(query)
}

func (f *FallbackStore) UpdateResource(id string, update ResourceUpdate) (domain.Resource, bool, error) {
	if f.Available() {
		resource, ok, err := f.persistent.UpdateResource(id, update)
		if err == nil {
			return resource, ok, nil
		}
		f.fallingBack("update_resource", err)
	}
	return f.volatile.UpdateResource(id, update)
}

func (f *FallbackStore) DeleteResource(id string) (bool, error) {
	if f.Available() {
		ok, err := f.persistent.DeleteResource(id)
		if err == nil {
			return ok, nil
		}
		f.fallingBack("delete_resource", err)
	}
	return f.volatile.DeleteResource(id)
}

func (f *FallbackStore) ToggleLike(resourceID, accountID string) (domain.Resource, bool, error) {
	if f.Available() {
		resource, ok, err := f.persistent.ToggleLike(resourceID, accountID)
		if err == nil {
			return resource, ok, nil
		}
		f.fallingBack("toggle_like", err)
	}
	return f.volatile.ToggleLike(resourceID, accountID)
}

func (f *FallbackStore) IncrementViews(resourceID string) error {
	if f.Available() {
		err := f.persistent.IncrementViews(resourceID)
		if err == nil {
			return nil
		}
		f.fallingBack("increment_views", err)
	}
	return f.volatile.IncrementViews(resourceID)
}
