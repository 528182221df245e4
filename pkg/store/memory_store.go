package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"educraft/pkg/domain"
)

// MemoryStore is the volatile backend: an in-process store that mirrors the
// persistent backend's operations so callers cannot tell them apart. It is
// lost on restart and never reconciled with the database.
//
// Deliberate semantic gaps versus the persistent backend:
//   - username/email uniqueness is a full scan, not an index; the scan and
//     the insert run inside one critical section so concurrent creates
//     cannot both pass the check,
//   - text search is case-insensitive substring matching, not a ranked
//     text index,
//   - equal sort keys keep insertion order (stable sort).
type MemoryStore struct {
	mu sync.RWMutex

	accounts   map[string]domain.Account
	accountIDs []string

	resources   []domain.Resource
	generations []domain.GenerationRecord

	accountSeq    int64
	resourceSeq   int64
	generationSeq int64
}

// NewMemoryStore initializes an empty volatile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]domain.Account),
	}
}

// Sequence counters only grow, so identifiers are never reused even after
// deletes.
func (m *MemoryStore) nextAccountID() string {
	m.accountSeq++
	return fmt.Sprintf("mem-a-%d", m.accountSeq)
}

func (m *MemoryStore) nextResourceID() string {
	m.resourceSeq++
	return fmt.Sprintf("mem-r-%d", m.resourceSeq)
}

func (m *MemoryStore) nextGenerationID() string {
	m.generationSeq++
	return fmt.Sprintf("mem-g-%d", m.generationSeq)
}

// CreateAccount checks uniqueness and inserts under a single lock. The
// caller must hash the password before calling; nothing in here suspends.
func (m *MemoryStore) CreateAccount(account domain.Account) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.accountIDs {
		existing := m.accounts[id]
		if existing.Username == account.Username || existing.Email == account.Email {
			return domain.Account{}, ErrDuplicateAccount
		}
	}
	now := time.Now().UTC()
	account.ID = m.nextAccountID()
	account.CreatedAt = now
	account.UpdatedAt = now
	m.accounts[account.ID] = account
	m.accountIDs = append(m.accountIDs, account.ID)
	return cloneAccount(account), nil
}

func (m *MemoryStore) GetAccountByID(id string) (domain.Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, false, nil
	}
	return cloneAccount(account), true, nil
}

func (m *MemoryStore) GetAccountByEmail(email string) (domain.Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.accountIDs {
		if account := m.accounts[id]; account.Email == email {
			return cloneAccount(account), true, nil
		}
	}
	return domain.Account{}, false, nil
}

func (m *MemoryStore) HasAccount(username, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.accountIDs {
		account := m.accounts[id]
		if account.Username == username || account.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) UpdateAccount(id string, update AccountUpdate) (domain.Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, false, nil
	}
	if update.PasswordHash != nil {
		account.PasswordHash = *update.PasswordHash
	}
	if update.Role != nil {
		account.Role = *update.Role
	}
	if update.Profile != nil {
		account.Profile = *update.Profile
	}
	if update.LastLoginAt != nil {
		at := *update.LastLoginAt
		account.LastLoginAt = &at
	}
	account.UpdatedAt = time.Now().UTC()
	m.accounts[id] = account
	return cloneAccount(account), true, nil
}

func (m *MemoryStore) ListAccounts(skip, limit int) ([]domain.Account, error) {
	skip, limit = normalizePage(skip, limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Account, 0, limit)
	for i := skip; i < len(m.accountIDs) && len(res) < limit; i++ {
		res = append(res, cloneAccount(m.accounts[m.accountIDs[i]]))
	}
	return res, nil
}

func (m *MemoryStore) CountAccounts() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.accountIDs)), nil
}

func (m *MemoryStore) CreateGeneration(record domain.GenerationRecord) (domain.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	record.ID = m.nextGenerationID()
	record.CreatedAt = now
	record.UpdatedAt = now
	m.generations = append(m.generations, record)
	return cloneGeneration(record), nil
}

func (m *MemoryStore) GetGeneration(id string) (domain.GenerationRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, record := range m.generations {
		if record.ID == id {
			return cloneGeneration(record), true, nil
		}
	}
	return domain.GenerationRecord{}, false, nil
}

// ListGenerationsByAccount returns newest-first pages, matching the
// persistent backend's created_at DESC ordering.
func (m *MemoryStore) ListGenerationsByAccount(accountID string, skip, limit int) ([]domain.GenerationRecord, error) {
	skip, limit = normalizePage(skip, limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.GenerationRecord, 0)
	for i := len(m.generations) - 1; i >= 0; i-- {
		if m.generations[i].AccountID == accountID {
			matched = append(matched, m.generations[i])
		}
	}
	return pageGenerations(matched, skip, limit), nil
}

func (m *MemoryStore) CountGenerationsByAccount(accountID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, record := range m.generations {
		if record.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) DeleteGeneration(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, record := range m.generations {
		if record.ID == id {
			m.generations = append(m.generations[:i], m.generations[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CreateResource(resource domain.Resource) (domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	resource.ID = m.nextResourceID()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	m.resources = append(m.resources, resource)
	return cloneResource(resource), nil
}

func (m *MemoryStore) GetResource(id string) (domain.Resource, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, resource := range m.resources {
		if resource.ID == id {
			return cloneResource(resource), true, nil
		}
	}
	return domain.Resource{}, false, nil
}

func (m *MemoryStore) FindResources(query ResourceQuery) ([]domain.Resource, error) {
	skip, limit := normalizePage(query.Skip, query.Limit)
	// The lock is held until the returned page is fully cloned: the
	// matched records still share slice backing with store state, and a
	// concurrent like toggle mutates that backing in place.
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := m.matchResources(query)

	sortResources(matched, query.SortBy, query.SortDesc || query.SortBy == "")

	res := make([]domain.Resource, 0, limit)
	for i := skip; i < len(matched) && len(res) < limit; i++ {
		res = append(res, cloneResource(matched[i]))
	}
	return res, nil
}

func (m *MemoryStore) CountResources(query ResourceQuery) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matchResources(query))), nil
}

// matchResources re-evaluates every filter-set against every record: the
// creator-match and public-flag-match sets are ORed, then the remaining
// equality filters and the substring search are ANDed, matching the
// persistent backend's result set.
func (m *MemoryStore) matchResources(query ResourceQuery) []domain.Resource {
	matched := make([]domain.Resource, 0, len(m.resources))
	for _, resource := range m.resources {
		if query.ViewerRole != domain.RoleAdmin {
			if resource.CreatorID != query.ViewerID && !resource.IsPublic {
				continue
			}
		}
		if query.CreatorID != "" && resource.CreatorID != query.CreatorID {
			continue
		}
		if query.Category != "" && resource.Category != query.Category {
			continue
		}
		if query.ContentType != "" && resource.ContentType != query.ContentType {
			continue
		}
		if query.Search != "" && !resourceMatchesSearch(resource, query.Search) {
			continue
		}
		matched = append(matched, resource)
	}
	return matched
}

func resourceMatchesSearch(resource domain.Resource, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(resource.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(resource.Description), needle) {
		return true
	}
	for _, tag := range resource.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// sortResources orders by raw field value; the stable sort keeps insertion
// order for equal keys.
func sortResources(resources []domain.Resource, sortBy string, desc bool) {
	less := func(a, b domain.Resource) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch sortBy {
	case "updatedAt":
		less = func(a, b domain.Resource) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "title":
		less = func(a, b domain.Resource) bool { return a.Title < b.Title }
	case "views":
		less = func(a, b domain.Resource) bool { return a.Views < b.Views }
	}
	sort.SliceStable(resources, func(i, j int) bool {
		if desc {
			return less(resources[j], resources[i])
		}
		return less(resources[i], resources[j])
	})
}

func (m *MemoryStore) UpdateResource(id string, update ResourceUpdate) (domain.Resource, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.resources {
		if m.resources[i].ID != id {
			continue
		}
		resource := &m.resources[i]
		if update.Title != nil {
			resource.Title = *update.Title
		}
		if update.Description != nil {
			resource.Description = *update.Description
		}
		if update.ContentType != nil {
			resource.ContentType = *update.ContentType
		}
		if update.Category != nil {
			resource.Category = *update.Category
		}
		if update.Content != nil {
			resource.Content = *update.Content
		}
		if update.Metadata != nil {
			resource.Metadata = *update.Metadata
		}
		if update.Tags != nil {
			resource.Tags = append([]string(nil), (*update.Tags)...)
		}
		if update.Collaborators != nil {
			resource.Collaborators = append([]string(nil), (*update.Collaborators)...)
		}
		if update.IsPublic != nil {
			resource.IsPublic = *update.IsPublic
		}
		resource.UpdatedAt = time.Now().UTC()
		return cloneResource(*resource), true, nil
	}
	return domain.Resource{}, false, nil
}

func (m *MemoryStore) DeleteResource(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, resource := range m.resources {
		if resource.ID == id {
			m.resources = append(m.resources[:i], m.resources[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ToggleLike(resourceID, accountID string) (domain.Resource, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.resources {
		if m.resources[i].ID != resourceID {
			continue
		}
		m.resources[i].Likes = toggleID(m.resources[i].Likes, accountID)
		m.resources[i].UpdatedAt = time.Now().UTC()
		return cloneResource(m.resources[i]), true, nil
	}
	return domain.Resource{}, false, nil
}

// IncrementViews bumps the counter; a missing id is not an error, mirroring
// the backend contract that absence is reported by lookups, not mutations.
func (m *MemoryStore) IncrementViews(resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.resources {
		if m.resources[i].ID == resourceID {
			m.resources[i].Views++
			return nil
		}
	}
	return nil
}

// Reset drops all records and counters. Test helper.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]domain.Account)
	m.accountIDs = nil
	m.resources = nil
	m.generations = nil
	m.accountSeq = 0
	m.resourceSeq = 0
	m.generationSeq = 0
}

// Records handed out must not alias internal slices/maps.
func cloneAccount(a domain.Account) domain.Account {
	a.Profile.Subjects = append([]string(nil), a.Profile.Subjects...)
	a.Profile.Preferences.AIModels = append([]string(nil), a.Profile.Preferences.AIModels...)
	a.Profile.Preferences.ContentTypes = append([]string(nil), a.Profile.Preferences.ContentTypes...)
	if a.LastLoginAt != nil {
		at := *a.LastLoginAt
		a.LastLoginAt = &at
	}
	return a
}

func cloneGeneration(g domain.GenerationRecord) domain.GenerationRecord {
	if g.Metadata != nil {
		meta := make(map[string]any, len(g.Metadata))
		for k, v := range g.Metadata {
			meta[k] = v
		}
		g.Metadata = meta
	}
	return g
}

func cloneResource(r domain.Resource) domain.Resource {
	r.Tags = append([]string(nil), r.Tags...)
	r.Collaborators = append([]string(nil), r.Collaborators...)
	r.Likes = append([]string(nil), r.Likes...)
	r.Metadata.GradeLevels = append([]string(nil), r.Metadata.GradeLevels...)
	r.Metadata.Objectives = append([]string(nil), r.Metadata.Objectives...)
	r.Metadata.Prerequisites = append([]string(nil), r.Metadata.Prerequisites...)
	return r
}

func pageGenerations(records []domain.GenerationRecord, skip, limit int) []domain.GenerationRecord {
	res := make([]domain.GenerationRecord, 0, limit)
	for i := skip; i < len(records) && len(res) < limit; i++ {
		res = append(res, cloneGeneration(records[i]))
	}
	return res
}
