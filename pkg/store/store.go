package store

import (
	"errors"
	"time"

	"educraft/pkg/domain"
)

// ErrDuplicateAccount is a validation failure, not a connectivity failure:
// it must surface to the caller and never triggers backend fallback.
var ErrDuplicateAccount = errors.New("username or email already exists")

// AccountUpdate is a partial account mutation. Nil fields are left untouched.
type AccountUpdate struct {
	PasswordHash *string
	Role         *domain.AccountRole
	Profile      *domain.Profile
	LastLoginAt  *time.Time
}

// ResourceUpdate is a partial resource mutation. Nil fields are left untouched.
type ResourceUpdate struct {
	Title         *string
	Description   *string
	ContentType   *domain.ContentType
	Category      *domain.ResourceCategory
	Content       *domain.ResourceContent
	Metadata      *domain.ResourceMetadata
	Tags          *[]string
	Collaborators *[]string
	IsPublic      *bool
}

// ResourceQuery selects resources visible to a viewer. Unless the viewer is
// an admin, results are restricted to resources the viewer created or that
// are public (the creator-or-public OR combinator). Zero-valued filters are
// ignored.
type ResourceQuery struct {
	ViewerID   string
	ViewerRole domain.AccountRole

	CreatorID   string
	Category    domain.ResourceCategory
	ContentType domain.ContentType

	// Search matches title, description and tags. The persistent backend
	// matches via ILIKE, the volatile one via case-insensitive substring;
	// matched sets agree for single-keyword queries, ranking may not.
	Search string

	SortBy   string // createdAt, updatedAt, title, views
	SortDesc bool
	Skip     int
	Limit    int
}

// Store is implemented by both the persistent and the volatile backend.
// Lookups report absence as (zero, false, nil); a non-nil error means the
// backend itself failed (connectivity class for the persistent backend).
type Store interface {
	CreateAccount(account domain.Account) (domain.Account, error)
	GetAccountByID(id string) (domain.Account, bool, error)
	GetAccountByEmail(email string) (domain.Account, bool, error)
	HasAccount(username, email string) (bool, error)
	UpdateAccount(id string, update AccountUpdate) (domain.Account, bool, error)
	ListAccounts(skip, limit int) ([]domain.Account, error)
	CountAccounts() (int64, error)

	CreateGeneration(record domain.GenerationRecord) (domain.GenerationRecord, error)
	GetGeneration(id string) (domain.GenerationRecord, bool, error)
	ListGenerationsByAccount(accountID string, skip, limit int) ([]domain.GenerationRecord, error)
	CountGenerationsByAccount(accountID string) (int64, error)
	DeleteGeneration(id string) (bool, error)

	CreateResource(resource domain.Resource) (domain.Resource, error)
	GetResource(id string) (domain.Resource, bool, error)
	FindResources(query ResourceQuery) ([]domain.Resource, error)
	CountResources(query ResourceQuery) (int64, error)
	UpdateResource(id string, update ResourceUpdate) (domain.Resource, bool, error)
	DeleteResource(id string) (bool, error)
	ToggleLike(resourceID, accountID string) (domain.Resource, bool, error)
	IncrementViews(resourceID string) error
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FallbackStore)(nil)
)

const defaultListLimit = 20

func normalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return skip, limit
}
