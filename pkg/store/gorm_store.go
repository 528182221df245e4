package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"educraft/pkg/domain"
)

const availabilityProbeTimeout = 2 * time.Second

// resourceSortColumns whitelists caller-supplied sort fields.
var resourceSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"views":     "views",
}

// GormStore is the persistent backend: GORM + Postgres with schema-enforced
// uniqueness and indexes.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&AccountModel{}, &GenerationModel{}, &ResourceModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Available probes the live driver connection. It never returns an error:
// any probe failure means "not available right now".
func (s *GormStore) Available() bool {
	if s == nil || s.db == nil {
		return false
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), availabilityProbeTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx) == nil
}

// CreateAccount inserts a new account. Username/email collisions surface as
// ErrDuplicateAccount via the unique indexes.
func (s *GormStore) CreateAccount(account domain.Account) (domain.Account, error) {
	now := time.Now().UTC()
	account.ID = uuid.NewString()
	account.CreatedAt = now
	account.UpdatedAt = now
	model := accountToModel(account)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Account{}, ErrDuplicateAccount
		}
		return domain.Account{}, err
	}
	return account, nil
}

func (s *GormStore) GetAccountByID(id string) (domain.Account, bool, error) {
	var model AccountModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	return accountFromModel(model), true, nil
}

func (s *GormStore) GetAccountByEmail(email string) (domain.Account, bool, error) {
	var model AccountModel
	if err := s.db.First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	return accountFromModel(model), true, nil
}

// HasAccount reports whether the username or email is already taken.
func (s *GormStore) HasAccount(username, email string) (bool, error) {
	var count int64
	if err := s.db.Model(&AccountModel{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateAccount applies a partial mutation and re-stamps updated_at.
func (s *GormStore) UpdateAccount(id string, update AccountUpdate) (domain.Account, bool, error) {
	var out domain.Account
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model AccountModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if update.PasswordHash != nil {
			updates["password_hash"] = *update.PasswordHash
		}
		if update.Role != nil {
			updates["role"] = string(*update.Role)
		}
		if update.Profile != nil {
			profile, err := json.Marshal(*update.Profile)
			if err != nil {
				return fmt.Errorf("marshal profile: %w", err)
			}
			updates["profile"] = profile
		}
		if update.LastLoginAt != nil {
			updates["last_login_at"] = *update.LastLoginAt
		}
		if err := tx.Model(&model).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		out = accountFromModel(model)
		found = true
		return nil
	})
	if err != nil {
		return domain.Account{}, false, err
	}
	return out, found, nil
}

func (s *GormStore) ListAccounts(skip, limit int) ([]domain.Account, error) {
	skip, limit = normalizePage(skip, limit)
	var models []AccountModel
	if err := s.db.Order("created_at ASC, id ASC").
		Offset(skip).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Account, 0, len(models))
	for _, m := range models {
		res = append(res, accountFromModel(m))
	}
	return res, nil
}

func (s *GormStore) CountAccounts() (int64, error) {
	var count int64
	if err := s.db.Model(&AccountModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormStore) CreateGeneration(record domain.GenerationRecord) (domain.GenerationRecord, error) {
	now := time.Now().UTC()
	record.ID = uuid.NewString()
	record.CreatedAt = now
	record.UpdatedAt = now
	model := generationToModel(record)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.GenerationRecord{}, err
	}
	return record, nil
}

func (s *GormStore) GetGeneration(id string) (domain.GenerationRecord, bool, error) {
	var model GenerationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.GenerationRecord{}, false, nil
		}
		return domain.GenerationRecord{}, false, err
	}
	return generationFromModel(model), true, nil
}

func (s *GormStore) ListGenerationsByAccount(accountID string, skip, limit int) ([]domain.GenerationRecord, error) {
	skip, limit = normalizePage(skip, limit)
	var models []GenerationModel
	if err := s.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id ASC").
		Offset(skip).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.GenerationRecord, 0, len(models))
	for _, m := range models {
		res = append(res, generationFromModel(m))
	}
	return res, nil
}

func (s *GormStore) CountGenerationsByAccount(accountID string) (int64, error) {
	var count int64
	if err := s.db.Model(&GenerationModel{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormStore) DeleteGeneration(id string) (bool, error) {
	res := s.db.Delete(&GenerationModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) CreateResource(resource domain.Resource) (domain.Resource, error) {
	now := time.Now().UTC()
	resource.ID = uuid.NewString()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	model := resourceToModel(resource)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Resource{}, err
	}
	return resource, nil
}

func (s *GormStore) GetResource(id string) (domain.Resource, bool, error) {
	var model ResourceModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Resource{}, false, nil
		}
		return domain.Resource{}, false, err
	}
	return resourceFromModel(model), true, nil
}

func (s *GormStore) FindResources(query ResourceQuery) ([]domain.Resource, error) {
	skip, limit := normalizePage(query.Skip, query.Limit)
	tx := s.applyResourceQuery(query)

	column, ok := resourceSortColumns[query.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if query.SortDesc || query.SortBy == "" {
		direction = "DESC"
	}
	var models []ResourceModel
	if err := tx.Order(fmt.Sprintf("%s %s, id ASC", column, direction)).
		Offset(skip).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Resource, 0, len(models))
	for _, m := range models {
		res = append(res, resourceFromModel(m))
	}
	return res, nil
}

func (s *GormStore) CountResources(query ResourceQuery) (int64, error) {
	var count int64
	if err := s.applyResourceQuery(query).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormStore) applyResourceQuery(query ResourceQuery) *gorm.DB {
	tx := s.db.Model(&ResourceModel{})
	if query.ViewerRole != domain.RoleAdmin {
		tx = tx.Where("creator_id = ? OR is_public = TRUE", query.ViewerID)
	}
	if query.CreatorID != "" {
		tx = tx.Where("creator_id = ?", query.CreatorID)
	}
	if query.Category != "" {
		tx = tx.Where("category = ?", string(query.Category))
	}
	if query.ContentType != "" {
		tx = tx.Where("content_type = ?", string(query.ContentType))
	}
	if query.Search != "" {
		pattern := "%" + query.Search + "%"
		tx = tx.Where("title ILIKE ? OR description ILIKE ? OR tags::text ILIKE ?", pattern, pattern, pattern)
	}
	return tx
}

// UpdateResource applies a partial mutation and re-stamps updated_at.
func (s *GormStore) UpdateResource(id string, update ResourceUpdate) (domain.Resource, bool, error) {
	var out domain.Resource
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model ResourceModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if update.Title != nil {
			updates["title"] = *update.Title
		}
		if update.Description != nil {
			updates["description"] = *update.Description
		}
		if update.ContentType != nil {
			updates["content_type"] = string(*update.ContentType)
		}
		if update.Category != nil {
			updates["category"] = string(*update.Category)
		}
		if update.Content != nil {
			content, err := json.Marshal(*update.Content)
			if err != nil {
				return fmt.Errorf("marshal content: %w", err)
			}
			updates["content"] = content
		}
		if update.Metadata != nil {
			meta, err := json.Marshal(*update.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			updates["metadata"] = meta
		}
		if update.Tags != nil {
			tags, err := json.Marshal(*update.Tags)
			if err != nil {
				return fmt.Errorf("marshal tags: %w", err)
			}
			updates["tags"] = tags
		}
		if update.Collaborators != nil {
			collaborators, err := json.Marshal(*update.Collaborators)
			if err != nil {
				return fmt.Errorf("marshal collaborators: %w", err)
			}
			updates["collaborators"] = collaborators
		}
		if update.IsPublic != nil {
			updates["is_public"] = *update.IsPublic
		}
		if err := tx.Model(&model).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		out = resourceFromModel(model)
		found = true
		return nil
	})
	if err != nil {
		return domain.Resource{}, false, err
	}
	return out, found, nil
}

func (s *GormStore) DeleteResource(id string) (bool, error) {
	res := s.db.Delete(&ResourceModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ToggleLike flips the account's like on the resource.
func (s *GormStore) ToggleLike(resourceID, accountID string) (domain.Resource, bool, error) {
	var out domain.Resource
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model ResourceModel
		if err := tx.First(&model, "id = ?", resourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		resource := resourceFromModel(model)
		resource.Likes = toggleID(resource.Likes, accountID)
		likes, err := json.Marshal(resource.Likes)
		if err != nil {
			return fmt.Errorf("marshal likes: %w", err)
		}
		resource.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&model).Updates(map[string]any{
			"likes":      likes,
			"updated_at": resource.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		out = resource
		found = true
		return nil
	})
	if err != nil {
		return domain.Resource{}, false, err
	}
	return out, found, nil
}

// IncrementViews bumps the view counter without touching updated_at.
func (s *GormStore) IncrementViews(resourceID string) error {
	return s.db.Model(&ResourceModel{}).
		Where("id = ?", resourceID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// toggleID removes the id when present, appends it otherwise.
func toggleID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return append(ids, id)
}
