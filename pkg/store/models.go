package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"educraft/pkg/domain"
)

// GORM models used by the persistent backend. Document-shaped fields
// (profile, payloads, metadata, id lists) are stored as JSONB.
type AccountModel struct {
	ID           string         `gorm:"primaryKey"`
	Username     string         `gorm:"uniqueIndex;not null;size:30"`
	Email        string         `gorm:"uniqueIndex;not null"`
	PasswordHash string         `gorm:"not null"`
	Role         string         `gorm:"not null;index"`
	Profile      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time      `gorm:"not null"`
	LastLoginAt  *time.Time
}

type GenerationModel struct {
	ID          string         `gorm:"primaryKey"`
	AccountID   string         `gorm:"not null;index"`
	Prompt      string         `gorm:"type:text;not null"`
	ContentType string         `gorm:"not null"`
	Content     string         `gorm:"type:text"`
	Status      string         `gorm:"not null"`
	Provider    string         `gorm:"not null"`
	Model       string
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

type ResourceModel struct {
	ID            string         `gorm:"primaryKey"`
	Title         string         `gorm:"not null;size:200;index"`
	Description   string         `gorm:"size:1000"`
	ContentType   string         `gorm:"not null;index"`
	Category      string         `gorm:"not null;index"`
	Content       datatypes.JSON `gorm:"type:jsonb"`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	Tags          datatypes.JSON `gorm:"type:jsonb"`
	CreatorID     string         `gorm:"not null;index"`
	Collaborators datatypes.JSON `gorm:"type:jsonb"`
	Likes         datatypes.JSON `gorm:"type:jsonb"`
	Views         int64          `gorm:"not null;default:0"`
	IsPublic      bool           `gorm:"not null;default:false;index"`
	GenerationID  string
	CreatedAt     time.Time      `gorm:"not null;index"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func accountToModel(a domain.Account) AccountModel {
	profile, _ := json.Marshal(a.Profile)
	return AccountModel{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		Profile:      profile,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
		LastLoginAt:  a.LastLoginAt,
	}
}

func accountFromModel(m AccountModel) domain.Account {
	var profile domain.Profile
	if len(m.Profile) > 0 {
		_ = json.Unmarshal(m.Profile, &profile)
	}
	return domain.Account{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.AccountRole(m.Role),
		Profile:      profile,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		LastLoginAt:  m.LastLoginAt,
	}
}

func generationToModel(g domain.GenerationRecord) GenerationModel {
	meta, _ := json.Marshal(g.Metadata)
	return GenerationModel{
		ID:          g.ID,
		AccountID:   g.AccountID,
		Prompt:      g.Prompt,
		ContentType: string(g.ContentType),
		Content:     g.Content,
		Status:      string(g.Status),
		Provider:    g.Provider,
		Model:       g.Model,
		Metadata:    meta,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func generationFromModel(m GenerationModel) domain.GenerationRecord {
	var meta map[string]any
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return domain.GenerationRecord{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Prompt:      m.Prompt,
		ContentType: domain.ContentType(m.ContentType),
		Content:     m.Content,
		Status:      domain.GenerationStatus(m.Status),
		Provider:    m.Provider,
		Model:       m.Model,
		Metadata:    meta,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func resourceToModel(r domain.Resource) ResourceModel {
	content, _ := json.Marshal(r.Content)
	meta, _ := json.Marshal(r.Metadata)
	tags, _ := json.Marshal(r.Tags)
	collaborators, _ := json.Marshal(r.Collaborators)
	likes, _ := json.Marshal(r.Likes)
	return ResourceModel{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		ContentType:   string(r.ContentType),
		Category:      string(r.Category),
		Content:       content,
		Metadata:      meta,
		Tags:          tags,
		CreatorID:     r.CreatorID,
		Collaborators: collaborators,
		Likes:         likes,
		Views:         r.Views,
		IsPublic:      r.IsPublic,
		GenerationID:  r.GenerationID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func resourceFromModel(m ResourceModel) domain.Resource {
	var content domain.ResourceContent
	var meta domain.ResourceMetadata
	var tags, collaborators, likes []string
	if len(m.Content) > 0 {
		_ = json.Unmarshal(m.Content, &content)
	}
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	if len(m.Tags) > 0 {
		_ = json.Unmarshal(m.Tags, &tags)
	}
	if len(m.Collaborators) > 0 {
		_ = json.Unmarshal(m.Collaborators, &collaborators)
	}
	if len(m.Likes) > 0 {
		_ = json.Unmarshal(m.Likes, &likes)
	}
	return domain.Resource{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		ContentType:   domain.ContentType(m.ContentType),
		Category:      domain.ResourceCategory(m.Category),
		Content:       content,
		Metadata:      meta,
		Tags:          tags,
		CreatorID:     m.CreatorID,
		Collaborators: collaborators,
		Likes:         likes,
		Views:         m.Views,
		IsPublic:      m.IsPublic,
		GenerationID:  m.GenerationID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
