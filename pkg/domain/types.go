package domain

import "time"

type AccountRole string

const (
	RoleAdmin   AccountRole = "admin"
	RoleTeacher AccountRole = "teacher"
	RoleStudent AccountRole = "student"
)

type ContentType string

const (
	ContentText         ContentType = "text"
	ContentImage        ContentType = "image"
	ContentAudio        ContentType = "audio"
	ContentVideo        ContentType = "video"
	ContentPresentation ContentType = "presentation"
	ContentInteractive  ContentType = "interactive"
)

type ResourceCategory string

const (
	CategoryLessonPlan   ResourceCategory = "lesson_plan"
	CategoryWorksheet    ResourceCategory = "worksheet"
	CategoryPresentation ResourceCategory = "presentation"
	CategoryQuiz         ResourceCategory = "quiz"
	CategoryAssignment   ResourceCategory = "assignment"
	CategoryReference    ResourceCategory = "reference"
)

type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Preferences holds per-account defaults applied to generation requests.
type Preferences struct {
	Language     string   `json:"language,omitempty"`
	Theme        string   `json:"theme,omitempty"`
	AIModels     []string `json:"aiModels,omitempty"`
	ContentTypes []string `json:"contentTypes,omitempty"`
}

type Profile struct {
	DisplayName string      `json:"displayName,omitempty"`
	Bio         string      `json:"bio,omitempty"`
	Institution string      `json:"institution,omitempty"`
	Subjects    []string    `json:"subjects,omitempty"`
	Preferences Preferences `json:"preferences"`
}

type Account struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         AccountRole `json:"role"`
	Profile      Profile     `json:"profile"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	LastLoginAt  *time.Time  `json:"lastLoginAt,omitempty"`
}

// GenerationRecord captures one completed provider call. Records are
// immutable after creation except for deletion by their owner.
type GenerationRecord struct {
	ID          string           `json:"id"`
	AccountID   string           `json:"accountId"`
	Prompt      string           `json:"prompt"`
	ContentType ContentType      `json:"contentType"`
	Content     string           `json:"content"`
	Status      GenerationStatus `json:"status"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ResourceContent is the opaque payload of a resource.
type ResourceContent struct {
	Data     string `json:"data,omitempty"`
	Format   string `json:"format,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Duration int    `json:"duration,omitempty"`
	URL      string `json:"url,omitempty"`
}

type ResourceMetadata struct {
	Subject       string   `json:"subject,omitempty"`
	GradeLevels   []string `json:"gradeLevels,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	EstimatedTime int      `json:"estimatedTime,omitempty"`
	Objectives    []string `json:"objectives,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

type Resource struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	ContentType   ContentType      `json:"contentType"`
	Category      ResourceCategory `json:"category"`
	Content       ResourceContent  `json:"content"`
	Metadata      ResourceMetadata `json:"metadata"`
	Tags          []string         `json:"tags,omitempty"`
	CreatorID     string           `json:"creatorId"`
	Collaborators []string         `json:"collaborators,omitempty"`
	Likes         []string         `json:"likes,omitempty"`
	Views         int64            `json:"views"`
	IsPublic      bool             `json:"isPublic"`
	GenerationID  string           `json:"generationId,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// VisibleTo reports whether a viewer may read the resource: the creator
// always, admins always, anyone when the resource is public.
func (r Resource) VisibleTo(accountID string, role AccountRole) bool {
	return r.IsPublic || r.CreatorID == accountID || role == RoleAdmin
}

// LikedBy reports whether the account currently likes the resource.
func (r Resource) LikedBy(accountID string) bool {
	for _, id := range r.Likes {
		if id == accountID {
			return true
		}
	}
	return false
}

func ParseAccountRole(raw string) (AccountRole, bool) {
	switch AccountRole(raw) {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return AccountRole(raw), true
	}
	return "", false
}

func ParseContentType(raw string) (ContentType, bool) {
	switch ContentType(raw) {
	case ContentText, ContentImage, ContentAudio, ContentVideo, ContentPresentation, ContentInteractive:
		return ContentType(raw), true
	}
	return "", false
}

// ParseGenerationContentType accepts only the content types the generation
// pipeline can produce.
func ParseGenerationContentType(raw string) (ContentType, bool) {
	switch ContentType(raw) {
	case ContentText, ContentImage, ContentAudio, ContentVideo:
		return ContentType(raw), true
	}
	return "", false
}

func ParseResourceCategory(raw string) (ResourceCategory, bool) {
	switch ResourceCategory(raw) {
	case CategoryLessonPlan, CategoryWorksheet, CategoryPresentation, CategoryQuiz, CategoryAssignment, CategoryReference:
		return ResourceCategory(raw), true
	}
	return "", false
}
