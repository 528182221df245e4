package app

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"educraft/pkg/domain"
	"educraft/pkg/store"
)

// Field bounds mirror the persistent schema's column widths so both
// backends accept exactly the same inputs.
const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	maxTags           = 10
	maxTagLen         = 50
)

func validateTitle(title string) error {
	if title == "" {
		return validationf("title required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return validationf("title must be at most %d characters", maxTitleLen)
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return validationf("description must be at most %d characters", maxDescriptionLen)
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > maxTags {
		return validationf("at most %d tags allowed", maxTags)
	}
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > maxTagLen {
			return validationf("tag %q exceeds %d characters", tag, maxTagLen)
		}
	}
	return nil
}

// CreateResourceInput is the resource creation payload.
type CreateResourceInput struct {
	Title         string
	Description   string
	ContentType   string
	Category      string
	Content       domain.ResourceContent
	Metadata      domain.ResourceMetadata
	Tags          []string
	Collaborators []string
	IsPublic      bool
	GenerationID  string
}

// CreateResource stores a new resource owned by the creator.
func (a *App) CreateResource(creator domain.Account, in CreateResourceInput) (domain.Resource, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return domain.Resource{}, err
	}
	description := strings.TrimSpace(in.Description)
	if err := validateDescription(description); err != nil {
		return domain.Resource{}, err
	}
	if err := validateTags(in.Tags); err != nil {
		return domain.Resource{}, err
	}
	contentType, ok := domain.ParseContentType(in.ContentType)
	if !ok {
		return domain.Resource{}, validationf("unknown content type %q", in.ContentType)
	}
	category, ok := domain.ParseResourceCategory(in.Category)
	if !ok {
		return domain.Resource{}, validationf("unknown category %q", in.Category)
	}
	if in.GenerationID != "" {
		record, found, err := a.store.GetGeneration(in.GenerationID)
		if err != nil {
			return domain.Resource{}, err
		}
		if !found || record.AccountID != creator.ID {
			return domain.Resource{}, validationf("unknown generation %q", in.GenerationID)
		}
	}
	resource, err := a.store.CreateResource(domain.Resource{
		Title:         title,
		Description:   description,
		ContentType:   contentType,
		Category:      category,
		Content:       in.Content,
		Metadata:      in.Metadata,
		Tags:          in.Tags,
		CreatorID:     creator.ID,
		Collaborators: in.Collaborators,
		IsPublic:      in.IsPublic,
		GenerationID:  in.GenerationID,
	})
	if err != nil {
		return domain.Resource{}, err
	}
	a.log.Info("resource created", "resource_id", resource.ID, "creator_id", creator.ID, "category", resource.Category)
	return resource, nil
}

// GetResource returns a resource the viewer may read. Reads by anyone
// other than the creator bump the view counter; a failed bump does not
// fail the read.
func (a *App) GetResource(viewer domain.Account, id string) (domain.Resource, error) {
	resource, ok, err := a.store.GetResource(id)
	if err != nil {
		return domain.Resource{}, err
	}
	if !ok || !resource.VisibleTo(viewer.ID, viewer.Role) {
		// A resource the viewer may not see is indistinguishable from a
		// missing one.
		return domain.Resource{}, ErrNotFound
	}
	if viewer.ID != resource.CreatorID {
		if err := a.store.IncrementViews(id); err != nil {
			a.log.Warn("view counter bump failed", "resource_id", id, "error", err)
		} else {
			resource.Views++
		}
	}
	return resource, nil
}

// ResourceQueryInput narrows a resource listing.
type ResourceQueryInput struct {
	CreatorID   string
	Category    string
	ContentType string
	Search      string
	SortBy      string
	SortDesc    bool
	Skip        int
	Limit       int
}

// ResourcePage is one page of resources with the total matching count.
type ResourcePage struct {
	Items []domain.Resource
	Total int64
}

// ListResources returns resources visible to the viewer matching the
// filters. Items and total are fetched concurrently.
func (a *App) ListResources(viewer domain.Account, in ResourceQueryInput) (ResourcePage, error) {
	query := store.ResourceQuery{
		ViewerID:   viewer.ID,
		ViewerRole: viewer.Role,
		CreatorID:  strings.TrimSpace(in.CreatorID),
		Search:     strings.TrimSpace(in.Search),
		SortBy:     in.SortBy,
		SortDesc:   in.SortDesc,
		Skip:       in.Skip,
		Limit:      in.Limit,
	}
	if in.Category != "" {
		category, ok := domain.ParseResourceCategory(in.Category)
		if !ok {
			return ResourcePage{}, validationf("unknown category %q", in.Category)
		}
		query.Category = category
	}
	if in.ContentType != "" {
		contentType, ok := domain.ParseContentType(in.ContentType)
		if !ok {
			return ResourcePage{}, validationf("unknown content type %q", in.ContentType)
		}
		query.ContentType = contentType
	}

	var page ResourcePage
	var g errgroup.Group
	g.Go(func() error {
		items, err := a.store.FindResources(query)
		page.Items = items
		return err
	})
	g.Go(func() error {
		total, err := a.store.CountResources(query)
		page.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return ResourcePage{}, err
	}
	return page, nil
}

// UpdateResource applies a partial update. Only the creator or an admin
// may modify a resource.
func (a *App) UpdateResource(viewer domain.Account, id string, in CreateResourceInput, set ResourceFieldMask) (domain.Resource, error) {
	resource, ok, err := a.store.GetResource(id)
	if err != nil {
		return domain.Resource{}, err
	}
	if !ok || !resource.VisibleTo(viewer.ID, viewer.Role) {
		return domain.Resource{}, ErrNotFound
	}
	if viewer.ID != resource.CreatorID && viewer.Role != domain.RoleAdmin {
		return domain.Resource{}, ErrForbidden
	}

	update := store.ResourceUpdate{}
	if set.Title {
		title := strings.TrimSpace(in.Title)
		if err := validateTitle(title); err != nil {
			return domain.Resource{}, err
		}
		update.Title = &title
	}
	if set.Description {
		description := strings.TrimSpace(in.Description)
		if err := validateDescription(description); err != nil {
			return domain.Resource{}, err
		}
		update.Description = &description
	}
	if set.ContentType {
		contentType, okCT := domain.ParseContentType(in.ContentType)
		if !okCT {
			return domain.Resource{}, validationf("unknown content type %q", in.ContentType)
		}
		update.ContentType = &contentType
	}
	if set.Category {
		category, okCat := domain.ParseResourceCategory(in.Category)
		if !okCat {
			return domain.Resource{}, validationf("unknown category %q", in.Category)
		}
		update.Category = &category
	}
	if set.Content {
		content := in.Content
		update.Content = &content
	}
	if set.Metadata {
		metadata := in.Metadata
		update.Metadata = &metadata
	}
	if set.Tags {
		if err := validateTags(in.Tags); err != nil {
			return domain.Resource{}, err
		}
		tags := in.Tags
		update.Tags = &tags
	}
	if set.Collaborators {
		collaborators := in.Collaborators
		update.Collaborators = &collaborators
	}
	if set.IsPublic {
		isPublic := in.IsPublic
		update.IsPublic = &isPublic
	}

	updated, found, err := a.store.UpdateResource(id, update)
	if err != nil {
		return domain.Resource{}, err
	}
	if !found {
		return domain.Resource{}, ErrNotFound
	}
	return updated, nil
}

// ResourceFieldMask marks which update fields the caller actually sent.
type ResourceFieldMask struct {
	Title         bool
	Description   bool
	ContentType   bool
	Category      bool
	Content       bool
	Metadata      bool
	Tags          bool
	Collaborators bool
	IsPublic      bool
}

// DeleteResource removes a resource. Only the creator or an admin may
// delete.
func (a *App) DeleteResource(viewer domain.Account, id string) error {
	resource, ok, err := a.store.GetResource(id)
	if err != nil {
		return err
	}
	if !ok || !resource.VisibleTo(viewer.ID, viewer.Role) {
		return ErrNotFound
	}
	if viewer.ID != resource.CreatorID && viewer.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	found, err := a.store.DeleteResource(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	a.log.Info("resource deleted", "resource_id", id, "by", viewer.ID)
	return nil
}

// ToggleLike flips the viewer's like on a visible resource and returns
// the updated resource.
func (a *App) ToggleLike(viewer domain.Account, id string) (domain.Resource, error) {
	resource, ok, err := a.store.GetResource(id)
	if err != nil {
		return domain.Resource{}, err
	}
	if !ok || !resource.VisibleTo(viewer.ID, viewer.Role) {
		return domain.Resource{}, ErrNotFound
	}
	updated, found, err := a.store.ToggleLike(id, viewer.ID)
	if err != nil {
		return domain.Resource{}, err
	}
	if !found {
		return domain.Resource{}, ErrNotFound
	}
	return updated, nil
}
