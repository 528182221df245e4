package server

import (
	"net/http"
	"strings"

	"educraft/internal/app"
	"educraft/pkg/domain"
)

type resourceRequest struct {
	Title         *string                  `json:"title"`
	Description   *string                  `json:"description"`
	ContentType   *string                  `json:"contentType"`
	Category      *string                  `json:"category"`
	Content       *domain.ResourceContent  `json:"content"`
	Metadata      *domain.ResourceMetadata `json:"metadata"`
	Tags          *[]string                `json:"tags"`
	Collaborators *[]string                `json:"collaborators"`
	IsPublic      *bool                    `json:"isPublic"`
	GenerationID  *string                  `json:"generationId"`
}

// input flattens the pointer fields; mask records which were present.
func (req resourceRequest) input() (app.CreateResourceInput, app.ResourceFieldMask) {
	var in app.CreateResourceInput
	var mask app.ResourceFieldMask
	if req.Title != nil {
		in.Title, mask.Title = *req.Title, true
	}
	if req.Description != nil {
		in.Description, mask.Description = *req.Description, true
	}
	if req.ContentType != nil {
		in.ContentType, mask.ContentType = *req.ContentType, true
	}
	if req.Category != nil {
		in.Category, mask.Category = *req.Category, true
	}
	if req.Content != nil {
		in.Content, mask.Content = *req.Content, true
	}
	if req.Metadata != nil {
		in.Metadata, mask.Metadata = *req.Metadata, true
	}
	if req.Tags != nil {
		in.Tags, mask.Tags = *req.Tags, true
	}
	if req.Collaborators != nil {
		in.Collaborators, mask.Collaborators = *req.Collaborators, true
	}
	if req.IsPublic != nil {
		in.IsPublic, mask.IsPublic = *req.IsPublic, true
	}
	if req.GenerationID != nil {
		in.GenerationID = *req.GenerationID
	}
	return in, mask
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request, account domain.Account) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateResource(w, r, account)
	case http.MethodGet:
		s.handleListResources(w, r, account)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request, account domain.Account) {
	var req resourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, _ := req.input()
	resource, err := s.app.CreateResource(account, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, resource)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request, account domain.Account) {
	page, pageSize, skip := pageParams(r)
	q := r.URL.Query()
	result, err := s.app.ListResources(account, app.ResourceQueryInput{
		CreatorID:   q.Get("creatorId"),
		Category:    q.Get("category"),
		ContentType: q.Get("contentType"),
		Search:      q.Get("search"),
		SortBy:      q.Get("sortBy"),
		SortDesc:    q.Get("order") != "asc",
		Skip:        skip,
		Limit:       pageSize,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writePage(w, result.Items, newPagination(page, pageSize, result.Total))
}

// handleResourceByID serves /api/resources/{id} and /api/resources/{id}/like.
func (s *Server) handleResourceByID(w http.ResponseWriter, r *http.Request, account domain.Account) {
	path := strings.TrimPrefix(r.URL.Path, "/api/resources/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if len(parts) == 2 {
		if parts[1] == "like" && r.Method == http.MethodPost {
			s.handleToggleLike(w, r, account, id)
			return
		}
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		resource, err := s.app.GetResource(account, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, resource)
	case http.MethodPut, http.MethodPatch:
		var req resourceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in, mask := req.input()
		resource, err := s.app.UpdateResource(account, id, in, mask)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, resource)
	case http.MethodDelete:
		if err := s.app.DeleteResource(account, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request, account domain.Account, id string) {
	resource, err := s.app.ToggleLike(account, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resource)
}
