package server

import (
	"net/http"
	"strings"

	"educraft/internal/app"
	"educraft/internal/util"
	"educraft/pkg/domain"
)

type generateRequest struct {
	Prompt      string         `json:"prompt"`
	ContentType string         `json:"contentType"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request, account domain.Account) {
	switch r.Method {
	case http.MethodPost:
		s.handleGenerate(w, r, account)
	case http.MethodGet:
		page, pageSize, skip := pageParams(r)
		result, err := s.app.ListGenerations(account, skip, pageSize)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writePage(w, result.Items, newPagination(page, pageSize, result.Total))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, account domain.Account) {
	if !s.limiters.Generation.Allow(util.ClientIP(r, s.trustedProxies)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	record, err := s.app.Generate(r.Context(), account, app.GenerateInput{
		Prompt:      req.Prompt,
		ContentType: req.ContentType,
		Provider:    req.Provider,
		Model:       req.Model,
		Options:     req.Options,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, record)
}

func (s *Server) handleGenerationByID(w http.ResponseWriter, r *http.Request, account domain.Account) {
	id := strings.TrimPrefix(r.URL.Path, "/api/generations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		record, err := s.app.GetGeneration(account, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, record)
	case http.MethodDelete:
		if err := s.app.DeleteGeneration(account, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request, _ domain.Account) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"providers": s.app.Providers()})
}
