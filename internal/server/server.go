// Package server exposes the HTTP API. Responses use a
// {success, message?, data?} envelope; list endpoints add pagination.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"educraft/internal/app"
	"educraft/internal/ratelimit"
	"educraft/internal/util"
	"educraft/pkg/ai"
	"educraft/pkg/domain"
	"educraft/pkg/token"
)

const maxJSONBodyBytes = 1 << 20

// Limiters holds the optional per-endpoint rate limiters. Nil limiters
// allow everything.
type Limiters struct {
	Register   *ratelimit.FixedWindowLimiter
	Login      *ratelimit.FixedWindowLimiter
	Generation *ratelimit.FixedWindowLimiter
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiters       Limiters
	TrustedProxies *util.TrustedProxies
	CORSOrigin     string
	MaxUploadBytes int64

	// UploadsDir, when set, is served under UploadsPrefix for the local
	// storage backend.
	UploadsDir    string
	UploadsPrefix string
}

// Server exposes the HTTP endpoints.
type Server struct {
	app            *app.App
	limiters       Limiters
	trustedProxies *util.TrustedProxies
	corsOrigin     string
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	s := &Server{
		app:            cfg.App,
		limiters:       cfg.Limiters,
		trustedProxies: cfg.TrustedProxies,
		corsOrigin:     cfg.CORSOrigin,
		maxUploadBytes: maxUploadBytes,
		mux:            http.NewServeMux(),
	}
	s.routes(cfg.UploadsDir, cfg.UploadsPrefix)
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.corsOrigin, s.mux))))
}

func (s *Server) routes(uploadsDir, uploadsPrefix string) {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/accounts/register", s.limited(s.limiters.Register, s.handleRegister))
	s.mux.HandleFunc("/api/accounts/login", s.limited(s.limiters.Login, s.handleLogin))
	s.mux.Handle("/api/accounts/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/accounts/me/password", s.authenticated(s.handleChangePassword))
	s.mux.Handle("/api/accounts", s.authenticated(s.handleAccounts))

	s.mux.Handle("/api/resources", s.authenticated(s.handleResources))
	s.mux.Handle("/api/resources/", s.authenticated(s.handleResourceByID))

	s.mux.Handle("/api/generations", s.authenticated(s.handleGenerations))
	s.mux.Handle("/api/generations/", s.authenticated(s.handleGenerationByID))
	s.mux.Handle("/api/providers", s.authenticated(s.handleProviders))

	s.mux.Handle("/api/uploads", s.authenticated(s.handleUpload))

	if uploadsDir != "" {
		prefix := strings.TrimSuffix(uploadsPrefix, "/")
		if prefix == "" {
			prefix = "/uploads"
		}
		s.mux.Handle(prefix+"/", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(uploadsDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.Account)

// authenticated resolves the bearer token to an account before calling
// the wrapped handler.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		account, err := s.app.VerifyToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, account)
	})
}

// limited applies a fixed-window rate limit keyed by client IP.
func (s *Server) limited(limiter *ratelimit.FixedWindowLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(util.ClientIP(r, s.trustedProxies)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if raw == "" {
		return "", false
	}
	return raw, true
}

// decodeJSON reads a size-limited JSON request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

type envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Current    int   `json:"current"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func newPagination(page, pageSize int, total int64) *pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &pagination{Current: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writePage(w http.ResponseWriter, data any, page *pagination) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Pagination: page})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeAppError maps service-layer errors onto HTTP statuses. Unexpected
// errors are logged and flattened to a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrExpiredToken):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ai.ErrImageUnsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// pageParams parses 1-based page/pageSize query parameters.
func pageParams(r *http.Request) (page, pageSize, skip int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize = queryInt(r, "pageSize", 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize, (page - 1) * pageSize
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
