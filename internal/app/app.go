// Package app implements the application service layer: account
// lifecycle, resource CRUD with visibility rules, and AI generation
// backed by the provider dispatcher.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"educraft/pkg/ai"
	"educraft/pkg/domain"
	"educraft/pkg/storage"
	"educraft/pkg/store"
	"educraft/pkg/token"
)

// Config wires the application dependencies.
type Config struct {
	Store   store.Store
	Tokens  *token.Issuer
	AI      *ai.Dispatcher
	Objects storage.ObjectStore
	Logger  *slog.Logger
}

// App is the core application service.
type App struct {
	store   store.Store
	tokens  *token.Issuer
	ai      *ai.Dispatcher
	objects storage.ObjectStore
	log     *slog.Logger
}

// New constructs the application service.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if cfg.AI == nil {
		return nil, errors.New("ai dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		store:   cfg.Store,
		tokens:  cfg.Tokens,
		ai:      cfg.AI,
		objects: cfg.Objects,
		log:     logger,
	}, nil
}

// VerifyToken resolves a bearer token to the authenticated account.
func (a *App) VerifyToken(raw string) (domain.Account, error) {
	accountID, err := a.tokens.Verify(raw)
	if err != nil {
		return domain.Account{}, err
	}
	account, ok, err := a.store.GetAccountByID(accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, token.ErrInvalidToken
	}
	return account, nil
}

// Providers lists the registered AI provider names.
func (a *App) Providers() []string {
	return a.ai.Providers()
}

// SaveUpload stores an uploaded file and returns its serving URL.
func (a *App) SaveUpload(ctx context.Context, mediaKind, filename, contentType string, r io.Reader, size int64) (string, error) {
	if a.objects == nil {
		return "", errors.New("upload storage not configured")
	}
	if filename == "" {
		return "", validationf("filename required")
	}
	return a.objects.Save(ctx, mediaKind, filename, contentType, r, size)
}
