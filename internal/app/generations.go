package app

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"educraft/pkg/ai"
	"educraft/pkg/domain"
)

const maxPromptLength = 8000

// GenerateInput is the generation request payload.
type GenerateInput struct {
	Prompt      string
	ContentType string
	Provider    string
	Model       string
	Options     map[string]any
}

// Generate dispatches a prompt to an AI provider and persists the
// outcome as an immutable generation record. Failed calls are recorded
// too, with status failed and no content.
func (a *App) Generate(ctx context.Context, account domain.Account, in GenerateInput) (domain.GenerationRecord, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return domain.GenerationRecord{}, validationf("prompt required")
	}
	if len(prompt) > maxPromptLength {
		return domain.GenerationRecord{}, validationf("prompt exceeds %d characters", maxPromptLength)
	}
	contentType, ok := domain.ParseGenerationContentType(in.ContentType)
	if !ok {
		return domain.GenerationRecord{}, validationf("unknown content type %q", in.ContentType)
	}
	// Audio and video are stored resource types but no provider adapter
	// produces them yet.
	if contentType != domain.ContentText && contentType != domain.ContentImage {
		return domain.GenerationRecord{}, validationf("content type %q is not generatable", in.ContentType)
	}

	result, err := a.ai.Generate(ctx, ai.Request{
		ContentType: contentType,
		Prompt:      prompt,
		Provider:    in.Provider,
		Model:       in.Model,
		Options:     in.Options,
	})
	if err != nil {
		a.recordFailure(account.ID, prompt, contentType, in.Provider, in.Model, err)
		return domain.GenerationRecord{}, err
	}

	record, err := a.store.CreateGeneration(domain.GenerationRecord{
		AccountID:   account.ID,
		Prompt:      prompt,
		ContentType: contentType,
		Content:     result.Content,
		Status:      domain.GenerationCompleted,
		Provider:    result.Provider,
		Model:       result.Model,
		Metadata:    generationMetadata(result),
	})
	if err != nil {
		return domain.GenerationRecord{}, err
	}
	return record, nil
}

// recordFailure persists a failed generation best-effort.
func (a *App) recordFailure(accountID, prompt string, contentType domain.ContentType, provider, model string, cause error) {
	_, err := a.store.CreateGeneration(domain.GenerationRecord{
		AccountID:   accountID,
		Prompt:      prompt,
		ContentType: contentType,
		Status:      domain.GenerationFailed,
		Provider:    provider,
		Model:       model,
		Metadata:    map[string]any{"error": cause.Error()},
	})
	if err != nil {
		a.log.Warn("failed generation not recorded", "account_id", accountID, "error", err)
	}
}

func generationMetadata(result *ai.Result) map[string]any {
	metadata := make(map[string]any, len(result.Metadata)+1)
	for k, v := range result.Metadata {
		metadata[k] = v
	}
	if result.Usage != (ai.Usage{}) {
		metadata["usage"] = result.Usage
	}
	return metadata
}

// GenerationPage is one page of generation records with the total count.
type GenerationPage struct {
	Items []domain.GenerationRecord
	Total int64
}

// ListGenerations returns the caller's generation history, newest first.
func (a *App) ListGenerations(account domain.Account, skip, limit int) (GenerationPage, error) {
	var page GenerationPage
	var g errgroup.Group
	g.Go(func() error {
		items, err := a.store.ListGenerationsByAccount(account.ID, skip, limit)
		page.Items = items
		return err
	})
	g.Go(func() error {
		total, err := a.store.CountGenerationsByAccount(account.ID)
		page.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return GenerationPage{}, err
	}
	return page, nil
}

// GetGeneration returns one record. Records are private to their owner;
// admins may read any.
func (a *App) GetGeneration(viewer domain.Account, id string) (domain.GenerationRecord, error) {
	record, ok, err := a.store.GetGeneration(id)
	if err != nil {
		return domain.GenerationRecord{}, err
	}
	if !ok || (record.AccountID != viewer.ID && viewer.Role != domain.RoleAdmin) {
		return domain.GenerationRecord{}, ErrNotFound
	}
	return record, nil
}

// DeleteGeneration removes a record the viewer owns.
func (a *App) DeleteGeneration(viewer domain.Account, id string) error {
	record, ok, err := a.store.GetGeneration(id)
	if err != nil {
		return err
	}
	if !ok || (record.AccountID != viewer.ID && viewer.Role != domain.RoleAdmin) {
		return ErrNotFound
	}
	found, err := a.store.DeleteGeneration(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}
