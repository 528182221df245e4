package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"educraft/pkg/domain"
)

// Dispatcher selects a provider adapter by name and invokes it. An unknown
// provider name silently degrades to the always-registered mock adapter so
// that the selection function is total; this is deliberate policy, not an
// error path.
type Dispatcher struct {
	providers       map[string]Provider
	defaultProvider string
	mock            *MockProvider
	log             *slog.Logger
}

// NewDispatcher registers the given providers plus the mock. defaultName is
// used when a request names no provider; when empty, the mock is the default.
func NewDispatcher(defaultName string, logger *slog.Logger, providers ...Provider) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	mock := NewMockProvider()
	registry := map[string]Provider{mock.Name(): mock}
	for _, p := range providers {
		if p == nil {
			continue
		}
		registry[p.Name()] = p
	}
	defaultName = strings.TrimSpace(defaultName)
	if _, ok := registry[defaultName]; !ok {
		defaultName = mock.Name()
	}
	return &Dispatcher{
		providers:       registry,
		defaultProvider: defaultName,
		mock:            mock,
		log:             logger,
	}
}

// Providers lists registered adapter names.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for name := range d.providers {
		names = append(names, name)
	}
	return names
}

// Generate resolves the adapter and returns a normalized result. Adapter
// invocation failures are re-signaled as a single generic error; the
// dispatcher does not retry.
func (d *Dispatcher) Generate(ctx context.Context, req Request) (*Result, error) {
	name := strings.TrimSpace(req.Provider)
	if name == "" {
		name = d.defaultProvider
	}
	provider, ok := d.providers[name]
	if !ok {
		d.log.Info("unknown provider, substituting mock", "requested", name)
		provider = d.mock
		name = d.mock.Name()
	}

	var result *Result
	var err error
	switch req.ContentType {
	case domain.ContentImage:
		imageProvider, capable := provider.(ImageProvider)
		if !capable {
			return nil, ErrImageUnsupported
		}
		result, err = imageProvider.GenerateImage(ctx, req)
	default:
		result, err = provider.GenerateText(ctx, req)
	}
	if err != nil {
		// Capability gaps stay distinct; everything else flattens to the
		// generic failure with the cause logged only.
		if errors.Is(err, ErrImageUnsupported) {
			return nil, err
		}
		d.log.Error("provider call failed", "provider", name, "err", err)
		return nil, fmt.Errorf("%w for provider %s", ErrGenerationFailed, name)
	}
	result.Provider = name
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	return result, nil
}
