// Package ai routes generation requests to provider adapters and
// normalizes their heterogeneous responses into one result shape.
package ai

import (
	"context"
	"errors"

	"educraft/pkg/domain"
)

var (
	// ErrImageUnsupported is returned when an image is requested from a
	// provider that only generates text. This is a capability failure,
	// distinct from an unknown provider name (which degrades to the mock).
	ErrImageUnsupported = errors.New("provider does not support image generation")

	// ErrGenerationFailed wraps provider call failures. The original cause
	// is logged, never surfaced.
	ErrGenerationFailed = errors.New("generation failed")
)

// Request describes one generation call.
type Request struct {
	ContentType domain.ContentType
	Prompt      string
	Provider    string
	Model       string
	Options     map[string]any
}

// Usage reports token counts; zero-filled when the provider does not
// report them.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Result is the normalized provider response.
type Result struct {
	ID       string
	Content  string
	Provider string
	Model    string
	Usage    Usage
	Metadata map[string]any
}

// Provider generates text. Adapters that can also produce images
// additionally implement ImageProvider.
type Provider interface {
	Name() string
	GenerateText(ctx context.Context, req Request) (*Result, error)
}

// ImageProvider is the optional image capability.
type ImageProvider interface {
	Provider
	GenerateImage(ctx context.Context, req Request) (*Result, error)
}
