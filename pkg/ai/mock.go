package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const mockProviderName = "mock"

// mockImagePixelPNG is a 1x1 transparent PNG, base64-encoded.
const mockImagePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// MockProvider is always registered and always succeeds, so dispatch can
// degrade gracefully when a real adapter is missing or unconfigured.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) Name() string { return mockProviderName }

func (m *MockProvider) GenerateText(_ context.Context, req Request) (*Result, error) {
	content := fmt.Sprintf(
		"This is mock-generated educational content for the prompt: %q. "+
			"Configure a real provider to produce usable material.",
		req.Prompt,
	)
	return m.result(req, content, "mock-text-v1"), nil
}

func (m *MockProvider) GenerateImage(_ context.Context, req Request) (*Result, error) {
	return m.result(req, mockImagePixelPNG, "mock-image-v1"), nil
}

func (m *MockProvider) result(req Request, content, model string) *Result {
	if req.Model != "" {
		model = req.Model
	}
	return &Result{
		ID:       uuid.NewString(),
		Content:  content,
		Provider: mockProviderName,
		Model:    model,
		Usage:    Usage{},
		Metadata: map[string]any{
			"isMock":       true,
			"finishReason": "stop",
			"respondedAt":  time.Now().UTC().Format(time.RFC3339),
			"contentType":  string(req.ContentType),
		},
	}
}

var _ ImageProvider = (*MockProvider)(nil)
