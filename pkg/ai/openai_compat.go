package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpenAICompatProvider calls any OpenAI-compatible API: /chat/completions
// for text and /images/generations for images. Works with vLLM, LiteLLM,
// LocalAI, OpenRouter, self-hosted models, etc.
type OpenAICompatProvider struct {
	name       string
	baseURL    string
	apiKey     string
	textModel  string
	imageModel string
	httpClient *http.Client
}

// NewOpenAICompatProvider builds the adapter. baseURL should include the
// /v1 prefix, e.g. "https://api.openai.com/v1". apiKey can be empty for
// local models that do not require authentication. imageModel may be empty
// when the endpoint has no image support; image requests then fail with
// ErrImageUnsupported at dispatch via the missing capability.
func NewOpenAICompatProvider(name, baseURL, apiKey, textModel, imageModel string) *OpenAICompatProvider {
	if strings.TrimSpace(name) == "" {
		name = "openai"
	}
	return &OpenAICompatProvider{
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		textModel:  strings.TrimSpace(textModel),
		imageModel: strings.TrimSpace(imageModel),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAICompatProvider) Name() string { return p.name }

func (p *OpenAICompatProvider) GenerateText(ctx context.Context, req Request) (*Result, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.textModel
	}
	if model == "" {
		return nil, fmt.Errorf("%s generation model required", p.name)
	}

	body := oaiChatRequest{
		Model: model,
		Messages: []oaiMessage{
			{Role: "user", Content: req.Prompt},
		},
	}
	if temp, ok := req.Options["temperature"].(float64); ok {
		body.Temperature = &temp
	}

	var chatResp oaiChatResponse
	if err := p.doJSON(ctx, "/chat/completions", body, &chatResp); err != nil {
		return nil, err
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from %s", p.name)
	}
	choice := chatResp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, fmt.Errorf("empty response from %s", p.name)
	}
	return &Result{
		ID:       uuid.NewString(),
		Content:  text,
		Provider: p.name,
		Model:    model,
		Usage: Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
		Metadata: map[string]any{
			"finishReason": choice.FinishReason,
			"respondedAt":  time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// GenerateImage implements the optional image capability. The image model
// must be configured; the b64 payload is returned as the opaque content.
func (p *OpenAICompatProvider) GenerateImage(ctx context.Context, req Request) (*Result, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.imageModel
	}
	if model == "" {
		return nil, ErrImageUnsupported
	}

	body := oaiImageRequest{
		Model:          model,
		Prompt:         req.Prompt,
		N:              1,
		ResponseFormat: "b64_json",
	}
	if size, ok := req.Options["size"].(string); ok && size != "" {
		body.Size = size
	}

	var imageResp oaiImageResponse
	if err := p.doJSON(ctx, "/images/generations", body, &imageResp); err != nil {
		return nil, err
	}
	if len(imageResp.Data) == 0 {
		return nil, fmt.Errorf("empty image response from %s", p.name)
	}
	content := imageResp.Data[0].B64JSON
	if content == "" {
		content = imageResp.Data[0].URL
	}
	if content == "" {
		return nil, fmt.Errorf("empty image response from %s", p.name)
	}
	return &Result{
		ID:       uuid.NewString(),
		Content:  content,
		Provider: p.name,
		Model:    model,
		Usage:    Usage{},
		Metadata: map[string]any{
			"finishReason": "stop",
			"respondedAt":  time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

func (p *OpenAICompatProvider) doJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("%s api error: %s", p.name, errResp.Error.Message)
		}
		return fmt.Errorf("%s api error: %s", p.name, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", p.name, err)
	}
	return nil
}

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type oaiImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type oaiImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

var _ ImageProvider = (*OpenAICompatProvider)(nil)
