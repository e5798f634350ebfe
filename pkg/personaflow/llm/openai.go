package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAICompat implements Client against any provider exposing the
// OpenAI chat completion wire format.
type OpenAICompat struct {
	cfg        ModelConfig
	baseURL    string
	httpClient *http.Client
}

// OpenAIOption configures an OpenAICompat client.
type OpenAIOption func(*OpenAICompat)

// WithHTTPClient overrides the underlying HTTP client.
// Used by tests and by callers that need custom transports.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAICompat) { o.httpClient = c }
}

// NewOpenAICompat creates a client for the configured provider.
// The endpoint comes from cfg.BaseURL, falling back to the provider's
// known OpenAI-compatible endpoint.
func NewOpenAICompat(cfg ModelConfig, opts ...OpenAIOption) *OpenAICompat {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[cfg.Provider]
	}
	o := &OpenAICompat{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the OpenAI chat completion response body.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements Client.
func (o *OpenAICompat) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if o.baseURL == "" {
		return nil, NewError("complete",
			fmt.Errorf("provider %q requires an explicit base url", o.cfg.Provider), false)
	}

	body := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.Model == "" {
		body.Model = o.cfg.ModelID
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("encode request: %w", err), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("build request: %w", err), false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		// Check for context cancellation first: the orchestrator's
		// timeout must not be retried against.
		if ctx.Err() != nil {
			return nil, NewError("complete", ctx.Err(), false)
		}
		return nil, NewError("complete", err, true)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("read response: %w", err), true)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := providerErrorMessage(data)
		retryable := retryableStatus(httpResp.StatusCode) || retryableMessage(msg)
		return nil, NewError("complete",
			fmt.Errorf("provider returned %d: %s", httpResp.StatusCode, msg), retryable)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, NewError("complete", fmt.Errorf("decode response: %w", err), false)
	}
	if parsed.Error != nil {
		return nil, NewError("complete",
			fmt.Errorf("provider error: %s", parsed.Error.Message),
			retryableMessage(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, NewError("complete", fmt.Errorf("provider returned no choices"), false)
	}

	return &CompletionResponse{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

// providerErrorMessage extracts a human-readable message from an error body.
func providerErrorMessage(data []byte) string {
	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != nil {
		return parsed.Error.Message
	}
	return string(data)
}
