package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Gemini implements Client using Google's genai SDK.
type Gemini struct {
	client *genai.Client
	cfg    ModelConfig
}

// NewGemini creates a client for the google provider.
func NewGemini(cfg ModelConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google provider requires an api key")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// Complete implements Client.
func (g *Gemini) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.cfg.ModelID
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	var contents []*genai.Content
	for _, msg := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError("complete", ctx.Err(), false)
		}
		return nil, NewError("complete", err, geminiRetryable(err))
	}

	text := result.Text()
	if text == "" {
		return nil, NewError("complete", fmt.Errorf("provider returned empty response"), false)
	}

	resp := &CompletionResponse{
		Content:      text,
		Model:        model,
		FinishReason: "stop",
		Duration:     time.Since(start),
	}
	if result.UsageMetadata != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return resp, nil
}

// geminiRetryable classifies genai SDK errors.
func geminiRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	return retryableMessage(err.Error())
}
