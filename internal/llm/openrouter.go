package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterClient implements Client over OpenRouter's OpenAI-compatible API.
type OpenRouterClient struct {
	client *openai.Client
}

// NewOpenRouterClient creates a client for baseURL. httpClient may be nil.
func NewOpenRouterClient(apiKey, baseURL string, httpClient *http.Client) (*OpenRouterClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenRouterClient{client: openai.NewClientWithConfig(cfg)}, nil
}

// Generate sends one chat completion. Provider errors are returned wrapped, so callers can
// inspect them with IsCreditExhausted or errors.As(*openai.APIError).
func (c *OpenRouterClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	completion := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.JSON {
		completion.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, completion)
	if err != nil {
		return "", fmt.Errorf("openrouter %s: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openrouter returned no choices")
	}

	text := resp.Choices[0].Message.Content
	if req.JSON {
		return CleanJSONBlock(text), nil
	}
	return text, nil
}

// Close is a no-op.
func (c *OpenRouterClient) Close() error { return nil }
