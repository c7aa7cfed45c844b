package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Request is one completion call.
type Request struct {
	Model     string // provider model ID; see ResolveModel
	System    string
	Prompt    string
	MaxTokens int
	JSON      bool // ask for a JSON object and strip any wrapping
}

// Client is an abstraction over model providers.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// NewClient creates a client for cfg.Provider.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	cfg = cfg.WithDefaults()
	switch cfg.Provider {
	case ProviderOpenRouter:
		return NewOpenRouterClient(cfg.APIKey, cfg.BaseURL, nil)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, defaultModel string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = DefaultGeminiModel
	}

	return &GeminiClient{client: client, defaultModel: defaultModel}, nil
}

// Generate runs req against the Gemini model matching req.Model, or the client default when the
// requested ID is not a Gemini model.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	name := geminiModel(req.Model, c.defaultModel)
	model := c.client.GenerativeModel(name)
	model.SetTemperature(0.7)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", name, err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}
	if req.JSON {
		return CleanJSONBlock(text), nil
	}
	return text, nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiModel(requested, fallback string) string {
	name := strings.TrimPrefix(requested, "google/")
	if strings.HasPrefix(name, "gemini-") {
		return name
	}
	return fallback
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
