// Package llm wraps the model providers behind one Client interface and owns the model registry
// and the credit-exhaustion predicate used for fallback decisions.
package llm

import "strings"

// Provider names a model backend.
type Provider string

const (
	// ProviderOpenRouter routes OpenAI-compatible requests to any hosted model.
	ProviderOpenRouter Provider = "openrouter"
	// ProviderGemini calls Google Gemini directly.
	ProviderGemini Provider = "gemini"
)

const (
	// DefaultModelKey is the registry key of the free default model.
	DefaultModelKey = "grok"
	// DefaultModel is the free model used when none is requested and as the credit fallback.
	DefaultModel = "x-ai/grok-4.1-fast:free"
	// DefaultMaxTokens bounds proposal output.
	DefaultMaxTokens = 2000
	// DefaultOpenRouterURL is the OpenRouter API base.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	// DefaultGeminiModel is used by the Gemini provider for registry models it cannot serve.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Model is one registry entry: a short key callers may request and the provider model ID.
type Model struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

var registry = []Model{
	{Key: "grok", Name: DefaultModel},
	{Key: "grok-fast", Name: DefaultModel},
	{Key: "gpt-4o", Name: "openai/gpt-4o"},
	{Key: "gpt-4o-mini", Name: "openai/gpt-4o-mini"},
	{Key: "claude-sonnet", Name: "anthropic/claude-3.5-sonnet"},
	{Key: "claude-haiku", Name: "anthropic/claude-3-haiku"},
	{Key: "gemini-pro", Name: "google/gemini-pro-1.5"},
	{Key: "deepseek", Name: "deepseek/deepseek-chat"},
}

// Models returns the registry in display order.
func Models() []Model {
	out := make([]Model, len(registry))
	copy(out, registry)
	return out
}

// ResolveModel maps a requested key to a provider model ID. An empty request resolves to
// DefaultModel. Unknown values pass through unchanged with known=false, so callers may name
// provider IDs directly.
func ResolveModel(requested string) (id string, known bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return DefaultModel, true
	}
	for _, m := range registry {
		if m.Key == requested {
			return m.Name, true
		}
	}
	return requested, false
}

// Config selects and configures a provider.
type Config struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	GeminiModel string
}

// WithDefaults fills empty fields.
func (c Config) WithDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenRouter
	}
	if c.BaseURL == "" && c.Provider == ProviderOpenRouter {
		c.BaseURL = DefaultOpenRouterURL
	}
	if c.GeminiModel == "" {
		c.GeminiModel = DefaultGeminiModel
	}
	return c
}
