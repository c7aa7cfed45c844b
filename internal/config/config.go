// Package config loads service configuration from an optional JSON or YAML file and the
// environment. Environment variables win over file values, which win over defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration. It is read-only after startup.
type Config struct {
	Port      int    `json:"port,omitempty" yaml:"port,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// Auth
	ServiceKey  string   `json:"agent_service_key,omitempty" yaml:"agent_service_key,omitempty"`
	JWTSecret   string   `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty"`
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`

	// Models
	LLMProvider       string `json:"llm_provider,omitempty" yaml:"llm_provider,omitempty"`
	OpenRouterAPIKey  string `json:"openrouter_api_key,omitempty" yaml:"openrouter_api_key,omitempty"`
	OpenRouterBaseURL string `json:"openrouter_base_url,omitempty" yaml:"openrouter_base_url,omitempty"`
	GeminiAPIKey      string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`
	MaxTokens         int    `json:"llm_max_tokens,omitempty" yaml:"llm_max_tokens,omitempty"`

	// Crawling
	FirecrawlURL         string `json:"firecrawl_api_url,omitempty" yaml:"firecrawl_api_url,omitempty"`
	FirecrawlAPIKey      string `json:"firecrawl_api_key,omitempty" yaml:"firecrawl_api_key,omitempty"`
	ScrapeDirectFallback bool   `json:"scrape_direct_fallback,omitempty" yaml:"scrape_direct_fallback,omitempty"`
	ScrapeUseBrowser     bool   `json:"scrape_use_browser,omitempty" yaml:"scrape_use_browser,omitempty"`

	// Presentations
	GammaAPIKey         string `json:"gamma_api_key,omitempty" yaml:"gamma_api_key,omitempty"`
	GammaAPIURL         string `json:"gamma_api_url,omitempty" yaml:"gamma_api_url,omitempty"`
	PresentationEnabled bool   `json:"presentation_enabled,omitempty" yaml:"presentation_enabled,omitempty"`

	// Search
	SearchProvider     string `json:"search_provider,omitempty" yaml:"search_provider,omitempty"`
	ExaAPIKey          string `json:"exa_api_key,omitempty" yaml:"exa_api_key,omitempty"`
	GoogleSearchAPIKey string `json:"google_search_api_key,omitempty" yaml:"google_search_api_key,omitempty"`
	GoogleSearchCX     string `json:"google_search_cx,omitempty" yaml:"google_search_cx,omitempty"`

	// Storage
	ConvexURL   string `json:"convex_url,omitempty" yaml:"convex_url,omitempty"`
	ConvexToken string `json:"convex_deployment,omitempty" yaml:"convex_deployment,omitempty"`
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	RedisURL    string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
}

// Defaults returns the configuration used when neither file nor environment set a value.
func Defaults() Config {
	return Config{
		Port:              8000,
		LogFormat:         "text",
		LogLevel:          "info",
		CORSOrigins:       []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		LLMProvider:       "openrouter",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		MaxTokens:         2000,
		FirecrawlURL:      "http://localhost:3002",
		GammaAPIURL:       "https://public-api.gamma.app/v0.2",
		SearchProvider:    "exa",
	}
}

// Load returns Defaults overlaid with the file at path (skipped when path is empty) and then
// with the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return &cfg, nil
}

// LoadFile reads a JSON or YAML file over Defaults without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)

	c.ServiceKey = getEnvString("AGENT_SERVICE_KEY", c.ServiceKey)
	c.JWTSecret = getEnvString("JWT_SECRET", c.JWTSecret)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)

	c.LLMProvider = getEnvString("LLM_PROVIDER", c.LLMProvider)
	c.OpenRouterAPIKey = getEnvString("OPENROUTER_API_KEY", c.OpenRouterAPIKey)
	c.OpenRouterBaseURL = getEnvString("OPENROUTER_BASE_URL", c.OpenRouterBaseURL)
	c.GeminiAPIKey = getEnvString("GEMINI_API_KEY", c.GeminiAPIKey)
	c.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.MaxTokens)

	c.FirecrawlURL = getEnvString("FIRECRAWL_API_URL", c.FirecrawlURL)
	c.FirecrawlAPIKey = getEnvString("FIRECRAWL_API_KEY", c.FirecrawlAPIKey)
	c.ScrapeDirectFallback = getEnvBool("SCRAPE_DIRECT_FALLBACK", c.ScrapeDirectFallback)
	c.ScrapeUseBrowser = getEnvBool("SCRAPE_USE_BROWSER", c.ScrapeUseBrowser)

	c.GammaAPIKey = getEnvString("GAMMA_API_KEY", c.GammaAPIKey)
	c.GammaAPIURL = getEnvString("GAMMA_API_URL", c.GammaAPIURL)
	c.PresentationEnabled = getEnvBool("PRESENTATION_ENABLED", c.PresentationEnabled)

	c.SearchProvider = getEnvString("SEARCH_PROVIDER", c.SearchProvider)
	c.ExaAPIKey = getEnvString("EXA_API_KEY", c.ExaAPIKey)
	c.GoogleSearchAPIKey = getEnvString("GOOGLE_SEARCH_API_KEY", c.GoogleSearchAPIKey)
	c.GoogleSearchCX = getEnvString("GOOGLE_SEARCH_CX", c.GoogleSearchCX)

	c.ConvexURL = getEnvString("CONVEX_URL", getEnvString("NEXT_PUBLIC_CONVEX_URL", c.ConvexURL))
	c.ConvexToken = getEnvString("CONVEX_DEPLOYMENT", c.ConvexToken)
	c.DatabaseURL = getEnvString("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnvString("REDIS_URL", c.RedisURL)
}

// LLMAPIKey returns the key for the selected model provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.OpenRouterAPIKey
}

// Validate checks value ranges and the credentials every command needs. requireServiceKey is
// set by the HTTP server, which refuses to start without a key.
func (c *Config) Validate(requireServiceKey bool) error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("config error: 'llm_max_tokens' must be positive"))
	}

	switch c.LLMProvider {
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			errs = append(errs, fmt.Errorf("OPENROUTER_API_KEY is required"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, fmt.Errorf("GEMINI_API_KEY is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("config error: unknown llm_provider %q", c.LLMProvider))
	}

	switch c.SearchProvider {
	case "exa", "google":
	default:
		errs = append(errs, fmt.Errorf("config error: unknown search_provider %q", c.SearchProvider))
	}

	if requireServiceKey && c.ServiceKey == "" {
		errs = append(errs, fmt.Errorf("AGENT_SERVICE_KEY is required"))
	}

	return errors.Join(errs...)
}

// Missing lists optional integrations without credentials, for startup logging.
func (c *Config) Missing() []string {
	optional := []struct {
		name string
		set  bool
	}{
		{"EXA_API_KEY", c.ExaAPIKey != "" || c.SearchProvider != "exa"},
		{"FIRECRAWL_API_KEY", c.FirecrawlAPIKey != ""},
		{"CONVEX_URL", c.ConvexURL != ""},
		{"CONVEX_DEPLOYMENT", c.ConvexToken != ""},
		{"GAMMA_API_KEY", c.GammaAPIKey != ""},
	}
	var missing []string
	for _, o := range optional {
		if !o.set {
			missing = append(missing, o.name)
		}
	}
	return missing
}
