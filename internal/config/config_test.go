package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"port": 9000,
		"llm_provider": "gemini",
		"presentation_enabled": true,
		"cors_origins": ["https://app.example"]
	}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.True(t, cfg.PresentationEnabled)
	assert.Equal(t, []string{"https://app.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2000, cfg.MaxTokens, "unset values keep defaults")
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "search_provider: google\ngoogle_search_cx: abc123\nllm_max_tokens: 1500\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.SearchProvider)
	assert.Equal(t, "abc123", cfg.GoogleSearchCX)
	assert.Equal(t, 1500, cfg.MaxTokens)
	assert.Equal(t, 8000, cfg.Port)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(writeFile(t, "config.json", `{ invalid json }`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")

	_, err = LoadFile(writeFile(t, "config.yml", "port: [1, 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config YAML")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = LoadFile("")
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"port": 9000, "exa_api_key": "from-file", "openrouter_api_key": "file-key"}`)
	t.Setenv("PORT", "9100")
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("PRESENTATION_ENABLED", "true")
	t.Setenv("NEXT_PUBLIC_CONVEX_URL", "https://convex.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "env-key", cfg.OpenRouterAPIKey)
	assert.Equal(t, "from-file", cfg.ExaAPIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.PresentationEnabled)
	assert.Equal(t, "https://convex.example", cfg.ConvexURL)
}

func TestLoad_IgnoresMalformedEnvNumbers(t *testing.T) {
	t.Setenv("PORT", "eighty")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Defaults()
		c.OpenRouterAPIKey = "or-key"
		c.ServiceKey = "svc"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		serve   bool
		wantErr string
	}{
		{"valid", func(*Config) {}, true, ""},
		{"missing openrouter key", func(c *Config) { c.OpenRouterAPIKey = "" }, false, "OPENROUTER_API_KEY is required"},
		{"gemini needs its own key", func(c *Config) { c.LLMProvider = "gemini" }, false, "GEMINI_API_KEY is required"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "llama" }, false, "unknown llm_provider"},
		{"bad port", func(c *Config) { c.Port = 70000 }, false, "'port' must be between"},
		{"bad tokens", func(c *Config) { c.MaxTokens = 0 }, false, "'llm_max_tokens' must be positive"},
		{"unknown search", func(c *Config) { c.SearchProvider = "bing" }, false, "unknown search_provider"},
		{"service key required to serve", func(c *Config) { c.ServiceKey = "" }, true, "AGENT_SERVICE_KEY is required"},
		{"service key optional for cli", func(c *Config) { c.ServiceKey = "" }, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate(tt.serve)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLLMAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.OpenRouterAPIKey = "or"
	cfg.GeminiAPIKey = "gm"
	assert.Equal(t, "or", cfg.LLMAPIKey())
	cfg.LLMProvider = "gemini"
	assert.Equal(t, "gm", cfg.LLMAPIKey())
}

func TestMissing(t *testing.T) {
	cfg := Defaults()
	cfg.FirecrawlAPIKey = "fc"
	missing := cfg.Missing()
	assert.Contains(t, missing, "EXA_API_KEY")
	assert.NotContains(t, missing, "FIRECRAWL_API_KEY")
}

func TestConfigJWT(t *testing.T) {
	cfg := Defaults()
	jwtCfg, err := cfg.JWT()
	require.NoError(t, err)
	assert.Nil(t, jwtCfg)

	cfg.JWTSecret = "from-file"
	t.Setenv("JWT_EXPIRATION_HOURS", "2")
	jwtCfg, err = cfg.JWT()
	require.NoError(t, err)
	assert.Equal(t, "from-file", jwtCfg.Secret)
	assert.Equal(t, 2, jwtCfg.ExpirationHours)
	assert.Equal(t, "2h0m0s", jwtCfg.Expiration().String())

	t.Setenv("JWT_EXPIRATION_HOURS", "0")
	_, err = cfg.JWT()
	assert.Error(t, err)
}
