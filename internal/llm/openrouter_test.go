package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type chatRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func completionServer(t *testing.T, status int, body string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestOpenRouterClient_Generate(t *testing.T) {
	var seen chatRequest
	srv := completionServer(t, http.StatusOK,
		`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Sure:\n{\"next_steps\": \"Call\"}"}}]}`,
		&seen)
	defer srv.Close()

	client, err := NewOpenRouterClient("or-key", srv.URL, srv.Client())
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), Request{
		Model:     "openai/gpt-4o",
		System:    "You write proposals.",
		Prompt:    "Prospect Name: Acme",
		MaxTokens: DefaultMaxTokens,
		JSON:      true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"next_steps": "Call"}`, out)
	assert.Equal(t, "openai/gpt-4o", seen.Model)
	assert.Equal(t, 2000, seen.MaxTokens)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "Prospect Name: Acme", seen.Messages[1].Content)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
}

func TestOpenRouterClient_EmptyModelUsesDefault(t *testing.T) {
	var seen chatRequest
	srv := completionServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"plain"}}]}`, &seen)
	defer srv.Close()

	client, err := NewOpenRouterClient("or-key", srv.URL, srv.Client())
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
	assert.Equal(t, DefaultModel, seen.Model)
	assert.Len(t, seen.Messages, 1)
	assert.Nil(t, seen.ResponseFormat)
}

func TestOpenRouterClient_PaymentRequiredIsCreditExhaustion(t *testing.T) {
	srv := completionServer(t, http.StatusPaymentRequired,
		`{"error":{"message":"This request requires more credits, or fewer max_tokens.","code":402}}`, nil)
	defer srv.Close()

	client, err := NewOpenRouterClient("or-key", srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Model: "anthropic/claude-3.5-sonnet", Prompt: "x"})

	require.Error(t, err)
	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.HTTPStatusCode)
	assert.True(t, IsCreditExhausted(err))
}

func TestOpenRouterClient_ServerErrorIsNotCreditExhaustion(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError,
		`{"error":{"message":"upstream overloaded","code":500}}`, nil)
	defer srv.Close()

	client, err := NewOpenRouterClient("or-key", srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Model: "openai/gpt-4o", Prompt: "x"})

	require.Error(t, err)
	assert.False(t, IsCreditExhausted(err))
}

func TestNewOpenRouterClient_RequiresKey(t *testing.T) {
	_, err := NewOpenRouterClient("", "", nil)
	assert.Error(t, err)
}

func TestIsCreditExhausted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed api error", &openai.APIError{HTTPStatusCode: 402, Message: "no"}, true},
		{"typed api code", &openai.APIError{HTTPStatusCode: 400, Code: float64(402)}, true},
		{"typed request error", fmt.Errorf("wrap: %w", &openai.RequestError{HTTPStatusCode: 402, Err: errors.New("x")}), true},
		{"googleapi", &googleapi.Error{Code: 402, Message: "billing"}, true},
		{"status in text", errors.New("Error code: 402 - insufficient"), true},
		{"python dict repr", errors.New("{'error': {'code': 402}}"), true},
		{"json code", errors.New(`{"error":{"message":"x","code": 402}}`), true},
		{"requires more credits", errors.New("This request Requires More Credits"), true},
		{"can only afford", errors.New("You can only afford 120 tokens"), true},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, false},
		{"generic", errors.New("context deadline exceeded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCreditExhausted(tt.err))
		})
	}
}

func TestBuildExtractionPrompt(t *testing.T) {
	schema := ExtractionSchema{
		Name:        "Knowledge",
		Description: "Analyze the page.",
		Fields: []SchemaField{
			{Name: "summary", Required: true},
			{Name: "relevance_score", Type: "number", Description: "1-10"},
		},
	}

	prompt := BuildExtractionPrompt(schema, "Page content", "hello")

	assert.Contains(t, prompt, "Analyze the page.\n\n")
	assert.Contains(t, prompt, `  "summary": "string" (required),`)
	assert.Contains(t, prompt, `  "relevance_score": number // 1-10`+"\n}")
	assert.Contains(t, prompt, "Page content:\n\"\"\"\nhello\n\"\"\"\n")
}
