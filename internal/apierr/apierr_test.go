package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		service    string
		status     int
		wantCode   Code
		wantStatus int
		retryable  bool
		retryAfter int
	}{
		{"unauthorized", "gamma", 401, CodeAuthInvalidKey, http.StatusUnauthorized, false, 0},
		{"gamma credits", "gamma", 402, CodeGammaCredits, http.StatusBadGateway, false, 0},
		{"openrouter credits", "openrouter", 402, CodeOpenRouterAPI, http.StatusBadGateway, false, 0},
		{"rate limited", "exa", 429, CodeExaRate, http.StatusBadGateway, true, 60},
		{"request timeout", "firecrawl", 408, CodeFirecrawlTimeout, http.StatusBadGateway, true, 0},
		{"gateway timeout", "convex", 504, CodeConvexTimeout, http.StatusBadGateway, true, 0},
		{"server error", "gamma", 503, CodeGammaAPI, http.StatusBadGateway, true, 0},
		{"client error", "gamma", 400, CodeGammaAPI, http.StatusBadGateway, false, 0},
		{"unknown service", "mystery", 500, CodeUnknown, http.StatusBadGateway, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromHTTPStatus(tt.service, tt.status, "body")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantStatus, err.Status)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryAfter, err.RetryAfterSeconds)
			assert.Equal(t, tt.service, err.Details["service"])
		})
	}
}

func TestFromHTTPStatus_TruncatesBody(t *testing.T) {
	err := FromHTTPStatus("gamma", 418, strings.Repeat("x", 500))
	assert.Contains(t, err.Message, "(418)")
	assert.Less(t, len(err.Message), 260)
}

func TestBody(t *testing.T) {
	err := RateLimited(30)
	body := err.Body()

	assert.Equal(t, CodeRateLimited, body.ErrorCode)
	assert.True(t, body.Retryable)
	assert.Equal(t, 30, body.RetryAfterSeconds)
	assert.Nil(t, body.Details)
}

func TestMissingField(t *testing.T) {
	err := MissingField("prospect_name")

	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, CodeMissingField, err.Code)
	assert.Equal(t, "prospect_name is required", err.Message)
	assert.Equal(t, "prospect_name", err.Details["field"])
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	base := Validation(CodeInvalidURL, "bad url")
	derived := base.WithDetail("url", "ftp://x")

	assert.Nil(t, base.Details)
	assert.Equal(t, "ftp://x", derived.Details["url"])
}

func TestAsAndHTTPStatus_ThroughWrapping(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("generating: %w", Agent(CodeAgentFailed, "model failed", cause))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeAgentFailed, e.Code)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(wrapped))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(FromHTTPStatus("exa", 500, "")))
}
