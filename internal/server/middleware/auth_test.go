package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPrincipal string

func (p testPrincipal) ClientID() string { return string(p) }

// testTokenValidator accepts tokens registered in valid.
type testTokenValidator struct {
	valid map[string]string
}

func (v *testTokenValidator) ValidateToken(token string) (Principal, error) {
	client, ok := v.valid[token]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return testPrincipal(client), nil
}

func serve(t *testing.T, h func(http.Handler) http.Handler, headers map[string]string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPost, "/agents/proposal/generate", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(next).ServeHTTP(rec, req)
	return rec, seen
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) apierr.Body {
	t.Helper()
	var body apierr.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuth_ServiceKey(t *testing.T) {
	tests := []struct {
		name       string
		serviceKey string
		headers    map[string]string
		wantStatus int
		wantCode   apierr.Code
	}{
		{"valid key", "secret", map[string]string{"x-api-key": "secret"}, http.StatusOK, ""},
		{"missing key", "secret", nil, http.StatusUnauthorized, apierr.CodeAuthMissingKey},
		{"wrong key", "secret", map[string]string{"x-api-key": "nope"}, http.StatusForbidden, apierr.CodeAuthInvalidKey},
		{"service key unset", "", map[string]string{"x-api-key": "anything"}, http.StatusInternalServerError, apierr.CodeConfigMissingEnv},
		{"bearer ignored without validator", "secret", map[string]string{"Authorization": "Bearer tok"}, http.StatusUnauthorized, apierr.CodeAuthMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, client := serve(t, Auth(tt.serviceKey, nil, nil), tt.headers)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode == "" {
				assert.Equal(t, ServiceKeyClient, client)
				return
			}
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body.ErrorCode)
			assert.False(t, body.Retryable)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestAuth_BearerToken(t *testing.T) {
	tokens := &testTokenValidator{valid: map[string]string{"good": "web-app"}}

	tests := []struct {
		name       string
		serviceKey string
		headers    map[string]string
		wantStatus int
		wantClient string
	}{
		{"valid token", "secret", map[string]string{"Authorization": "Bearer good"}, http.StatusOK, "web-app"},
		{"case-insensitive scheme", "secret", map[string]string{"Authorization": "bearer good"}, http.StatusOK, "web-app"},
		{"valid token without service key", "", map[string]string{"Authorization": "Bearer good"}, http.StatusOK, "web-app"},
		{"invalid token", "secret", map[string]string{"Authorization": "Bearer bad"}, http.StatusForbidden, ""},
		{"key still accepted", "secret", map[string]string{"x-api-key": "secret"}, http.StatusOK, ServiceKeyClient},
		{"no credentials", "", nil, http.StatusUnauthorized, ""},
		{"key without configured service key", "", map[string]string{"x-api-key": "guess"}, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, client := serve(t, Auth(tt.serviceKey, tokens, nil), tt.headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantClient, client)
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := bearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Basic abc")
	_, ok = bearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Bearer  abc ")
	token, ok := bearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}
