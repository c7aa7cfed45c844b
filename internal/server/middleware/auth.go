// Package middleware provides HTTP middleware for authenticating agent API callers.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"go.uber.org/zap"
)

// APIKeyHeader carries the shared service key.
const APIKeyHeader = "x-api-key"

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const clientIDKey ContextKey = "clientID"

// ServiceKeyClient is the client ID recorded for requests authenticated by the service key.
const ServiceKeyClient = "service-key"

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (Principal, error)
}

// Principal is the authenticated caller described by a token.
type Principal interface {
	ClientID() string
}

// Auth accepts a request when its x-api-key header equals serviceKey, or, when tokens is
// non-nil, when it carries a valid bearer token. A request presenting neither credential is
// rejected with 401, a wrong credential with 403, and an unset service key with no token
// validator with 500.
func Auth(serviceKey string, tokens TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := authenticate(r, serviceKey, tokens)
			if err != nil {
				if err.Code == apierr.CodeConfigMissingEnv {
					logger.Error("AGENT_SERVICE_KEY not set; rejecting agent request")
				} else {
					logger.Warn("rejected request", zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr), zap.String("error_code", string(err.Code)))
				}
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), clientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, serviceKey string, tokens TokenValidator) (string, *apierr.Error) {
	if token, ok := bearerToken(r); ok && tokens != nil {
		principal, err := tokens.ValidateToken(token)
		if err != nil {
			return "", apierr.Forbidden("Invalid bearer token").WithCause(err)
		}
		return principal.ClientID(), nil
	}

	if serviceKey == "" && tokens == nil {
		return "", apierr.Configuration("Service misconfigured")
	}

	key := r.Header.Get(APIKeyHeader)
	if key == "" {
		return "", apierr.Unauthenticated("Missing API key")
	}
	if serviceKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(serviceKey)) != 1 {
		return "", apierr.Forbidden("Invalid API Key")
	}
	return ServiceKeyClient, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func writeError(w http.ResponseWriter, err *apierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(err.Body())
}

// ClientID returns the authenticated client recorded on ctx, or "".
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}
