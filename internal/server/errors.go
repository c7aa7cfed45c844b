package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/logging"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.With(r.Context(), s.logger).Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes err as an apierr body. Errors outside the taxonomy become INT_001 with a
// generic message; their text is only logged.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Internal("An unexpected error occurred", err)
	}

	log := logging.With(r.Context(), s.logger).With(
		zap.String("error_code", string(apiErr.Code)),
		zap.Int("status", apiErr.Status),
		zap.Bool("retryable", apiErr.Retryable),
		zap.Error(err),
	)
	if apiErr.Status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}

	if apiErr.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfterSeconds))
	}
	s.jsonResponse(w, r, apiErr.Status, apiErr.Body())
}

// decodeJSON reads the request body into dst. Empty, oversized and malformed bodies are
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return apierr.Validation(apierr.CodeInvalidFormat, "request body is required")
	case errors.As(err, &maxErr):
		return apierr.Validation(apierr.CodeInvalidFormat, "request body too large")
	default:
		return apierr.Validation(apierr.CodeInvalidFormat, "invalid JSON body").WithCause(err)
	}
}
