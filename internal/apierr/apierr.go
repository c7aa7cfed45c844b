// Package apierr defines the service error taxonomy: stable error codes, HTTP status mapping,
// retry hints and the JSON body returned to API callers.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a stable, machine-readable error identifier.
type Code string

// Authentication codes
const (
	CodeAuthInvalidKey Code = "AUTH_001"
	CodeAuthMissingKey Code = "AUTH_002"
	CodeAuthExpiredKey Code = "AUTH_003"
)

// External service codes
const (
	CodeGammaAPI     Code = "EXT_001"
	CodeGammaTimeout Code = "EXT_002"
	CodeGammaRate    Code = "EXT_003"
	CodeGammaCredits Code = "EXT_004"

	CodeExaAPI     Code = "EXT_010"
	CodeExaTimeout Code = "EXT_011"
	CodeExaRate    Code = "EXT_012"

	CodeFirecrawlAPI          Code = "EXT_020"
	CodeFirecrawlTimeout      Code = "EXT_021"
	CodeFirecrawlScrapeFailed Code = "EXT_022"

	CodeConvexAPI            Code = "EXT_040"
	CodeConvexTimeout        Code = "EXT_041"
	CodeConvexMutationFailed Code = "EXT_042"

	CodeOpenRouterAPI     Code = "EXT_050"
	CodeOpenRouterTimeout Code = "EXT_051"
	CodeOpenRouterRate    Code = "EXT_052"
)

// Validation codes
const (
	CodeMissingField     Code = "VAL_001"
	CodeInvalidURL       Code = "VAL_002"
	CodeInvalidFormat    Code = "VAL_003"
	CodeTemplateNotFound Code = "VAL_004"
	CodeModelNotFound    Code = "VAL_005"
)

// Agent, configuration and general codes
const (
	CodeAgentFailed      Code = "AGT_001"
	CodeAgentTimeout     Code = "AGT_002"
	CodeAgentOutput      Code = "AGT_003"
	CodeConfigMissingEnv Code = "CFG_001"
	CodeConfigInvalid    Code = "CFG_002"
	CodeRateLimited      Code = "RTL_001"
	CodeInternal         Code = "INT_001"
	CodeUnknown          Code = "INT_999"
)

// Error is the structured error carried from any component up to the HTTP boundary.
type Error struct {
	Message           string
	Code              Code
	Status            int
	Retryable         bool
	RetryAfterSeconds int
	Details           map[string]any
	Cause             error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetail returns a copy of e with key set in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Body is the JSON error document returned to callers.
type Body struct {
	Error             string         `json:"error"`
	ErrorCode         Code           `json:"error_code"`
	Retryable         bool           `json:"retryable"`
	RetryAfterSeconds int            `json:"retry_after_seconds,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
}

// Body renders the caller-facing representation of e.
func (e *Error) Body() Body {
	return Body{
		Error:             e.Message,
		ErrorCode:         e.Code,
		Retryable:         e.Retryable,
		RetryAfterSeconds: e.RetryAfterSeconds,
		Details:           e.Details,
	}
}

// Validation reports a rejected request (400).
func Validation(code Code, message string) *Error {
	return &Error{Message: message, Code: code, Status: http.StatusBadRequest}
}

// MissingField reports an absent or blank required field.
func MissingField(field string) *Error {
	return Validation(CodeMissingField, field+" is required").WithDetail("field", field)
}

// Unauthenticated reports a request without credentials (401).
func Unauthenticated(message string) *Error {
	return &Error{Message: message, Code: CodeAuthMissingKey, Status: http.StatusUnauthorized}
}

// Forbidden reports a request with invalid credentials (403).
func Forbidden(message string) *Error {
	return &Error{Message: message, Code: CodeAuthInvalidKey, Status: http.StatusForbidden}
}

// Configuration reports a server-side misconfiguration (500).
func Configuration(message string) *Error {
	return &Error{Message: message, Code: CodeConfigMissingEnv, Status: http.StatusInternalServerError}
}

// Unavailable reports a feature switched off by configuration (503).
func Unavailable(message string) *Error {
	return &Error{Message: message, Code: CodeConfigMissingEnv, Status: http.StatusServiceUnavailable}
}

// Agent reports a model run that failed or produced unusable output (500).
func Agent(code Code, message string, cause error) *Error {
	return &Error{Message: message, Code: code, Status: http.StatusInternalServerError, Cause: cause}
}

// CreditsExhausted reports that the model provider refused the request for lack of credits (402).
func CreditsExhausted(message string, cause error) *Error {
	return &Error{Message: message, Code: CodeOpenRouterAPI, Status: http.StatusPaymentRequired, Cause: cause}
}

// RateLimited reports a request rejected by the service's own limiter (429).
func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Message:           "Rate limit exceeded. Please try again later.",
		Code:              CodeRateLimited,
		Status:            http.StatusTooManyRequests,
		Retryable:         true,
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// Internal wraps an unexpected failure (500).
func Internal(message string, cause error) *Error {
	return &Error{Message: message, Code: CodeInternal, Status: http.StatusInternalServerError, Cause: cause}
}

type serviceCodes struct {
	api, rate, timeout Code
}

var services = map[string]serviceCodes{
	"gamma":      {CodeGammaAPI, CodeGammaRate, CodeGammaTimeout},
	"exa":        {CodeExaAPI, CodeExaRate, CodeExaTimeout},
	"google":     {CodeExaAPI, CodeExaRate, CodeExaTimeout},
	"firecrawl":  {CodeFirecrawlAPI, CodeFirecrawlAPI, CodeFirecrawlTimeout},
	"convex":     {CodeConvexAPI, CodeConvexAPI, CodeConvexTimeout},
	"openrouter": {CodeOpenRouterAPI, CodeOpenRouterRate, CodeOpenRouterTimeout},
}

// External builds a failure attributed to a third-party provider (502).
func External(service string, code Code, message string, retryable bool) *Error {
	return &Error{
		Message:   message,
		Code:      code,
		Status:    http.StatusBadGateway,
		Retryable: retryable,
		Details:   map[string]any{"service": service},
	}
}

// FromHTTPStatus classifies a non-success response from a provider.
func FromHTTPStatus(service string, status int, body string) *Error {
	codes, ok := services[strings.ToLower(service)]
	if !ok {
		codes = serviceCodes{CodeUnknown, CodeUnknown, CodeUnknown}
	}

	switch {
	case status == http.StatusUnauthorized:
		e := &Error{
			Message: service + " API: Invalid credentials",
			Code:    CodeAuthInvalidKey,
			Status:  http.StatusUnauthorized,
		}
		return e.WithDetail("service", service)
	case status == http.StatusPaymentRequired:
		code := codes.api
		if strings.EqualFold(service, "gamma") {
			code = CodeGammaCredits
		}
		return External(service, code, service+" API: Insufficient credits or subscription required", false)
	case status == http.StatusTooManyRequests:
		e := External(service, codes.rate, service+" API: Rate limit exceeded", true)
		e.RetryAfterSeconds = 60
		return e
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return External(service, codes.timeout, service+" API: Request timeout", true)
	case status >= 500:
		return External(service, codes.api, fmt.Sprintf("%s API: Server error (%d)", service, status), true)
	default:
		if len(body) > 200 {
			body = body[:200]
		}
		return External(service, codes.api, fmt.Sprintf("%s API error (%d): %s", service, status, body), false)
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus returns the status a caller should see for err.
func HTTPStatus(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether err was classified as transient.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}
