// Package routing contains the error taxonomy, classifier, circuit breaker,
// and response handler shared by both routing Lambdas.
//
// This package contains:
//   - Error: the standard error type carried across the handler boundary
//   - Classify: keyword-based classification of arbitrary errors
//   - CircuitBreaker: per-service failure gate with recovery
//   - Handler: classification -> logging -> metrics -> API Gateway response
package routing

import (
	"fmt"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// ErrorCategory classifies a failure for handling, metrics, and response
// status selection.
type ErrorCategory string

const (
	CategoryAuthentication   ErrorCategory = "authentication"
	CategoryAuthorization    ErrorCategory = "authorization"
	CategoryValidation       ErrorCategory = "validation"
	CategoryNetwork          ErrorCategory = "network"
	CategoryService          ErrorCategory = "service"
	CategoryRateLimiting     ErrorCategory = "rate_limiting"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryInternal         ErrorCategory = "internal"
	CategoryVPNSpecific      ErrorCategory = "vpn_specific"
	CategoryInternetSpecific ErrorCategory = "internet_specific"
)

// ErrorSeverity drives the log level chosen for a failure.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// Error is the standard failure record for the dual routing system. It is
// constructed once at the point a failure is detected and consumed exactly
// once by the Handler.
type Error struct {
	Message       string
	Code          string
	Category      ErrorCategory
	Severity      ErrorSeverity
	RoutingMethod domain.RoutingMethod
	Details       map[string]any
	HTTPStatus    int
	Retryable     bool
	Timestamp     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(message, code string, category ErrorCategory, severity ErrorSeverity,
	method domain.RoutingMethod, status int, retryable bool, details map[string]any,
) *Error {
	if details == nil {
		details = map[string]any{}
	}
	return &Error{
		Message:       message,
		Code:          code,
		Category:      category,
		Severity:      severity,
		RoutingMethod: method,
		Details:       details,
		HTTPStatus:    status,
		Retryable:     retryable,
		Timestamp:     time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z",
	}
}

// NewAuthenticationError reports a failed credential check (401).
func NewAuthenticationError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "Authentication failed"
	}
	return newError(message, "AUTHENTICATION_FAILED", CategoryAuthentication, SeverityMedium, method, 401, false, details)
}

// NewAuthorizationError reports a denied request (403).
func NewAuthorizationError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "Access denied"
	}
	return newError(message, "ACCESS_DENIED", CategoryAuthorization, SeverityMedium, method, 403, false, details)
}

// NewValidationError reports a malformed or incomplete request (400).
func NewValidationError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "Request validation failed"
	}
	return newError(message, "VALIDATION_ERROR", CategoryValidation, SeverityLow, method, 400, false, details)
}

// NewNetworkError reports a connectivity failure on the path to Bedrock (502, retryable).
func NewNetworkError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "Network error occurred"
	}
	return newError(message, "NETWORK_ERROR", CategoryNetwork, SeverityHigh, method, 502, true, details)
}

// NewVPNError reports a tunnel or VPC endpoint failure (503, retryable).
func NewVPNError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "VPN connectivity error"
	}
	if method == "" {
		method = domain.RoutingVPN
	}
	return newError(message, "VPN_ERROR", CategoryVPNSpecific, SeverityHigh, method, 503, true, details)
}

// NewRateLimitError reports upstream throttling (429, retryable).
func NewRateLimitError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "Request rate limit exceeded"
	}
	return newError(message, "RATE_LIMIT_EXCEEDED", CategoryRateLimiting, SeverityMedium, method, 429, true, details)
}

// NewServiceError reports an upstream AWS or Bedrock failure (502, retryable).
func NewServiceError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "External service error"
	}
	return newError(message, "SERVICE_ERROR", CategoryService, SeverityHigh, method, 502, true, details)
}

// NewInternalError is the fallback for anything the classifier cannot place (500).
func NewInternalError(message string, method domain.RoutingMethod, details map[string]any) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return newError(message, "INTERNAL_ERROR", CategoryInternal, SeverityHigh, method, 500, false, details)
}
