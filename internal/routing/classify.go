package routing

import (
	"errors"
	"strings"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// Keyword groups checked in priority order. First match wins, so a message
// containing both "bedrock" and "timeout" classifies as network. Changing
// the order changes observable HTTP status codes.
var classifierRules = []struct {
	keywords []string
	build    func(method domain.RoutingMethod, details map[string]any) *Error
}{
	{
		keywords: []string{"unauthorized", "authentication", "invalid token", "api key"},
		build: func(m domain.RoutingMethod, d map[string]any) *Error {
			return NewAuthenticationError("", m, d)
		},
	},
	{
		keywords: []string{"forbidden", "access denied", "permission"},
		build: func(m domain.RoutingMethod, d map[string]any) *Error {
			return NewAuthorizationError("", m, d)
		},
	},
	{
		keywords: []string{"invalid", "missing", "required", "validation"},
		build: func(m domain.RoutingMethod, d map[string]any) *Error {
			return NewValidationError("", m, d)
		},
	},
	{
		keywords: []string{"timeout", "connection", "network", "dns"},
		build: func(m domain.RoutingMethod, d map[string]any) *Error {
			return NewNetworkError("", m, d)
		},
	},
	{
		keywords: []string{"vpn", "tunnel", "vpc endpoint"},
		build: func(m domain.RoutingMethod, d map[string]any) *Error {
			return NewVPNError("", m, d)
		},
	},
	{
		keywords: []string{"throttl", "rate limit", "429"},
		build: func(m domain.RoutingMethod, d map[string]any) *Error {
			return NewRateLimitError("", m, d)
		},
	},
	{
		keywords: []string{"bedrock", "service", "aws"},
		build: func(m domain.RoutingMethod, d map[string]any) *Error {
			return NewServiceError("", m, d)
		},
	},
}

// Classify converts an arbitrary error into a *Error via case-insensitive
// keyword search over its string form. Errors that already are *Error pass
// through unchanged.
func Classify(err error, method domain.RoutingMethod) *Error {
	var dre *Error
	if errors.As(err, &dre) {
		return dre
	}

	s := strings.ToLower(err.Error())
	details := map[string]any{"original_error": err.Error()}

	for _, rule := range classifierRules {
		for _, kw := range rule.keywords {
			if strings.Contains(s, kw) {
				return rule.build(method, details)
			}
		}
	}

	return NewInternalError("", method, details)
}
