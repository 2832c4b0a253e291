package routing

import (
	"errors"
	"testing"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg       string
		category  ErrorCategory
		code      string
		status    int
		retryable bool
	}{
		{"request unauthorized", CategoryAuthentication, "AUTHENTICATION_FAILED", 401, false},
		{"bad api key supplied", CategoryAuthentication, "AUTHENTICATION_FAILED", 401, false},
		{"403 Forbidden", CategoryAuthorization, "ACCESS_DENIED", 403, false},
		{"access denied by policy", CategoryAuthorization, "ACCESS_DENIED", 403, false},
		{"missing required parameter: modelId", CategoryValidation, "VALIDATION_ERROR", 400, false},
		{"connection reset by peer", CategoryNetwork, "NETWORK_ERROR", 502, true},
		{"read timeout after 30s", CategoryNetwork, "NETWORK_ERROR", 502, true},
		{"dns lookup failed", CategoryNetwork, "NETWORK_ERROR", 502, true},
		{"vpn tunnel unreachable", CategoryVPNSpecific, "VPN_ERROR", 503, true},
		{"vpc endpoint unavailable", CategoryVPNSpecific, "VPN_ERROR", 503, true},
		{"request throttled by upstream", CategoryRateLimiting, "RATE_LIMIT_EXCEEDED", 429, true},
		{"got 429 from upstream", CategoryRateLimiting, "RATE_LIMIT_EXCEEDED", 429, true},
		{"bedrock returned 500", CategoryService, "SERVICE_ERROR", 502, true},
		{"aws internal failure", CategoryService, "SERVICE_ERROR", 502, true},
		{"something unexpected happened", CategoryInternal, "INTERNAL_ERROR", 500, false},
	}

	for _, tt := range tests {
		got := Classify(errors.New(tt.msg), domain.RoutingInternet)
		if got.Category != tt.category {
			t.Errorf("Classify(%q) category = %s, want %s", tt.msg, got.Category, tt.category)
		}
		if got.Code != tt.code {
			t.Errorf("Classify(%q) code = %s, want %s", tt.msg, got.Code, tt.code)
		}
		if got.HTTPStatus != tt.status {
			t.Errorf("Classify(%q) status = %d, want %d", tt.msg, got.HTTPStatus, tt.status)
		}
		if got.Retryable != tt.retryable {
			t.Errorf("Classify(%q) retryable = %v, want %v", tt.msg, got.Retryable, tt.retryable)
		}
	}
}

// Priority order is authoritative: network keywords are checked before
// service keywords, so "bedrock" plus "timeout" classifies as network.
func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		msg      string
		category ErrorCategory
	}{
		{"bedrock request timeout", CategoryNetwork},
		{"vpn tunnel connection lost", CategoryNetwork}, // "connection" checked before "vpn"
		{"bedrock throttled us", CategoryRateLimiting},
		{"invalid token", CategoryAuthentication}, // auth checked before validation
	}

	for _, tt := range tests {
		if got := Classify(errors.New(tt.msg), domain.RoutingVPN); got.Category != tt.category {
			t.Errorf("Classify(%q) = %s, want %s", tt.msg, got.Category, tt.category)
		}
	}
}

func TestClassifyPassthrough(t *testing.T) {
	orig := NewVPNError("tunnel down", domain.RoutingVPN, nil)
	got := Classify(orig, domain.RoutingInternet)
	if got != orig {
		t.Fatalf("Classify should pass through *Error unchanged")
	}
}

func TestClassifySetsRoutingMethod(t *testing.T) {
	got := Classify(errors.New("timeout"), domain.RoutingVPN)
	if got.RoutingMethod != domain.RoutingVPN {
		t.Errorf("RoutingMethod = %s, want vpn", got.RoutingMethod)
	}
	if got.Details["original_error"] != "timeout" {
		t.Errorf("Details missing original_error, got %v", got.Details)
	}
}
