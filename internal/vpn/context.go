package vpn

import (
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// DefaultMaxRetries bounds recovery attempts for one failure.
const DefaultMaxRetries = 3

// ErrorContext carries per-attempt metadata through the recovery handlers.
// The retry loops stamp RetryAttempt as they advance; it shows up in the
// recovery log lines.
type ErrorContext struct {
	RequestID        string
	Timestamp        string
	FunctionName     string
	RoutingMethod    domain.RoutingMethod
	VPCEndpointsUsed bool
	RetryAttempt     int
	MaxRetries       int
}

// NewErrorContext builds the context for one VPN-path invocation.
func NewErrorContext(requestID, functionName string) ErrorContext {
	return ErrorContext{
		RequestID:        requestID,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		FunctionName:     functionName,
		RoutingMethod:    domain.RoutingVPN,
		VPCEndpointsUsed: true,
		MaxRetries:       DefaultMaxRetries,
	}
}
