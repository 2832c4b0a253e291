// Package vpn handles failures specific to the VPN routing path: tunnel
// drops, VPC endpoint outages, cross-partition routing faults, and Bedrock
// authentication failures seen over the tunnel.
package vpn

import "fmt"

// TunnelError reports a site-to-site VPN tunnel failure.
type TunnelError struct {
	TunnelID string
	Message  string
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("vpn tunnel %s failure: %s", e.TunnelID, e.Message)
}

// EndpointError reports an unreachable or unhealthy VPC interface endpoint.
type EndpointError struct {
	Service     string
	EndpointURL string
	Message     string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("vpc endpoint %s failure: %s", e.Service, e.Message)
}

// RoutingFault reports a cross-partition routing failure between the
// GovCloud and commercial sides of the tunnel.
type RoutingFault struct {
	SourcePartition      string
	DestinationPartition string
	Message              string
}

func (e *RoutingFault) Error() string {
	return fmt.Sprintf("cross-partition routing %s->%s failure: %s",
		e.SourcePartition, e.DestinationPartition, e.Message)
}

// AuthError reports a Bedrock authentication failure over the VPN path.
// It is terminal: retrying with the same credentials cannot succeed.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("bedrock authentication failure over vpn: %s", e.Message)
}

// CircuitOpenError is returned when the breaker refuses an operation.
type CircuitOpenError struct {
	Service string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s", e.Service)
}
