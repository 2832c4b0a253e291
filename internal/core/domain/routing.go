package domain

import "strings"

// RoutingMethod identifies which network path a request travels to reach
// commercial Bedrock.
type RoutingMethod string

const (
	RoutingInternet RoutingMethod = "internet"
	RoutingVPN      RoutingMethod = "vpn"
	RoutingUnknown  RoutingMethod = "unknown"
)

func (m RoutingMethod) String() string {
	return string(m)
}

// DetectRoutingMethod derives the routing method from an API Gateway path.
// Paths containing a /vpn/ segment route through the VPN tunnel; everything
// else defaults to internet for backward compatibility.
func DetectRoutingMethod(path string) RoutingMethod {
	if strings.Contains(path, "/vpn/") {
		return RoutingVPN
	}
	return RoutingInternet
}
