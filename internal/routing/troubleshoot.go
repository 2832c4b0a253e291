package routing

// Troubleshooting is the human-readable guidance block attached to every
// error response.
type Troubleshooting struct {
	Description  string   `json:"description"`
	CommonCauses []string `json:"common_causes,omitempty"`
	Solutions    []string `json:"solutions"`
}

var troubleshootingGuides = map[ErrorCategory]Troubleshooting{
	CategoryAuthentication: {
		Description: "Authentication failed - check your API key or credentials",
		CommonCauses: []string{
			"Invalid or expired API key",
			"Missing X-API-Key header",
			"Incorrect authentication method",
		},
		Solutions: []string{
			"Verify your API key is correct and active",
			"Check that you're using the correct authentication header",
			"Ensure your API key has the right permissions",
		},
	},
	CategoryAuthorization: {
		Description: "Access denied - insufficient permissions",
		CommonCauses: []string{
			"API key lacks permission for this routing method",
			"Cross-routing attempt (internet key on VPN endpoint)",
			"Usage plan restrictions",
		},
		Solutions: []string{
			"Use the correct API key for your routing method",
			"Check your usage plan permissions",
			"Contact administrator for access",
		},
	},
	CategoryVPNSpecific: {
		Description: "VPN connectivity issue",
		CommonCauses: []string{
			"VPN tunnel is down",
			"VPC endpoint unavailable",
			"Network routing issues",
		},
		Solutions: []string{
			"Check VPN tunnel status",
			"Verify VPC endpoint health",
			"Try internet routing as fallback",
			"Contact network administrator",
		},
	},
	CategoryNetwork: {
		Description: "Network connectivity problem",
		CommonCauses: []string{
			"DNS resolution failure",
			"Connection timeout",
			"Network congestion",
		},
		Solutions: []string{
			"Retry the request",
			"Check network connectivity",
			"Verify DNS settings",
		},
	},
	CategoryRateLimiting: {
		Description: "Request rate limit exceeded",
		CommonCauses: []string{
			"Too many requests in short time",
			"Usage plan limits reached",
			"Burst limit exceeded",
		},
		Solutions: []string{
			"Implement exponential backoff",
			"Reduce request frequency",
			"Consider upgrading usage plan",
		},
	},
	CategoryService: {
		Description: "External service error",
		CommonCauses: []string{
			"Bedrock service unavailable",
			"Model not available",
			"Service maintenance",
		},
		Solutions: []string{
			"Retry with exponential backoff",
			"Try different model if applicable",
			"Check AWS service status",
		},
	},
}

// TroubleshootingFor returns the guidance for a category, falling back to a
// generic description/solution pair for categories without a custom guide.
func TroubleshootingFor(category ErrorCategory) Troubleshooting {
	if guide, ok := troubleshootingGuides[category]; ok {
		return guide
	}
	return Troubleshooting{
		Description: "An error occurred",
		Solutions:   []string{"Retry the request", "Contact support if problem persists"},
	}
}
