package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// VPCEndpoints holds the optional interface-endpoint URL overrides used by
// the VPN Lambda. Empty values mean the default AWS endpoints.
type VPCEndpoints struct {
	Secrets    string
	DynamoDB   string
	Logs       string
	Monitoring string
	Lambda     string
	STS        string
}

// Config is the environment-driven configuration shared by the Lambda
// handlers.
type Config struct {
	CredentialsSecret         string
	RequestLogTable           string
	RoutingMethod             domain.RoutingMethod
	Region                    string
	BedrockBearerToken        string
	CommercialBedrockEndpoint string
	VPCEndpoints              VPCEndpoints

	// Authorizer settings.
	AuthSecretsSecret     string
	AllowedRoutingMethods []string
	TokenExpiryMinutes    int

	// Metrics processor settings.
	ProjectName string
	Environment string
	SNSTopicArn string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from the environment, applying the same defaults
// in every execution environment.
func Load() *Config {
	tokenExpiry, err := strconv.Atoi(getenv("TOKEN_EXPIRY_MINUTES", "60"))
	if err != nil || tokenExpiry <= 0 {
		tokenExpiry = 60
	}

	return &Config{
		CredentialsSecret:         getenv("COMMERCIAL_CREDENTIALS_SECRET", "cross-partition-commercial-creds"),
		RequestLogTable:           getenv("REQUEST_LOG_TABLE", "cross-partition-requests"),
		RoutingMethod:             domain.RoutingMethod(getenv("ROUTING_METHOD", "internet")),
		Region:                    getenv("AWS_REGION", "us-gov-west-1"),
		BedrockBearerToken:        os.Getenv("AWS_BEARER_TOKEN_BEDROCK"),
		CommercialBedrockEndpoint: os.Getenv("COMMERCIAL_BEDROCK_ENDPOINT"),
		VPCEndpoints: VPCEndpoints{
			Secrets:    os.Getenv("VPC_ENDPOINT_SECRETS"),
			DynamoDB:   os.Getenv("VPC_ENDPOINT_DYNAMODB"),
			Logs:       os.Getenv("VPC_ENDPOINT_LOGS"),
			Monitoring: os.Getenv("VPC_ENDPOINT_MONITORING"),
			Lambda:     os.Getenv("VPC_ENDPOINT_LAMBDA"),
			STS:        os.Getenv("VPC_ENDPOINT_STS"),
		},
		AuthSecretsSecret:     getenv("AUTH_SECRETS_SECRET", "dual-routing-auth-secrets"),
		AllowedRoutingMethods: strings.Split(getenv("ALLOWED_ROUTING_METHODS", "internet,vpn"), ","),
		TokenExpiryMinutes:    tokenExpiry,
		ProjectName:           getenv("PROJECT_NAME", "cross-partition-dual-routing"),
		Environment:           getenv("ENVIRONMENT", "prod"),
		SNSTopicArn:           os.Getenv("SNS_TOPIC_ARN"),
	}
}
