// Package awsclients builds AWS service clients honoring VPC interface
// endpoint overrides, with cached connectivity checks so an unhealthy
// endpoint falls back to the default service endpoint instead of failing
// every call.
package awsclients

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/config"
)

const (
	endpointDialTimeout = 2 * time.Second
	vpnDialTimeout      = 5 * time.Second
)

// EndpointHealth records the last connectivity check for one endpoint.
type EndpointHealth struct {
	Healthy     bool   `json:"healthy"`
	LastCheck   string `json:"last_check"`
	EndpointURL string `json:"endpoint_url"`
	Error       string `json:"error,omitempty"`
}

// Factory creates service clients for one execution environment. Clients are
// built once and reused across invocations of a warm environment.
type Factory struct {
	mu        sync.Mutex
	awscfg    aws.Config
	endpoints config.VPCEndpoints
	health    map[string]EndpointHealth

	secrets  *secretsmanager.Client
	dynamo   *dynamodb.Client
	cw       *cloudwatch.Client
	dialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewFactory creates a client factory for the given endpoint overrides.
func NewFactory(awscfg aws.Config, endpoints config.VPCEndpoints) *Factory {
	return &Factory{
		awscfg:    awscfg,
		endpoints: endpoints,
		health:    make(map[string]EndpointHealth),
		dialFunc:  net.DialTimeout,
	}
}

// checkEndpoint performs a TCP connect probe against the endpoint host and
// records the outcome. An empty URL means the default AWS endpoint, which is
// assumed reachable.
func (f *Factory) checkEndpoint(name, endpointURL string, timeout time.Duration) bool {
	now := time.Now().UTC().Format(time.RFC3339)

	if endpointURL == "" {
		f.setHealth(name, EndpointHealth{Healthy: true, LastCheck: now, EndpointURL: "default"})
		return true
	}

	parsed, err := url.Parse(endpointURL)
	if err != nil || parsed.Hostname() == "" {
		f.setHealth(name, EndpointHealth{Healthy: false, LastCheck: now, EndpointURL: endpointURL, Error: "invalid endpoint URL"})
		return false
	}

	port := parsed.Port()
	if port == "" {
		port = "443"
	}

	conn, err := f.dialFunc("tcp", net.JoinHostPort(parsed.Hostname(), port), timeout)
	if err != nil {
		slog.Warn("VPC endpoint health check failed", "endpoint", name, "url", endpointURL, "error", err)
		f.setHealth(name, EndpointHealth{Healthy: false, LastCheck: now, EndpointURL: endpointURL, Error: err.Error()})
		return false
	}
	conn.Close()

	f.setHealth(name, EndpointHealth{Healthy: true, LastCheck: now, EndpointURL: endpointURL})
	return true
}

func (f *Factory) setHealth(name string, h EndpointHealth) {
	f.mu.Lock()
	f.health[name] = h
	f.mu.Unlock()
}

// SecretsManager returns a Secrets Manager client, preferring the VPC
// endpoint when configured and reachable.
func (f *Factory) SecretsManager() *secretsmanager.Client {
	f.mu.Lock()
	if f.secrets != nil {
		defer f.mu.Unlock()
		return f.secrets
	}
	f.mu.Unlock()

	endpoint := f.endpoints.Secrets
	if endpoint != "" && !f.checkEndpoint("secrets", endpoint, endpointDialTimeout) {
		slog.Warn("Secrets Manager VPC endpoint unhealthy, falling back to default")
		endpoint = ""
	}

	client := secretsmanager.NewFromConfig(f.awscfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	f.mu.Lock()
	f.secrets = client
	f.mu.Unlock()
	return client
}

// DynamoDB returns a DynamoDB client, preferring the VPC endpoint when
// configured and reachable.
func (f *Factory) DynamoDB() *dynamodb.Client {
	f.mu.Lock()
	if f.dynamo != nil {
		defer f.mu.Unlock()
		return f.dynamo
	}
	f.mu.Unlock()

	endpoint := f.endpoints.DynamoDB
	if endpoint != "" && !f.checkEndpoint("dynamodb", endpoint, endpointDialTimeout) {
		slog.Warn("DynamoDB VPC endpoint unhealthy, falling back to default")
		endpoint = ""
	}

	client := dynamodb.NewFromConfig(f.awscfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	f.mu.Lock()
	f.dynamo = client
	f.mu.Unlock()
	return client
}

// CloudWatch returns a CloudWatch client, preferring the monitoring VPC
// endpoint when configured and reachable.
func (f *Factory) CloudWatch() *cloudwatch.Client {
	f.mu.Lock()
	if f.cw != nil {
		defer f.mu.Unlock()
		return f.cw
	}
	f.mu.Unlock()

	endpoint := f.endpoints.Monitoring
	if endpoint != "" && !f.checkEndpoint("cloudwatch", endpoint, endpointDialTimeout) {
		slog.Warn("CloudWatch VPC endpoint unhealthy, falling back to default")
		endpoint = ""
	}

	client := cloudwatch.NewFromConfig(f.awscfg, func(o *cloudwatch.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	f.mu.Lock()
	f.cw = client
	f.mu.Unlock()
	return client
}

// ValidateVPNConnectivity probes the commercial Bedrock endpoint through the
// tunnel. An empty endpoint means standard routing and passes trivially.
func (f *Factory) ValidateVPNConnectivity(bedrockEndpoint string) error {
	if bedrockEndpoint == "" {
		slog.Info("No VPN endpoint configured, using standard AWS routing")
		return nil
	}
	if !f.checkEndpoint("vpn_tunnel", bedrockEndpoint, vpnDialTimeout) {
		return fmt.Errorf("vpn tunnel validation failed: %s unreachable", bedrockEndpoint)
	}
	slog.Info("VPN tunnel connectivity validated", "endpoint", bedrockEndpoint)
	return nil
}

// HealthStatus returns a copy of all recorded endpoint health entries.
func (f *Factory) HealthStatus() map[string]EndpointHealth {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]EndpointHealth, len(f.health))
	for k, v := range f.health {
		out[k] = v
	}
	return out
}

// HealthyMap reduces the health status to name -> healthy flags, the shape
// surfaced in response metadata and endpoint health metrics.
func (f *Factory) HealthyMap() map[string]bool {
	status := f.HealthStatus()
	out := make(map[string]bool, len(status))
	for k, v := range status {
		out[k] = v.Healthy
	}
	return out
}
