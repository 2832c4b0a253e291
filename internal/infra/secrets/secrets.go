// Package secrets retrieves commercial-partition credentials from Secrets
// Manager, with an in-process TTL cache shared across invocations in a warm
// execution environment.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sethvargo/go-retry"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

const (
	cacheTTL         = time.Hour
	fetchBaseBackoff = 500 * time.Millisecond
	fetchMaxRetries  = 2 // 3 attempts total
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Provider fetches and caches commercial credentials. The cache is guarded
// by a mutex; stale data is served when a refresh fails and cached data
// exists.
type Provider struct {
	client   SecretsAPI
	secretID string

	mu        sync.Mutex
	cached    *domain.Credentials
	expiresAt time.Time
	now       func() time.Time
}

// NewProvider creates a credentials provider for one secret.
func NewProvider(client SecretsAPI, secretID string) *Provider {
	return &Provider{client: client, secretID: secretID, now: time.Now}
}

// Credentials returns the commercial credentials, from cache when fresh.
func (p *Provider) Credentials(ctx context.Context) (domain.Credentials, error) {
	p.mu.Lock()
	if p.cached != nil && p.now().Before(p.expiresAt) {
		creds := *p.cached
		p.mu.Unlock()
		slog.Debug("Using cached credentials")
		return creds, nil
	}
	p.mu.Unlock()

	creds, err := p.fetch(ctx)
	if err != nil {
		// Serve stale data if we have any; an expired credential beats a
		// hard failure for transient Secrets Manager outages.
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cached != nil {
			slog.Warn("Using expired cached credentials due to fetch failure", "error", err)
			return *p.cached, nil
		}
		return domain.Credentials{}, err
	}

	p.mu.Lock()
	p.cached = &creds
	p.expiresAt = p.now().Add(cacheTTL)
	p.mu.Unlock()
	return creds, nil
}

func (p *Provider) fetch(ctx context.Context) (domain.Credentials, error) {
	var creds domain.Credentials

	backoff := retry.WithMaxRetries(fetchMaxRetries, retry.NewExponential(fetchBaseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(p.secretID),
		})
		if err != nil {
			slog.Warn("Credentials retrieval failed, retrying", "secret", p.secretID, "error", err)
			return retry.RetryableError(err)
		}

		if out.SecretString == nil {
			return fmt.Errorf("secret %s has no string payload", p.secretID)
		}
		if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
			return fmt.Errorf("invalid credential format in Secrets Manager: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("unable to retrieve commercial credentials: %w", err)
	}

	if !creds.HasAPIKey() && !creds.HasAWSKeys() && creds.BedrockBearerToken == "" {
		return domain.Credentials{}, fmt.Errorf("secret %s missing bedrock_api_key and aws credential pair", p.secretID)
	}
	return creds, nil
}

// BearerToken resolves the Bedrock bearer token: the environment value wins
// (local testing), otherwise the secret's bedrock_bearer_token field.
func (p *Provider) BearerToken(ctx context.Context, envToken string) (string, error) {
	if envToken != "" {
		slog.Info("Using bearer token from environment variable")
		return envToken, nil
	}

	creds, err := p.Credentials(ctx)
	if err != nil {
		return "", err
	}
	if creds.BedrockBearerToken == "" {
		return "", fmt.Errorf("bearer token not found in secret %s", p.secretID)
	}
	slog.Info("Using bearer token from Secrets Manager")
	return creds.BedrockBearerToken, nil
}

// Invalidate drops the cached entry, forcing the next call to refetch.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}
