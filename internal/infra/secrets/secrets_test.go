package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type fakeSecrets struct {
	payload string
	err     error
	calls   int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.payload)}, nil
}

func TestCredentialsAPIKey(t *testing.T) {
	fake := &fakeSecrets{payload: `{"bedrock_api_key":"key-1"}`}
	p := NewProvider(fake, "creds")

	creds, err := p.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if !creds.HasAPIKey() || creds.BedrockAPIKey != "key-1" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestCredentialsCached(t *testing.T) {
	fake := &fakeSecrets{payload: `{"aws_access_key_id":"AKIA","aws_secret_access_key":"s"}`}
	p := NewProvider(fake, "creds")

	if _, err := p.Credentials(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Credentials(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1 (cache hit)", fake.calls)
	}
}

func TestCredentialsCacheExpiry(t *testing.T) {
	fake := &fakeSecrets{payload: `{"bedrock_api_key":"k"}`}
	p := NewProvider(fake, "creds")
	current := time.Unix(1700000000, 0)
	p.now = func() time.Time { return current }

	if _, err := p.Credentials(context.Background()); err != nil {
		t.Fatal(err)
	}
	current = current.Add(61 * time.Minute)
	if _, err := p.Credentials(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2 after TTL expiry", fake.calls)
	}
}

func TestCredentialsStaleOnFailure(t *testing.T) {
	fake := &fakeSecrets{payload: `{"bedrock_api_key":"k"}`}
	p := NewProvider(fake, "creds")
	current := time.Unix(1700000000, 0)
	p.now = func() time.Time { return current }

	if _, err := p.Credentials(context.Background()); err != nil {
		t.Fatal(err)
	}

	current = current.Add(2 * time.Hour)
	fake.err = errors.New("secretsmanager unavailable")
	creds, err := p.Credentials(context.Background())
	if err != nil {
		t.Fatalf("expected stale cache hit, got error: %v", err)
	}
	if creds.BedrockAPIKey != "k" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestCredentialsRetriesThenFails(t *testing.T) {
	fake := &fakeSecrets{err: errors.New("access denied")}
	p := NewProvider(fake, "creds")

	// Bound test duration; the backoff sleeps are context-aware.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.Credentials(ctx); err == nil {
		t.Fatal("expected error with no cache to fall back on")
	}
	if fake.calls != 3 {
		t.Errorf("calls = %d, want 3 attempts", fake.calls)
	}
}

func TestCredentialsRejectsEmptySecret(t *testing.T) {
	fake := &fakeSecrets{payload: `{"region":"us-east-1"}`}
	p := NewProvider(fake, "creds")

	if _, err := p.Credentials(context.Background()); err == nil {
		t.Fatal("expected error for secret without usable credentials")
	}
}

func TestBearerTokenEnvWins(t *testing.T) {
	fake := &fakeSecrets{payload: `{"bedrock_bearer_token":"from-secret"}`}
	p := NewProvider(fake, "creds")

	token, err := p.BearerToken(context.Background(), "from-env")
	if err != nil {
		t.Fatal(err)
	}
	if token != "from-env" || fake.calls != 0 {
		t.Errorf("token = %s, calls = %d", token, fake.calls)
	}

	token, err = p.BearerToken(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if token != "from-secret" {
		t.Errorf("token = %s", token)
	}
}
