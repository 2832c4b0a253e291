// Package authorizer implements the API Gateway request authorizer guarding
// both routing paths. Callers present either a shared API key or an HS256
// JWT whose routing_method claim must match the path being invoked. Any
// validation failure yields a Deny policy; the authorizer never errors out
// to the platform.
package authorizer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/golang-jwt/jwt/v5"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// secretsCacheTTL bounds how long auth material is reused in a warm
// environment.
const secretsCacheTTL = 5 * time.Minute

// SecretsAPI is the Secrets Manager surface the authorizer uses.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// authSecrets is the JSON shape of the auth secret. APIKeys maps a client
// identifier to its key.
type authSecrets struct {
	JWTSecret string            `json:"jwt_secret"`
	APIKeys   map[string]string `json:"api_keys"`
}

// Authorizer validates inbound credentials and produces IAM policies.
type Authorizer struct {
	client   SecretsAPI
	secretID string
	allowed  map[string]bool

	mu        sync.Mutex
	cached    *authSecrets
	expiresAt time.Time
	now       func() time.Time
}

func New(client SecretsAPI, secretID string, allowedMethods []string) *Authorizer {
	allowed := make(map[string]bool, len(allowedMethods))
	for _, m := range allowedMethods {
		allowed[strings.TrimSpace(m)] = true
	}
	return &Authorizer{
		client:   client,
		secretID: secretID,
		allowed:  allowed,
		now:      time.Now,
	}
}

// Handle is the Lambda entrypoint for REQUEST-type authorization. Failures
// are logged and mapped to Deny; the returned error is always nil so API
// Gateway serves a clean 403 instead of a 500.
func (a *Authorizer) Handle(ctx context.Context, event events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	method := domain.DetectRoutingMethod(event.Path)

	principal, err := a.authorize(ctx, event, method)
	if err != nil {
		slog.Warn("Authorization denied",
			"path", event.Path,
			"routing_method", method.String(),
			"reason", err)
		return denyPolicy(event.MethodArn), nil
	}

	slog.Info("Authorization granted",
		"principal", principal,
		"routing_method", method.String())
	return allowPolicy(principal, event.MethodArn, method), nil
}

func (a *Authorizer) authorize(ctx context.Context, event events.APIGatewayCustomAuthorizerRequestTypeRequest, method domain.RoutingMethod) (string, error) {
	if !a.allowed[method.String()] {
		return "", fmt.Errorf("routing method %s not allowed", method)
	}

	token, isBearer := extractToken(event)
	if token == "" {
		return "", fmt.Errorf("no credentials presented")
	}

	sec, err := a.secrets(ctx)
	if err != nil {
		return "", fmt.Errorf("loading auth secrets: %w", err)
	}

	if isBearer {
		return a.validateJWT(token, sec, method)
	}
	return validateAPIKey(token, sec)
}

// extractToken pulls the credential out of the request: Authorization
// bearer header first, then the X-API-Key header, then the api_key query
// parameter. The bool reports whether the credential is a bearer JWT.
func extractToken(event events.APIGatewayCustomAuthorizerRequestTypeRequest) (string, bool) {
	for name, value := range event.Headers {
		if strings.EqualFold(name, "Authorization") {
			if rest, ok := strings.CutPrefix(value, "Bearer "); ok {
				return strings.TrimSpace(rest), true
			}
			return strings.TrimSpace(value), true
		}
	}
	for name, value := range event.Headers {
		if strings.EqualFold(name, "X-API-Key") && value != "" {
			return value, false
		}
	}
	if key := event.QueryStringParameters["api_key"]; key != "" {
		return key, false
	}
	return "", false
}

// validateAPIKey compares in constant time against every configured key so
// timing does not reveal which client ids exist.
func validateAPIKey(presented string, sec *authSecrets) (string, error) {
	match := ""
	for client, key := range sec.APIKeys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			match = client
		}
	}
	if match == "" {
		return "", fmt.Errorf("api key not recognized")
	}
	return match, nil
}

func (a *Authorizer) validateJWT(token string, sec *authSecrets, method domain.RoutingMethod) (string, error) {
	if sec.JWTSecret == "" {
		return "", fmt.Errorf("jwt validation not configured")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(sec.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("jwt rejected: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}

	claimedMethod, _ := claims["routing_method"].(string)
	if claimedMethod != method.String() {
		return "", fmt.Errorf("token issued for %q, request routed via %q", claimedMethod, method)
	}

	principal, _ := claims["sub"].(string)
	if principal == "" {
		principal = "jwt-client"
	}
	return principal, nil
}

func (a *Authorizer) secrets(ctx context.Context) (*authSecrets, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.now().Before(a.expiresAt) {
		return a.cached, nil
	}

	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &a.secretID,
	})
	if err != nil {
		return nil, err
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string payload", a.secretID)
	}
	var sec authSecrets
	if err := json.Unmarshal([]byte(*out.SecretString), &sec); err != nil {
		return nil, fmt.Errorf("auth secret is not valid JSON: %w", err)
	}

	a.cached = &sec
	a.expiresAt = a.now().Add(secretsCacheTTL)
	return a.cached, nil
}
