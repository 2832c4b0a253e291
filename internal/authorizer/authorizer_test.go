package authorizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "unit-test-signing-key"

type fakeSecrets struct {
	calls  int
	secret string
	err    error
}

func (f *fakeSecrets) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &f.secret}, nil
}

func testAuthorizer(t *testing.T) (*Authorizer, *fakeSecrets) {
	t.Helper()
	fake := &fakeSecrets{
		secret: `{"jwt_secret":"` + jwtSecret + `","api_keys":{"dashboard":"key-dashboard","ci":"key-ci"}}`,
	}
	return New(fake, "dual-routing-auth-secrets", []string{"internet", "vpn"}), fake
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

func authEvent(path string, headers map[string]string) events.APIGatewayCustomAuthorizerRequestTypeRequest {
	return events.APIGatewayCustomAuthorizerRequestTypeRequest{
		MethodArn: "arn:aws-us-gov:execute-api:us-gov-west-1:123:api/prod/POST" + path,
		Path:      path,
		Headers:   headers,
	}
}

func effect(resp events.APIGatewayCustomAuthorizerResponse) string {
	return resp.PolicyDocument.Statement[0].Effect
}

func TestAPIKeyHeaderAllows(t *testing.T) {
	a, _ := testAuthorizer(t)
	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"X-API-Key": "key-dashboard"}))
	require.NoError(t, err)
	assert.Equal(t, "Allow", effect(resp))
	assert.Equal(t, "dashboard", resp.PrincipalID)
	assert.Equal(t, "internet", resp.Context["routing_method"])
}

func TestAPIKeyQueryParamAllows(t *testing.T) {
	a, _ := testAuthorizer(t)
	event := authEvent("/v1/vpn/bedrock/invoke-model", nil)
	event.QueryStringParameters = map[string]string{"api_key": "key-ci"}

	resp, err := a.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "Allow", effect(resp))
	assert.Equal(t, "ci", resp.PrincipalID)
	assert.Equal(t, "vpn", resp.Context["routing_method"])
}

func TestWrongAPIKeyDenies(t *testing.T) {
	a, _ := testAuthorizer(t)
	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"X-API-Key": "wrong"}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestMissingCredentialsDenies(t *testing.T) {
	a, _ := testAuthorizer(t)
	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model", nil))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestValidJWTAllows(t *testing.T) {
	a, _ := testAuthorizer(t)
	token := signToken(t, jwt.MapClaims{
		"sub":            "svc-analytics",
		"routing_method": "internet",
		"exp":            time.Now().Add(time.Hour).Unix(),
	})

	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"Authorization": "Bearer " + token}))
	require.NoError(t, err)
	assert.Equal(t, "Allow", effect(resp))
	assert.Equal(t, "svc-analytics", resp.PrincipalID)
}

func TestExpiredJWTDenies(t *testing.T) {
	a, _ := testAuthorizer(t)
	token := signToken(t, jwt.MapClaims{
		"routing_method": "internet",
		"exp":            time.Now().Add(-time.Minute).Unix(),
	})

	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"Authorization": "Bearer " + token}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestJWTMissingExpiryDenies(t *testing.T) {
	a, _ := testAuthorizer(t)
	token := signToken(t, jwt.MapClaims{"routing_method": "internet"})

	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"Authorization": "Bearer " + token}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestJWTRoutingMethodMismatchDenies(t *testing.T) {
	a, _ := testAuthorizer(t)
	token := signToken(t, jwt.MapClaims{
		"routing_method": "internet",
		"exp":            time.Now().Add(time.Hour).Unix(),
	})

	resp, err := a.Handle(context.Background(), authEvent("/v1/vpn/bedrock/invoke-model",
		map[string]string{"Authorization": "Bearer " + token}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestJWTBadSignatureDenies(t *testing.T) {
	a, _ := testAuthorizer(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"routing_method": "internet",
		"exp":            time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("some-other-key"))
	require.NoError(t, err)

	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"Authorization": "Bearer " + token}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestDisallowedRoutingMethodDenies(t *testing.T) {
	fake := &fakeSecrets{secret: `{"api_keys":{"ci":"key-ci"}}`}
	a := New(fake, "s", []string{"internet"})

	resp, err := a.Handle(context.Background(), authEvent("/v1/vpn/bedrock/invoke-model",
		map[string]string{"X-API-Key": "key-ci"}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
	assert.Zero(t, fake.calls, "secret fetched for disallowed method")
}

type binarySecrets struct{}

func (binarySecrets) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("not json")}, nil
}

func TestBinarySecretDenies(t *testing.T) {
	a := New(binarySecrets{}, "s", []string{"internet", "vpn"})

	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"X-API-Key": "key"}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestSecretFetchFailureDenies(t *testing.T) {
	fake := &fakeSecrets{err: errors.New("secretsmanager unavailable")}
	a := New(fake, "s", []string{"internet", "vpn"})

	resp, err := a.Handle(context.Background(), authEvent("/v1/bedrock/invoke-model",
		map[string]string{"X-API-Key": "key"}))
	require.NoError(t, err)
	assert.Equal(t, "Deny", effect(resp))
}

func TestSecretsCached(t *testing.T) {
	a, fake := testAuthorizer(t)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	event := authEvent("/v1/bedrock/invoke-model", map[string]string{"X-API-Key": "key-ci"})
	_, err := a.Handle(context.Background(), event)
	require.NoError(t, err)
	_, err = a.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	a.now = func() time.Time { return fixed.Add(secretsCacheTTL + time.Second) }
	_, err = a.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}
