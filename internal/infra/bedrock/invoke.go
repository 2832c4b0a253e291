package bedrock

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

const (
	// DefaultEndpoint is the commercial bedrock-runtime endpoint reached
	// over the internet or through the VPN tunnel.
	DefaultEndpoint = "https://bedrock-runtime.us-east-1.amazonaws.com"

	// DefaultRegion is the commercial partition region hosting the models.
	DefaultRegion = "us-east-1"

	anthropicVersion = "bedrock-2023-05-31"
)

// RuntimeAPI is the bedrockruntime surface the SDK invocation path uses.
type RuntimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Invoker forwards inference requests to commercial Bedrock. Bearer-token
// and API-key credentials go straight over HTTPS; AWS key pairs go through
// the bedrockruntime SDK client.
type Invoker struct {
	httpClient *http.Client
	endpoint   string
	region     string
	method     domain.RoutingMethod

	// newRuntime builds the SDK client from fetched credentials. Tests
	// swap it for a fake.
	newRuntime func(creds domain.Credentials) RuntimeAPI
}

// NewInvoker builds an Invoker for one routing path. endpoint may be empty
// to use DefaultEndpoint.
func NewInvoker(method domain.RoutingMethod, endpoint string, timeout time.Duration) *Invoker {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	inv := &Invoker{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(endpoint, "/"),
		region:     DefaultRegion,
		method:     method,
	}
	inv.newRuntime = func(creds domain.Credentials) RuntimeAPI {
		region := creds.Region
		if region == "" {
			region = inv.region
		}
		cfg := aws.Config{
			Region: region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(creds.AWSAccessKeyID, creds.AWSSecretAccessKey, ""),
			),
			HTTPClient: inv.httpClient,
		}
		return bedrockruntime.NewFromConfig(cfg)
	}
	return inv
}

// Invoke forwards one inference request using whichever credential kind is
// present. Bearer tokens win over API keys, API keys over AWS key pairs.
func (v *Invoker) Invoke(ctx context.Context, creds domain.Credentials, req domain.InvocationRequest) (*domain.InvocationResult, error) {
	body, err := prepareBody(req.ModelID, req.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	switch {
	case creds.BedrockBearerToken != "":
		return v.invokeHTTP(ctx, creds.BedrockBearerToken, req.ModelID, body)
	case creds.HasAPIKey():
		return v.invokeHTTP(ctx, bearerFromAPIKey(creds.BedrockAPIKey), req.ModelID, body)
	case creds.HasAWSKeys():
		return v.invokeSDK(ctx, creds, req.ModelID, body)
	default:
		return nil, fmt.Errorf("no usable bedrock credentials: authentication material missing from secret")
	}
}

// prepareBody validates the request payload and injects the anthropic_version
// field that Claude models require when the caller omitted it.
func prepareBody(modelID, body string) ([]byte, error) {
	if body == "" {
		return nil, fmt.Errorf("request body is required")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("body is not valid JSON: %w", err)
	}
	if strings.Contains(modelID, "anthropic") {
		if _, ok := payload["anthropic_version"]; !ok {
			payload["anthropic_version"] = anthropicVersion
			return json.Marshal(payload)
		}
	}
	return []byte(body), nil
}

// bearerFromAPIKey normalizes a stored API key into the bearer form the
// bedrock-runtime HTTP endpoint expects. Keys already base64 encoded pass
// through untouched.
func bearerFromAPIKey(apiKey string) string {
	if raw, err := base64.StdEncoding.DecodeString(apiKey); err == nil && strings.Contains(string(raw), ":") {
		return apiKey
	}
	return base64.StdEncoding.EncodeToString([]byte(apiKey))
}

func (v *Invoker) invokeHTTP(ctx context.Context, token, modelID string, body []byte) (*domain.InvocationResult, error) {
	endpoint := fmt.Sprintf("%s/model/%s/invoke", v.endpoint, url.PathEscape(modelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building bedrock request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Routing-Method", string(v.method))

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, v.transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading bedrock response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return &domain.InvocationResult{
		Body:          string(respBody),
		ContentType:   contentType,
		RoutingMethod: string(v.method),
		EndpointUsed:  v.endpoint,
	}, nil
}

// transportError rewrites client-level failures so the failure mode of the
// path in use is visible to the classifier downstream.
func (v *Invoker) transportError(err error) error {
	timeout := false
	var uerr *url.Error
	if errors.As(err, &uerr) {
		timeout = uerr.Timeout()
	}
	if v.method == domain.RoutingVPN {
		if timeout {
			return fmt.Errorf("request timeout - VPN connection may be slow or unavailable: %w", err)
		}
		return fmt.Errorf("connection error - VPN tunnel may be down: %w", err)
	}
	if timeout {
		return fmt.Errorf("network timeout reaching commercial Bedrock: %w", err)
	}
	return fmt.Errorf("network connection error reaching commercial Bedrock: %w", err)
}

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("invalid request parameters: %s", msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("authentication failed - invalid token: %s", msg)
	case http.StatusForbidden:
		return fmt.Errorf("access denied to commercial Bedrock: %s", msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("request throttled by commercial Bedrock (429): %s", msg)
	default:
		return fmt.Errorf("commercial Bedrock service error (status %d): %s", status, msg)
	}
}

func (v *Invoker) invokeSDK(ctx context.Context, creds domain.Credentials, modelID string, body []byte) (*domain.InvocationResult, error) {
	client := v.newRuntime(creds)

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	profileUsed := ""
	if err != nil && needsInferenceProfile(err) {
		profile := InferenceProfileID(modelID)
		if profile == "" {
			return nil, fmt.Errorf("bedrock invocation failed and no inference profile exists for %s: %w", modelID, err)
		}
		out, err = client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(profile),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		profileUsed = profile
	}
	if err != nil {
		return nil, sdkError(err)
	}

	contentType := "application/json"
	if out.ContentType != nil && *out.ContentType != "" {
		contentType = *out.ContentType
	}
	return &domain.InvocationResult{
		Body:                 string(out.Body),
		ContentType:          contentType,
		RoutingMethod:        string(v.method),
		EndpointUsed:         v.endpoint,
		AWSCredentialsUsed:   true,
		InferenceProfileUsed: profileUsed,
	}, nil
}

// needsInferenceProfile spots the validation error Bedrock returns when a
// model only supports provisioned or profile-based invocation.
func needsInferenceProfile(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "inference profile") || strings.Contains(msg, "on-demand throughput")
}

// sdkError rewrites bedrockruntime failures into the same failure-mode
// vocabulary the HTTP path uses, keyed off the smithy error code.
func sdkError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock invocation failed: %w", err)
	}
	switch apiErr.ErrorCode() {
	case "AccessDeniedException":
		return fmt.Errorf("access denied to commercial Bedrock: %s", apiErr.ErrorMessage())
	case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
		return fmt.Errorf("authentication failed - invalid commercial credentials: %s", apiErr.ErrorMessage())
	case "ThrottlingException", "TooManyRequestsException":
		return fmt.Errorf("request throttled by commercial Bedrock (429): %s", apiErr.ErrorMessage())
	case "ValidationException":
		return fmt.Errorf("invalid request parameters: %s", apiErr.ErrorMessage())
	case "ModelTimeoutException":
		return fmt.Errorf("bedrock model timeout: %s", apiErr.ErrorMessage())
	default:
		return fmt.Errorf("bedrock service error %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
}
