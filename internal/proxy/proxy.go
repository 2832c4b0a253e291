// Package proxy implements the request flow of the internet and VPN routing
// Lambdas: detect the routing method, validate it against this handler's
// fixed role, fetch commercial credentials, forward to Bedrock, then log and
// meter the outcome without ever failing a successful inference on them.
package proxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/config"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/bedrock"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/routing"
)

const (
	sourcePartition      = "govcloud"
	destinationPartition = "commercial"

	// VPN-path invocation retries on retryable Bedrock failures.
	vpnInvokeRetries   = 2
	vpnRetryBaseDelay  = 500 * time.Millisecond
	vpnRetryDelayCap   = 30 * time.Second
	bestEffortDeadline = 5 * time.Second
)

// CredentialsProvider yields the commercial-partition credentials.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (domain.Credentials, error)
}

// Invoker forwards one inference request to commercial Bedrock.
type Invoker interface {
	Invoke(ctx context.Context, creds domain.Credentials, req domain.InvocationRequest) (*domain.InvocationResult, error)
}

// RequestLogger persists the per-request audit record.
type RequestLogger interface {
	Log(ctx context.Context, entry domain.RequestLogEntry) error
}

// RequestMetrics emits per-request counters and latency.
type RequestMetrics interface {
	EmitRequestMetrics(ctx context.Context, latency time.Duration, success bool) error
}

// ErrorResponder builds the terminal error response.
type ErrorResponder interface {
	HandleError(ctx context.Context, err error, requestID string, extra map[string]any) events.APIGatewayProxyResponse
}

// ModelLister returns the commercial model catalog for GET requests.
type ModelLister func(ctx context.Context, creds domain.Credentials) ([]bedrock.ModelInfo, error)

// Deps wires one Handler. Logger, Metrics and Models may be nil; those
// steps are skipped.
type Deps struct {
	Credentials CredentialsProvider
	Invoker     Invoker
	Logger      RequestLogger
	Metrics     RequestMetrics
	Errors      ErrorResponder
	Models      ModelLister
}

// Handler serves one routing role. The same type backs both Lambdas; only
// the role and the injected invoker differ.
type Handler struct {
	role domain.RoutingMethod
	cfg  *config.Config
	deps Deps

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewHandler(role domain.RoutingMethod, cfg *config.Config, deps Deps) *Handler {
	return &Handler{
		role: role,
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Handle is the Lambda entrypoint. Every failure funnels through the error
// responder; the returned error is always nil so API Gateway renders the
// structured response instead of a 502.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := event.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	started := h.now()

	slog.Info("Incoming request",
		"request_id", requestID,
		"method", event.HTTPMethod,
		"path", event.Path,
		"routing_role", h.role.String())

	detected := domain.DetectRoutingMethod(event.Path)
	if detected != h.role {
		err := routing.NewValidationError(
			fmt.Sprintf("request path routed for %s but this handler serves %s", detected, h.role),
			h.role,
			map[string]any{"path": event.Path, "detected_method": detected.String()},
		)
		return h.deps.Errors.HandleError(ctx, err, requestID, h.extra(event, started)), nil
	}

	if event.HTTPMethod == "GET" {
		return h.handleGet(ctx, event, requestID), nil
	}

	resp, err := h.invoke(ctx, event, requestID, started)
	if err != nil {
		h.audit(event, requestID, started, nil, err)
		return h.deps.Errors.HandleError(ctx, err, requestID, h.extra(event, started)), nil
	}
	return resp, nil
}

func (h *Handler) extra(event events.APIGatewayProxyRequest, started time.Time) map[string]any {
	return map[string]any{
		"path":       event.Path,
		"method":     event.HTTPMethod,
		"latency_ms": h.now().Sub(started).Milliseconds(),
	}
}

// handleGet serves the routing info and model catalog endpoints. Failures
// here still flow through the error responder.
func (h *Handler) handleGet(ctx context.Context, event events.APIGatewayProxyRequest, requestID string) events.APIGatewayProxyResponse {
	if strings.HasSuffix(event.Path, "/models") {
		return h.listModels(ctx, event, requestID)
	}

	body, _ := json.Marshal(map[string]any{
		"service":        "dual-routing-api-gateway",
		"message":        "Cross-partition Bedrock inference proxy",
		"routing_method": h.role.String(),
		"status":         "healthy",
		"timestamp":      h.now().UTC().Format(time.RFC3339),
	})
	return okResponse(requestID, h.role, "application/json", string(body))
}

func (h *Handler) listModels(ctx context.Context, event events.APIGatewayProxyRequest, requestID string) events.APIGatewayProxyResponse {
	started := h.now()
	if h.deps.Models == nil {
		err := routing.NewValidationError("model listing is not available on this endpoint", h.role, nil)
		return h.deps.Errors.HandleError(ctx, err, requestID, h.extra(event, started))
	}

	creds, err := h.credentials(ctx)
	if err != nil {
		return h.deps.Errors.HandleError(ctx, err, requestID, h.extra(event, started))
	}
	models, err := h.deps.Models(ctx, creds)
	if err != nil {
		return h.deps.Errors.HandleError(ctx, err, requestID, h.extra(event, started))
	}

	body, _ := json.Marshal(map[string]any{
		"models":         models,
		"routing_method": h.role.String(),
		"source":         destinationPartition,
	})
	return okResponse(requestID, h.role, "application/json", string(body))
}

// invocationPayload is the caller-facing POST body.
type invocationPayload struct {
	ModelID     string          `json:"modelId"`
	ContentType string          `json:"contentType"`
	Accept      string          `json:"accept"`
	Body        json.RawMessage `json:"body"`
}

func (h *Handler) invoke(ctx context.Context, event events.APIGatewayProxyRequest, requestID string, started time.Time) (events.APIGatewayProxyResponse, error) {
	req, err := parseRequest(event, h.role)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	creds, err := h.credentials(ctx)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	result, err := h.invokeWithPolicy(ctx, creds, *req)
	latency := h.now().Sub(started)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	h.audit(event, requestID, started, result, nil)

	slog.Info("Request completed",
		"request_id", requestID,
		"model_id", req.ModelID,
		"routing_method", h.role.String(),
		"latency_ms", latency.Milliseconds())

	return okResponse(requestID, h.role, result.ContentType, result.Body), nil
}

// credentials fetches the secret and lets the environment bearer token win
// over whatever the secret holds.
func (h *Handler) credentials(ctx context.Context) (domain.Credentials, error) {
	creds, err := h.deps.Credentials.Credentials(ctx)
	if err != nil {
		return domain.Credentials{}, routing.NewAuthenticationError(
			fmt.Sprintf("failed to retrieve commercial credentials: %v", err),
			h.role, nil,
		)
	}
	if h.cfg != nil && h.cfg.BedrockBearerToken != "" {
		creds.BedrockBearerToken = h.cfg.BedrockBearerToken
	}
	return creds, nil
}

// invokeWithPolicy applies the per-role retry policy. The internet path
// tries once; the VPN path retries retryable failures with exponential
// backoff since tunnel flaps recover within seconds.
func (h *Handler) invokeWithPolicy(ctx context.Context, creds domain.Credentials, req domain.InvocationRequest) (*domain.InvocationResult, error) {
	if h.role != domain.RoutingVPN {
		return h.deps.Invoker.Invoke(ctx, creds, req)
	}

	var lastErr error
	for attempt := 0; attempt <= vpnInvokeRetries; attempt++ {
		if attempt > 0 {
			if err := h.sleep(ctx, routing.Backoff(vpnRetryBaseDelay, attempt-1, vpnRetryDelayCap)); err != nil {
				return nil, err
			}
			slog.Warn("Retrying Bedrock invocation over VPN",
				"attempt", attempt, "max_retries", vpnInvokeRetries, "error", lastErr)
		}
		result, err := h.deps.Invoker.Invoke(ctx, creds, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !vpnRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// vpnRetryable screens out failures that cannot be fixed by retrying over a
// freshly recovered tunnel.
func vpnRetryable(err error) bool {
	var dre *routing.Error
	if errors.As(err, &dre) {
		return dre.Retryable
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"authentication", "unauthorized", "access denied", "invalid request parameters", "invalid token"} {
		if strings.Contains(msg, kw) {
			return false
		}
	}
	return true
}

func parseRequest(event events.APIGatewayProxyRequest, role domain.RoutingMethod) (*domain.InvocationRequest, error) {
	raw := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, routing.NewValidationError("request body is not valid base64", role, nil)
		}
		raw = string(decoded)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, routing.NewValidationError("request body is required", role, nil)
	}

	var payload invocationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, routing.NewValidationError(
			fmt.Sprintf("request body is not valid JSON: %v", err), role, nil)
	}
	if payload.ModelID == "" {
		return nil, routing.NewValidationError("modelId is required", role,
			map[string]any{"missing_field": "modelId"})
	}

	body := string(payload.Body)
	if body == "" {
		return nil, routing.NewValidationError("body is required", role,
			map[string]any{"missing_field": "body"})
	}
	// The bedrock payload may arrive as a JSON object or a pre-encoded
	// string; normalize to the raw JSON text.
	var asString string
	if err := json.Unmarshal(payload.Body, &asString); err == nil {
		body = asString
	}

	return &domain.InvocationRequest{
		ModelID:       payload.ModelID,
		ContentType:   payload.ContentType,
		Accept:        payload.Accept,
		Body:          body,
		SourceIP:      event.RequestContext.Identity.SourceIP,
		UserArn:       event.RequestContext.Identity.UserArn,
		RoutingMethod: role,
		APIPath:       event.Path,
	}, nil
}

// audit writes the DynamoDB record and CloudWatch request metrics. Both are
// best effort and never alter the response.
func (h *Handler) audit(event events.APIGatewayProxyRequest, requestID string, started time.Time, result *domain.InvocationResult, invErr error) {
	latency := h.now().Sub(started)
	success := invErr == nil

	ctx, cancel := context.WithTimeout(context.Background(), bestEffortDeadline)
	defer cancel()

	if h.deps.Logger != nil {
		entry := domain.RequestLogEntry{
			RequestID:            requestID,
			SourcePartition:      sourcePartition,
			DestinationPartition: destinationPartition,
			RoutingMethod:        h.role.String(),
			VPCEndpointsUsed:     h.role == domain.RoutingVPN,
			UserArn:              event.RequestContext.Identity.UserArn,
			SourceIP:             event.RequestContext.Identity.SourceIP,
			APIPath:              event.Path,
			RequestSize:          len(event.Body),
			LatencyMs:            latency.Milliseconds(),
			Success:              success,
		}
		if payload, err := parsePayloadModel(event); err == nil {
			entry.ModelID = payload
		}
		if result != nil {
			entry.ResponseSize = len(result.Body)
			entry.StatusCode = 200
			entry.EndpointUsed = result.EndpointUsed
			entry.AWSCredentialsUsed = result.AWSCredentialsUsed
			entry.InferenceProfileUsed = result.InferenceProfileUsed
		} else {
			entry.StatusCode = routing.Classify(invErr, h.role).HTTPStatus
			entry.ErrorMessage = invErr.Error()
		}
		if err := h.deps.Logger.Log(ctx, entry); err != nil {
			slog.Warn("Request log write failed", "request_id", requestID, "error", err)
		}
	}

	if h.deps.Metrics != nil {
		if err := h.deps.Metrics.EmitRequestMetrics(ctx, latency, success); err != nil {
			slog.Warn("Request metric emission failed", "request_id", requestID, "error", err)
		}
	}
}

func parsePayloadModel(event events.APIGatewayProxyRequest) (string, error) {
	raw := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", err
		}
		raw = string(decoded)
	}
	var payload invocationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", err
	}
	return payload.ModelID, nil
}

func okResponse(requestID string, role domain.RoutingMethod, contentType, body string) events.APIGatewayProxyResponse {
	if contentType == "" {
		contentType = "application/json"
	}
	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers: map[string]string{
			"Content-Type":       contentType,
			"X-Request-ID":       requestID,
			"X-Routing-Method":   role.String(),
			"X-Source-Partition": sourcePartition,
		},
		Body: body,
	}
}
