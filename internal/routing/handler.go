package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// ErrorMetricsEmitter pushes error counters to CloudWatch. Emission failures
// are logged and swallowed by the Handler, never propagated.
type ErrorMetricsEmitter interface {
	EmitErrorMetrics(ctx context.Context, e *Error) error
}

// Handler converts any failure into the standardized API Gateway error
// response: classification, severity-scaled logging, metric emission, and
// the JSON envelope with troubleshooting and retry hints.
type Handler struct {
	routingMethod domain.RoutingMethod
	metrics       ErrorMetricsEmitter
}

// NewHandler creates an error handler for one routing method. metrics may be
// nil, in which case emission is skipped.
func NewHandler(method domain.RoutingMethod, metrics ErrorMetricsEmitter) *Handler {
	return &Handler{routingMethod: method, metrics: metrics}
}

type errorBody struct {
	Code            string          `json:"code"`
	Message         string          `json:"message"`
	Category        ErrorCategory   `json:"category"`
	RoutingMethod   string          `json:"routing_method"`
	RequestID       string          `json:"request_id"`
	Timestamp       string          `json:"timestamp"`
	Retryable       bool            `json:"retryable"`
	Details         map[string]any  `json:"details,omitempty"`
	Troubleshooting Troubleshooting `json:"troubleshooting"`
	Retry           *retryHint      `json:"retry,omitempty"`
}

type retryHint struct {
	RecommendedDelaySeconds int `json:"recommended_delay_seconds"`
	MaxRetries              int `json:"max_retries"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// HandleError turns err into the terminal API Gateway response. extra holds
// invocation context (latency, path, method) included in the log record; the
// "include_details" key forces the details block into the response body.
func (h *Handler) HandleError(ctx context.Context, err error, requestID string, extra map[string]any) events.APIGatewayProxyResponse {
	if extra == nil {
		extra = map[string]any{}
	}

	e := Classify(err, h.routingMethod)

	h.logError(e, requestID, extra)

	if h.metrics != nil {
		if emitErr := h.metrics.EmitErrorMetrics(ctx, e); emitErr != nil {
			slog.Error("Failed to send error metrics", "error", emitErr, "request_id", requestID)
		}
	}

	return h.buildResponse(e, requestID, extra)
}

func (h *Handler) logError(e *Error, requestID string, extra map[string]any) {
	attrs := []any{
		"request_id", requestID,
		"error_code", e.Code,
		"category", string(e.Category),
		"severity", string(e.Severity),
		"routing_method", e.RoutingMethod.String(),
		"message", e.Message,
		"http_status", e.HTTPStatus,
		"retryable", e.Retryable,
		"timestamp", e.Timestamp,
		"details", e.Details,
		"context", extra,
	}

	switch e.Severity {
	case SeverityCritical:
		slog.Error("CRITICAL severity error", attrs...)
	case SeverityHigh:
		slog.Error("HIGH severity error", attrs...)
	case SeverityMedium:
		slog.Warn("MEDIUM severity error", attrs...)
	default:
		slog.Info("LOW severity error", attrs...)
	}

	if e.Category == CategoryInternal {
		slog.Error("Stack trace for internal error", "request_id", requestID, "stack", string(debug.Stack()))
	}
}

func (h *Handler) buildResponse(e *Error, requestID string, extra map[string]any) events.APIGatewayProxyResponse {
	body := errorBody{
		Code:            e.Code,
		Message:         e.Message,
		Category:        e.Category,
		RoutingMethod:   e.RoutingMethod.String(),
		RequestID:       requestID,
		Timestamp:       e.Timestamp,
		Retryable:       e.Retryable,
		Troubleshooting: TroubleshootingFor(e.Category),
	}

	includeDetails, _ := extra["include_details"].(bool)
	if e.Severity == SeverityHigh || e.Severity == SeverityCritical || includeDetails {
		body.Details = e.Details
	}

	if e.Retryable {
		body.Retry = &retryHint{
			RecommendedDelaySeconds: RetryDelay(e.Category),
			MaxRetries:              MaxRetries(e.Category),
		}
	}

	payload, marshalErr := json.Marshal(errorEnvelope{Error: body})
	if marshalErr != nil {
		// Should not happen; fall back to a minimal envelope.
		payload = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"failed to encode error response"}}`)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: e.HTTPStatus,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			"X-Request-ID":      requestID,
			"X-Error-Code":      e.Code,
			"X-Error-Category":  string(e.Category),
			"X-Routing-Method":  e.RoutingMethod.String(),
			"X-Error-Retryable": strconv.FormatBool(e.Retryable),
		},
		Body: string(payload),
	}
}
