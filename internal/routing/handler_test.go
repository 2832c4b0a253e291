package routing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

type capturedMetrics struct {
	errors []*Error
	fail   bool
}

func (c *capturedMetrics) EmitErrorMetrics(_ context.Context, e *Error) error {
	if c.fail {
		return errors.New("cloudwatch unavailable")
	}
	c.errors = append(c.errors, e)
	return nil
}

func decodeEnvelope(t *testing.T, body string) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	return env
}

func TestHandleErrorRoundTrip(t *testing.T) {
	metrics := &capturedMetrics{}
	h := NewHandler(domain.RoutingVPN, metrics)

	src := NewVPNError("tunnel down", domain.RoutingVPN, map[string]any{"tunnel_id": "tunnel-1"})
	resp := h.HandleError(context.Background(), src, "req-123", nil)

	if resp.StatusCode != 503 {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if resp.Headers["X-Error-Code"] != src.Code {
		t.Errorf("X-Error-Code = %s, want %s", resp.Headers["X-Error-Code"], src.Code)
	}
	if resp.Headers["X-Error-Retryable"] != "true" {
		t.Errorf("X-Error-Retryable = %s, want true", resp.Headers["X-Error-Retryable"])
	}
	if resp.Headers["X-Routing-Method"] != "vpn" {
		t.Errorf("X-Routing-Method = %s, want vpn", resp.Headers["X-Routing-Method"])
	}

	env := decodeEnvelope(t, resp.Body)
	if env.Error.Retryable != src.Retryable {
		t.Errorf("body retryable = %v, want %v", env.Error.Retryable, src.Retryable)
	}
	if env.Error.RequestID != "req-123" {
		t.Errorf("request_id = %s, want req-123", env.Error.RequestID)
	}
	if env.Error.Retry == nil || env.Error.Retry.RecommendedDelaySeconds != 10 || env.Error.Retry.MaxRetries != 2 {
		t.Errorf("retry hint = %+v, want 10s/2", env.Error.Retry)
	}
	// High severity errors include the details block.
	if env.Error.Details["tunnel_id"] != "tunnel-1" {
		t.Errorf("details = %v, want tunnel_id present", env.Error.Details)
	}

	if len(metrics.errors) != 1 || metrics.errors[0] != src {
		t.Errorf("expected one emitted error metric for the source error")
	}
}

func TestHandleErrorClassifiesGenericErrors(t *testing.T) {
	h := NewHandler(domain.RoutingInternet, nil)

	resp := h.HandleError(context.Background(), errors.New("connection timeout"), "req-9", nil)
	if resp.StatusCode != 502 {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp.Body)
	if env.Error.Code != "NETWORK_ERROR" {
		t.Errorf("code = %s, want NETWORK_ERROR", env.Error.Code)
	}
	if env.Error.Troubleshooting.Description == "" {
		t.Error("troubleshooting block missing")
	}
}

// Non-retryable, low-severity errors carry no retry hint and no details
// unless the caller opts in.
func TestHandleErrorLowSeverityOmitsDetails(t *testing.T) {
	h := NewHandler(domain.RoutingInternet, nil)
	src := NewValidationError("missing modelId", domain.RoutingInternet, map[string]any{"field": "modelId"})

	resp := h.HandleError(context.Background(), src, "req-1", nil)
	env := decodeEnvelope(t, resp.Body)
	if env.Error.Details != nil {
		t.Errorf("details should be omitted for low severity, got %v", env.Error.Details)
	}
	if env.Error.Retry != nil {
		t.Errorf("retry hint should be omitted for non-retryable errors")
	}

	resp = h.HandleError(context.Background(), src, "req-1", map[string]any{"include_details": true})
	env = decodeEnvelope(t, resp.Body)
	if env.Error.Details["field"] != "modelId" {
		t.Errorf("include_details should surface the details block")
	}
}

// Two invocations with the same error and request id produce structurally
// identical bodies except for timestamps.
func TestHandleErrorIdempotent(t *testing.T) {
	h := NewHandler(domain.RoutingVPN, nil)
	src := NewServiceError("bedrock 500", domain.RoutingVPN, nil)

	first := decodeEnvelope(t, h.HandleError(context.Background(), src, "req-7", nil).Body)
	second := decodeEnvelope(t, h.HandleError(context.Background(), src, "req-7", nil).Body)

	first.Error.Timestamp, second.Error.Timestamp = "", ""
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("responses differ beyond timestamps:\n%s\n%s", a, b)
	}
}

func TestHandleErrorSwallowsMetricFailures(t *testing.T) {
	h := NewHandler(domain.RoutingInternet, &capturedMetrics{fail: true})

	resp := h.HandleError(context.Background(), errors.New("throttled"), "req-2", nil)
	if resp.StatusCode != 429 {
		t.Errorf("metric failure must not change the response, got status %d", resp.StatusCode)
	}
}
