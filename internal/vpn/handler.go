package vpn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/routing"
)

const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 30 * time.Second

	// metricBatchSize bounds buffered error records before a flush.
	metricBatchSize = 20
)

// Recovery describes the action a handler took to restore the VPN path.
type Recovery struct {
	Action   string
	Attempts int
	Details  map[string]any
}

// Handler runs the recovery logic for VPN-path failures. Each failure kind
// gets circuit-breaker gating and bounded exponential-backoff retries; on
// exhaustion the handler returns a terminal routing error.
//
// The tunnel failover and route table probes are decision scaffolding: they
// report success without touching real infrastructure.
type Handler struct {
	breaker *routing.CircuitBreaker
	metrics routing.ErrorMetricsEmitter

	mu    sync.Mutex
	batch []*routing.Error

	// Probe hooks default to the hardcoded-success stubs below. Tests
	// swap them, as would a real remediation backend.
	sleep         func(ctx context.Context, d time.Duration) error
	failover      func(tunnelID string) tunnelStatus
	probeEndpoint func(service string) bool
	routeTables   func() routeCheck
	gateway       func() gatewayCheck
}

func NewHandler(breaker *routing.CircuitBreaker, metrics routing.ErrorMetricsEmitter) *Handler {
	return &Handler{
		breaker:       breaker,
		metrics:       metrics,
		sleep:         sleepCtx,
		failover:      failoverTunnel,
		probeEndpoint: checkEndpoint,
		routeTables:   verifyRouteTables,
		gateway:       gatewayStatus,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handle dispatches one VPN-path failure to its recovery handler. It returns
// a Recovery when the path was restored, or a terminal error for the
// response pipeline.
func (h *Handler) Handle(ctx context.Context, err error, ec ErrorContext) (*Recovery, error) {
	var (
		tunnelErr   *TunnelError
		endpointErr *EndpointError
		routeErr    *RoutingFault
		authErr     *AuthError
	)
	switch {
	case errors.As(err, &tunnelErr):
		return h.handleTunnelFailure(ctx, tunnelErr, ec)
	case errors.As(err, &endpointErr):
		return h.handleEndpointFailure(ctx, endpointErr, ec)
	case errors.As(err, &routeErr):
		return h.handleRoutingFault(ctx, routeErr, ec)
	case errors.As(err, &authErr):
		return nil, h.handleAuthFailure(authErr, ec)
	default:
		return nil, routing.Classify(err, domain.RoutingVPN)
	}
}

func (h *Handler) handleTunnelFailure(ctx context.Context, terr *TunnelError, ec ErrorContext) (*Recovery, error) {
	const service = "vpn_tunnel"
	if h.breaker.IsOpen(service) {
		h.record(routing.NewVPNError("vpn tunnel circuit breaker open", ec.RoutingMethod, nil))
		return nil, &CircuitOpenError{Service: service}
	}

	for attempt := 0; attempt < ec.MaxRetries; attempt++ {
		ec.RetryAttempt = attempt
		if attempt > 0 {
			slog.Debug("retrying vpn tunnel failover",
				"request_id", ec.RequestID, "retry_attempt", ec.RetryAttempt, "max_retries", ec.MaxRetries)
			if err := h.sleep(ctx, routing.Backoff(retryBaseDelay, attempt, retryMaxDelay)); err != nil {
				return nil, err
			}
		}
		if status := h.failover(terr.TunnelID); status.healthy {
			h.breaker.RecordSuccess(service)
			slog.Info("vpn tunnel failover succeeded",
				"request_id", ec.RequestID, "tunnel_id", terr.TunnelID, "backup_tunnel", status.backupTunnel)
			return &Recovery{
				Action:   "tunnel_failover",
				Attempts: attempt + 1,
				Details:  map[string]any{"backup_tunnel": status.backupTunnel},
			}, nil
		}
	}

	h.breaker.RecordFailure(service)
	h.record(routing.NewVPNError("vpn tunnel failover exhausted retries", ec.RoutingMethod, nil))
	return nil, routing.NewVPNError(
		fmt.Sprintf("VPN tunnel failure not recovered after %d attempts: %s", ec.MaxRetries, terr.Message),
		ec.RoutingMethod,
		map[string]any{"tunnel_id": terr.TunnelID},
	)
}

func (h *Handler) handleEndpointFailure(ctx context.Context, eerr *EndpointError, ec ErrorContext) (*Recovery, error) {
	service := "vpc_endpoint_" + eerr.Service
	if h.breaker.IsOpen(service) {
		h.record(routing.NewVPNError("vpc endpoint circuit breaker open", ec.RoutingMethod, nil))
		return nil, &CircuitOpenError{Service: service}
	}

	for attempt := 0; attempt < ec.MaxRetries; attempt++ {
		ec.RetryAttempt = attempt
		if attempt > 0 {
			slog.Debug("retrying vpc endpoint probe",
				"request_id", ec.RequestID, "retry_attempt", ec.RetryAttempt, "max_retries", ec.MaxRetries)
			if err := h.sleep(ctx, routing.Backoff(retryBaseDelay, attempt, retryMaxDelay)); err != nil {
				return nil, err
			}
		}
		if h.probeEndpoint(eerr.Service) {
			h.breaker.RecordSuccess(service)
			return &Recovery{
				Action:   "endpoint_recovered",
				Attempts: attempt + 1,
				Details:  map[string]any{"service": eerr.Service, "endpoint_url": eerr.EndpointURL},
			}, nil
		}
	}

	h.breaker.RecordFailure(service)
	h.record(routing.NewVPNError("vpc endpoint unavailable", ec.RoutingMethod, nil))
	return nil, routing.NewVPNError(
		fmt.Sprintf("VPC endpoint for %s unavailable after %d attempts: %s", eerr.Service, ec.MaxRetries, eerr.Message),
		ec.RoutingMethod,
		map[string]any{"service": eerr.Service},
	)
}

func (h *Handler) handleRoutingFault(ctx context.Context, rerr *RoutingFault, ec ErrorContext) (*Recovery, error) {
	const service = "cross_partition_routing"
	if h.breaker.IsOpen(service) {
		h.record(routing.NewVPNError("cross-partition routing circuit breaker open", ec.RoutingMethod, nil))
		return nil, &CircuitOpenError{Service: service}
	}

	routes := h.routeTables()
	gateway := h.gateway()
	if routes.valid && gateway.available {
		h.breaker.RecordSuccess(service)
		return &Recovery{
			Action:   "routing_verified",
			Attempts: 1,
			Details: map[string]any{
				"verified_cidrs": routes.cidrs,
				"gateway_id":     gateway.id,
				"gateway_state":  gateway.state,
			},
		}, nil
	}

	h.breaker.RecordFailure(service)
	h.record(routing.NewVPNError("cross-partition routing fault", ec.RoutingMethod, nil))
	return nil, routing.NewVPNError(
		fmt.Sprintf("cross-partition routing failure %s->%s: %s", rerr.SourcePartition, rerr.DestinationPartition, rerr.Message),
		ec.RoutingMethod, nil,
	)
}

// handleAuthFailure never retries: the same credentials cannot start working
// on a second attempt.
func (h *Handler) handleAuthFailure(aerr *AuthError, ec ErrorContext) error {
	h.record(routing.NewAuthenticationError(aerr.Message, ec.RoutingMethod, nil))
	return routing.NewAuthenticationError(
		fmt.Sprintf("Bedrock authentication failed over VPN: %s", aerr.Message),
		ec.RoutingMethod,
		map[string]any{"function_name": ec.FunctionName},
	)
}

type tunnelStatus struct {
	healthy      bool
	backupTunnel string
}

// failoverTunnel would promote the standby tunnel. Hardcoded success until
// the VPN automation exists.
func failoverTunnel(tunnelID string) tunnelStatus {
	return tunnelStatus{healthy: true, backupTunnel: "tunnel-2"}
}

// checkEndpoint would probe the interface endpoint. Hardcoded available.
func checkEndpoint(service string) bool {
	return true
}

type routeCheck struct {
	valid bool
	cidrs []string
}

func verifyRouteTables() routeCheck {
	return routeCheck{valid: true, cidrs: []string{"172.16.0.0/16", "10.0.0.0/16"}}
}

type gatewayCheck struct {
	available bool
	id        string
	state     string
}

func gatewayStatus() gatewayCheck {
	return gatewayCheck{available: true, id: "vgw-demo123", state: "available"}
}

// record buffers an error for metric emission and flushes full batches.
func (h *Handler) record(e *routing.Error) {
	h.mu.Lock()
	h.batch = append(h.batch, e)
	full := len(h.batch) >= metricBatchSize
	h.mu.Unlock()
	if full {
		h.Flush(context.Background())
	}
}

// Flush emits buffered error metrics. Emission failures are logged and
// dropped.
func (h *Handler) Flush(ctx context.Context) {
	h.mu.Lock()
	pending := h.batch
	h.batch = nil
	h.mu.Unlock()

	if h.metrics == nil {
		return
	}
	for _, e := range pending {
		if err := h.metrics.EmitErrorMetrics(ctx, e); err != nil {
			slog.Warn("vpn error metric emission failed", "error", err)
		}
	}
}
