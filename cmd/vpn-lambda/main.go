package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/config"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/awsclients"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/bedrock"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/metrics"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/requestlog"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/proxy"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/routing"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/vpn"
)

// The VPN path tolerates slower round trips through the tunnel.
const bedrockTimeout = 60 * time.Second

func main() {
	stylelog.InitDefault(&tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
	})

	cfg := config.Load()
	ctx := context.Background()

	awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		slog.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// All AWS traffic from this Lambda stays inside the VPC via interface
	// endpoints, falling back to default endpoints when one is unhealthy.
	factory := awsclients.NewFactory(awscfg, cfg.VPCEndpoints)
	emitter := metrics.NewEmitter(factory.CloudWatch(), domain.RoutingVPN)

	breaker := routing.NewCircuitBreaker()
	recovery := vpn.NewHandler(breaker, emitter)
	if err := factory.ValidateVPNConnectivity(cfg.CommercialBedrockEndpoint); err != nil {
		ec := vpn.NewErrorContext("cold-start", "dual-routing-vpn-lambda")
		if _, rerr := recovery.Handle(ctx, &vpn.TunnelError{TunnelID: "tunnel-1", Message: err.Error()}, ec); rerr != nil {
			slog.Warn("VPN connectivity degraded at cold start", "error", rerr)
		}
		recovery.Flush(ctx)
	}

	if healthErr := emitter.EmitEndpointHealth(ctx, factory.HealthyMap()); healthErr != nil {
		slog.Warn("Endpoint health metric emission failed", "error", healthErr)
	}

	handler := proxy.NewHandler(domain.RoutingVPN, cfg, proxy.Deps{
		Credentials: secrets.NewProvider(factory.SecretsManager(), cfg.CredentialsSecret),
		Invoker:     bedrock.NewInvoker(domain.RoutingVPN, cfg.CommercialBedrockEndpoint, bedrockTimeout),
		Logger:      requestlog.New(factory.DynamoDB(), cfg.RequestLogTable),
		Metrics:     emitter,
		Errors:      routing.NewHandler(domain.RoutingVPN, emitter),
		Models: func(ctx context.Context, creds domain.Credentials) ([]bedrock.ModelInfo, error) {
			return bedrock.ListModels(ctx, bedrock.NewCatalogClient(creds, bedrockTimeout))
		},
	})

	slog.Info("VPN routing Lambda initialized",
		"credentials_secret", cfg.CredentialsSecret,
		"request_log_table", cfg.RequestLogTable,
		"endpoint_health", factory.HealthyMap())

	lambda.Start(handler.Handle)
}
