package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/config"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/bedrock"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/metrics"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/requestlog"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/infra/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/proxy"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/routing"
)

const bedrockTimeout = 30 * time.Second

func main() {
	stylelog.InitDefault(&tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
	})

	cfg := config.Load()

	awscfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		slog.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}

	emitter := metrics.NewEmitter(cloudwatch.NewFromConfig(awscfg), domain.RoutingInternet)
	handler := proxy.NewHandler(domain.RoutingInternet, cfg, proxy.Deps{
		Credentials: secrets.NewProvider(secretsmanager.NewFromConfig(awscfg), cfg.CredentialsSecret),
		Invoker:     bedrock.NewInvoker(domain.RoutingInternet, cfg.CommercialBedrockEndpoint, bedrockTimeout),
		Logger:      requestlog.New(dynamodb.NewFromConfig(awscfg), cfg.RequestLogTable),
		Metrics:     emitter,
		Errors:      routing.NewHandler(domain.RoutingInternet, emitter),
		Models: func(ctx context.Context, creds domain.Credentials) ([]bedrock.ModelInfo, error) {
			return bedrock.ListModels(ctx, bedrock.NewCatalogClient(creds, bedrockTimeout))
		},
	})

	slog.Info("Internet routing Lambda initialized",
		"credentials_secret", cfg.CredentialsSecret,
		"request_log_table", cfg.RequestLogTable)

	lambda.Start(handler.Handle)
}
