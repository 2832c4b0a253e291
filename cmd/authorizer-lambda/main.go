package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/authorizer"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/config"
)

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

	auth := authorizer.New(
		secretsmanager.NewFromConfig(awscfg),
		cfg.AuthSecretsSecret,
		cfg.AllowedRoutingMethods,
	)

	slog.Info("Authorizer Lambda initialized",
		"auth_secret", cfg.AuthSecretsSecret,
		"allowed_methods", cfg.AllowedRoutingMethods)

	lambda.Start(auth.Handle)
}
