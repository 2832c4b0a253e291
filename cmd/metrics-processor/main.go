package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/analytics"
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

	processor := analytics.NewProcessor(
		dynamodb.NewFromConfig(awscfg),
		cloudwatch.NewFromConfig(awscfg),
		sns.NewFromConfig(awscfg),
		cfg.RequestLogTable,
		cfg.SNSTopicArn,
	)

	slog.Info("Metrics processor initialized",
		"request_log_table", cfg.RequestLogTable,
		"alert_topic", cfg.SNSTopicArn)

	lambda.Start(func(ctx context.Context, _ events.CloudWatchEvent) error {
		_, err := processor.Run(ctx)
		return err
	})
}
