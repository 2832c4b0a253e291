// Package requestlog persists one audit record per cross-partition request
// to DynamoDB. Logging is best effort: a write failure never fails the
// request that produced it.
package requestlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// retention drives the ttl attribute DynamoDB expires items on.
const retention = 30 * 24 * time.Hour

// DynamoDBAPI is the dynamodb surface the logger uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Logger writes request audit entries to one DynamoDB table.
type Logger struct {
	client DynamoDBAPI
	table  string
	now    func() time.Time
}

func New(client DynamoDBAPI, table string) *Logger {
	return &Logger{client: client, table: table, now: time.Now}
}

// Log writes one entry, stamping Timestamp and TTL when unset. The returned
// error is informational; callers log it and move on.
func (l *Logger) Log(ctx context.Context, entry domain.RequestLogEntry) error {
	now := l.now().UTC()
	if entry.Timestamp == "" {
		entry.Timestamp = now.Format(time.RFC3339)
	}
	if entry.TTL == 0 {
		entry.TTL = now.Add(retention).Unix()
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshaling request log entry: %w", err)
	}
	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &l.table,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("writing request log entry %s: %w", entry.RequestID, err)
	}
	return nil
}

// LogAsync fires the write on its own goroutine with a detached deadline so
// a slow DynamoDB endpoint cannot hold up the response.
func (l *Logger) LogAsync(entry domain.RequestLogEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Log(ctx, entry); err != nil {
			slog.Warn("request log write failed", "request_id", entry.RequestID, "error", err)
		}
	}()
}
