package requestlog

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

type fakeDynamo struct {
	inputs []*dynamodb.PutItemInput
	err    error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.inputs = append(f.inputs, in)
	return &dynamodb.PutItemOutput{}, f.err
}

func TestLogWritesItem(t *testing.T) {
	fake := &fakeDynamo{}
	l := New(fake, "cross-partition-requests")
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	err := l.Log(context.Background(), domain.RequestLogEntry{
		RequestID:            "req-1",
		SourcePartition:      "govcloud",
		DestinationPartition: "commercial",
		RoutingMethod:        "vpn",
		ModelID:              "anthropic.claude-3-haiku-20240307-v1:0",
		LatencyMs:            1200,
		Success:              true,
		StatusCode:           200,
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("got %d writes", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.TableName != "cross-partition-requests" {
		t.Errorf("table = %q", *in.TableName)
	}

	item := in.Item
	if got := item["requestId"].(*types.AttributeValueMemberS).Value; got != "req-1" {
		t.Errorf("requestId = %q", got)
	}
	if got := item["routingMethod"].(*types.AttributeValueMemberS).Value; got != "vpn" {
		t.Errorf("routingMethod = %q", got)
	}
	if got := item["timestamp"].(*types.AttributeValueMemberS).Value; got != "2026-08-01T12:00:00Z" {
		t.Errorf("timestamp = %q", got)
	}
	wantTTL := strconv.FormatInt(fixed.Add(retention).Unix(), 10)
	if got := item["ttl"].(*types.AttributeValueMemberN).Value; got != wantTTL {
		t.Errorf("ttl = %q, want %s", got, wantTTL)
	}
}

func TestLogKeepsCallerTimestamps(t *testing.T) {
	fake := &fakeDynamo{}
	l := New(fake, "t")
	if err := l.Log(context.Background(), domain.RequestLogEntry{
		RequestID: "req-2",
		Timestamp: "2026-01-01T00:00:00Z",
		TTL:       42,
	}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	item := fake.inputs[0].Item
	if got := item["timestamp"].(*types.AttributeValueMemberS).Value; got != "2026-01-01T00:00:00Z" {
		t.Errorf("timestamp = %q", got)
	}
	if got := item["ttl"].(*types.AttributeValueMemberN).Value; got != "42" {
		t.Errorf("ttl = %q", got)
	}
}

func TestLogPropagatesWriteError(t *testing.T) {
	fake := &fakeDynamo{err: errors.New("throughput exceeded")}
	l := New(fake, "t")
	if err := l.Log(context.Background(), domain.RequestLogEntry{RequestID: "req-3"}); err == nil {
		t.Error("expected error")
	}
}
