package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/routing"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func metricNames(in *cloudwatch.PutMetricDataInput) []string {
	names := make([]string, 0, len(in.MetricData))
	for _, d := range in.MetricData {
		names = append(names, aws.ToString(d.MetricName))
	}
	return names
}

func TestEmitErrorMetrics(t *testing.T) {
	fake := &fakeCloudWatch{}
	e := NewEmitter(fake, domain.RoutingVPN)

	re := routing.NewVPNError("tunnel down", domain.RoutingVPN, nil)
	if err := e.EmitErrorMetrics(context.Background(), re); err != nil {
		t.Fatalf("EmitErrorMetrics: %v", err)
	}

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one PutMetricData call, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.ToString(in.Namespace) != "CrossPartition/DualRouting/Errors" {
		t.Errorf("namespace = %s", aws.ToString(in.Namespace))
	}

	names := metricNames(in)
	want := []string{"ErrorCount", "ErrorsByHttpStatus", "RetryableErrors"}
	if len(names) != len(want) {
		t.Fatalf("metric names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("metric[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestEmitErrorMetricsNonRetryable(t *testing.T) {
	fake := &fakeCloudWatch{}
	e := NewEmitter(fake, domain.RoutingInternet)

	re := routing.NewValidationError("bad request", domain.RoutingInternet, nil)
	if err := e.EmitErrorMetrics(context.Background(), re); err != nil {
		t.Fatalf("EmitErrorMetrics: %v", err)
	}

	names := metricNames(fake.inputs[0])
	for _, n := range names {
		if n == "RetryableErrors" {
			t.Error("non-retryable errors must not emit RetryableErrors")
		}
	}
}

func TestEmitRequestMetrics(t *testing.T) {
	fake := &fakeCloudWatch{}
	e := NewEmitter(fake, domain.RoutingInternet)

	if err := e.EmitRequestMetrics(context.Background(), 1500*time.Millisecond, true); err != nil {
		t.Fatalf("EmitRequestMetrics: %v", err)
	}

	in := fake.inputs[0]
	if aws.ToString(in.Namespace) != "CrossPartition/DualRouting" {
		t.Errorf("namespace = %s", aws.ToString(in.Namespace))
	}
	if len(in.MetricData) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(in.MetricData))
	}
	if got := aws.ToFloat64(in.MetricData[1].Value); got != 1500 {
		t.Errorf("latency value = %v, want 1500", got)
	}
}
