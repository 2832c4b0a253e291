// Package metrics emits CloudWatch custom metrics for the dual routing
// system. All emission is best-effort; callers log and continue on failure.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
	"github.com/freshie/bedrock-cross-partition-inferencing/internal/routing"
)

const (
	requestNamespace = "CrossPartition/DualRouting"
	errorNamespace   = "CrossPartition/DualRouting/Errors"
)

// CloudWatchAPI is the subset of the CloudWatch client used by the emitter.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Emitter publishes request and error counters dimensioned by routing method.
type Emitter struct {
	client CloudWatchAPI
	method domain.RoutingMethod
	now    func() time.Time
}

// NewEmitter creates an emitter for one routing method.
func NewEmitter(client CloudWatchAPI, method domain.RoutingMethod) *Emitter {
	return &Emitter{client: client, method: method, now: time.Now}
}

func dim(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func (e *Emitter) count(name string, dims []types.Dimension) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Dimensions: dims,
		Timestamp:  aws.Time(e.now().UTC()),
	}
}

// EmitErrorMetrics publishes the three error counters for a classified
// failure: total, by HTTP status, and (when retryable) by category.
func (e *Emitter) EmitErrorMetrics(ctx context.Context, re *routing.Error) error {
	data := []types.MetricDatum{
		e.count("ErrorCount", []types.Dimension{
			dim("RoutingMethod", re.RoutingMethod.String()),
			dim("ErrorCategory", string(re.Category)),
			dim("ErrorCode", re.Code),
			dim("Severity", string(re.Severity)),
		}),
		e.count("ErrorsByHttpStatus", []types.Dimension{
			dim("RoutingMethod", re.RoutingMethod.String()),
			dim("HttpStatus", strconv.Itoa(re.HTTPStatus)),
		}),
	}

	if re.Retryable {
		data = append(data, e.count("RetryableErrors", []types.Dimension{
			dim("RoutingMethod", re.RoutingMethod.String()),
			dim("ErrorCategory", string(re.Category)),
		}))
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(errorNamespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put error metrics: %w", err)
	}
	return nil
}

// EmitRequestMetrics publishes the per-request count and latency metrics.
func (e *Emitter) EmitRequestMetrics(ctx context.Context, latency time.Duration, success bool) error {
	partitionDims := []types.Dimension{
		dim("RoutingMethod", e.method.String()),
		dim("SourcePartition", "govcloud"),
		dim("DestinationPartition", "commercial"),
	}

	ts := aws.Time(e.now().UTC())
	data := []types.MetricDatum{
		{
			MetricName: aws.String("CrossPartitionRequests"),
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Dimensions: append(partitionDims, dim("Success", strconv.FormatBool(success))),
			Timestamp:  ts,
		},
		{
			MetricName: aws.String("CrossPartitionLatency"),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Dimensions: partitionDims,
			Timestamp:  ts,
		},
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(requestNamespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put request metrics: %w", err)
	}
	return nil
}

// EmitEndpointHealth publishes 0/1 gauges for VPC endpoint health checks.
func (e *Emitter) EmitEndpointHealth(ctx context.Context, health map[string]bool) error {
	if len(health) == 0 {
		return nil
	}

	data := make([]types.MetricDatum, 0, len(health))
	for name, healthy := range health {
		value := 0.0
		if healthy {
			value = 1.0
		}
		data = append(data, types.MetricDatum{
			MetricName: aws.String("VPCEndpointHealth"),
			Value:      aws.Float64(value),
			Unit:       types.StandardUnitCount,
			Dimensions: []types.Dimension{
				dim("RoutingMethod", e.method.String()),
				dim("EndpointName", name),
			},
			Timestamp: aws.Time(e.now().UTC()),
		})
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(requestNamespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put endpoint health metrics: %w", err)
	}
	return nil
}
