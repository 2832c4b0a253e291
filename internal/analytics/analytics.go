// Package analytics aggregates the DynamoDB request log on a schedule and
// publishes per-routing-method usage metrics plus operator alerts.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

const (
	analyticsNamespace = "CrossPartition/DualRouting/Analytics"

	// Alert thresholds. Success rate is a percentage of requests in the
	// window; latency is the window's p95.
	successRateThreshold = 95.0
	p95LatencyThreshold  = 10 * time.Second

	defaultWindow = time.Hour
)

// DynamoDBAPI is the scan surface of the request log table.
type DynamoDBAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// CloudWatchAPI publishes the aggregated metrics.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// SNSAPI publishes operator alerts. May be nil to disable alerting.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// MethodStats aggregates one routing method's traffic over the window.
type MethodStats struct {
	Requests       int            `json:"requests"`
	Successes      int            `json:"successes"`
	SuccessRate    float64        `json:"success_rate"`
	AvgLatencyMs   float64        `json:"avg_latency_ms"`
	P95LatencyMs   int64          `json:"p95_latency_ms"`
	MaxLatencyMs   int64          `json:"max_latency_ms"`
	ErrorsByStatus map[string]int `json:"errors_by_status,omitempty"`
	ModelUsage     map[string]int `json:"model_usage,omitempty"`
}

// Report is the outcome of one aggregation run.
type Report struct {
	WindowStart time.Time               `json:"window_start"`
	WindowEnd   time.Time               `json:"window_end"`
	PerMethod   map[string]*MethodStats `json:"per_method"`
	Alerts      []string                `json:"alerts,omitempty"`
}

// Processor runs the aggregation. Metric and alert publication are best
// effort once the scan succeeded.
type Processor struct {
	db       DynamoDBAPI
	cw       CloudWatchAPI
	sns      SNSAPI
	table    string
	topicArn string
	window   time.Duration
	now      func() time.Time
}

func NewProcessor(db DynamoDBAPI, cw CloudWatchAPI, snsClient SNSAPI, table, topicArn string) *Processor {
	return &Processor{
		db:       db,
		cw:       cw,
		sns:      snsClient,
		table:    table,
		topicArn: topicArn,
		window:   defaultWindow,
		now:      time.Now,
	}
}

// Run scans the last window of request log entries, aggregates them, then
// publishes metrics and any threshold alerts.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	end := p.now().UTC()
	start := end.Add(-p.window)

	entries, err := p.scanWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("scanning request log: %w", err)
	}

	report := aggregate(entries, start, end)

	if err := p.publishMetrics(ctx, report); err != nil {
		slog.Warn("Analytics metric publication failed", "error", err)
	}
	p.raiseAlerts(ctx, report)

	slog.Info("Analytics run complete",
		"entries", len(entries),
		"methods", len(report.PerMethod),
		"alerts", len(report.Alerts))
	return report, nil
}

func (p *Processor) scanWindow(ctx context.Context, start, end time.Time) ([]domain.RequestLogEntry, error) {
	var entries []domain.RequestLogEntry
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := p.db.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(p.table),
			FilterExpression: aws.String("#ts BETWEEN :start AND :end"),
			ExpressionAttributeNames: map[string]string{
				"#ts": "timestamp",
			},
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":start": &ddbtypes.AttributeValueMemberS{Value: start.Format(time.RFC3339)},
				":end":   &ddbtypes.AttributeValueMemberS{Value: end.Format(time.RFC3339)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}

		var page []domain.RequestLogEntry
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshaling request log items: %w", err)
		}
		entries = append(entries, page...)

		if out.LastEvaluatedKey == nil {
			return entries, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func aggregate(entries []domain.RequestLogEntry, start, end time.Time) *Report {
	report := &Report{
		WindowStart: start,
		WindowEnd:   end,
		PerMethod:   map[string]*MethodStats{},
	}
	latencies := map[string][]int64{}

	for _, e := range entries {
		method := e.RoutingMethod
		if method == "" {
			method = "unknown"
		}
		stats := report.PerMethod[method]
		if stats == nil {
			stats = &MethodStats{
				ErrorsByStatus: map[string]int{},
				ModelUsage:     map[string]int{},
			}
			report.PerMethod[method] = stats
		}

		stats.Requests++
		if e.Success {
			stats.Successes++
		} else {
			stats.ErrorsByStatus[fmt.Sprintf("%d", e.StatusCode)]++
		}
		if e.ModelID != "" {
			stats.ModelUsage[e.ModelID]++
		}
		latencies[method] = append(latencies[method], e.LatencyMs)
		if e.LatencyMs > stats.MaxLatencyMs {
			stats.MaxLatencyMs = e.LatencyMs
		}
	}

	for method, stats := range report.PerMethod {
		stats.SuccessRate = 100 * float64(stats.Successes) / float64(stats.Requests)
		stats.AvgLatencyMs = avg(latencies[method])
		stats.P95LatencyMs = percentile(latencies[method], 0.95)

		if stats.SuccessRate < successRateThreshold {
			report.Alerts = append(report.Alerts, fmt.Sprintf(
				"%s routing success rate %.1f%% below %.0f%% over the last window (%d requests)",
				method, stats.SuccessRate, successRateThreshold, stats.Requests))
		}
		if stats.P95LatencyMs > p95LatencyThreshold.Milliseconds() {
			report.Alerts = append(report.Alerts, fmt.Sprintf(
				"%s routing p95 latency %dms above %dms over the last window",
				method, stats.P95LatencyMs, p95LatencyThreshold.Milliseconds()))
		}
	}
	return report
}

func avg(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func percentile(values []int64, q float64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (p *Processor) publishMetrics(ctx context.Context, report *Report) error {
	var data []cwtypes.MetricDatum
	ts := report.WindowEnd

	for method, stats := range report.PerMethod {
		dims := []cwtypes.Dimension{{
			Name:  aws.String("RoutingMethod"),
			Value: aws.String(method),
		}}
		data = append(data,
			datum("RequestCount", float64(stats.Requests), cwtypes.StandardUnitCount, dims, ts),
			datum("SuccessRate", stats.SuccessRate, cwtypes.StandardUnitPercent, dims, ts),
			datum("AverageLatency", stats.AvgLatencyMs, cwtypes.StandardUnitMilliseconds, dims, ts),
			datum("P95Latency", float64(stats.P95LatencyMs), cwtypes.StandardUnitMilliseconds, dims, ts),
			datum("MaxLatency", float64(stats.MaxLatencyMs), cwtypes.StandardUnitMilliseconds, dims, ts),
		)
		for model, count := range stats.ModelUsage {
			data = append(data, datum("ModelInvocations", float64(count), cwtypes.StandardUnitCount,
				append(dims, cwtypes.Dimension{Name: aws.String("ModelId"), Value: aws.String(model)}), ts))
		}
	}
	if len(data) == 0 {
		return nil
	}

	// CloudWatch caps PutMetricData at 1000 datums; analytics batches stay
	// far below that, so one call suffices.
	_, err := p.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(analyticsNamespace),
		MetricData: data,
	})
	return err
}

func datum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension, ts time.Time) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dims,
		Timestamp:  aws.Time(ts),
	}
}

func (p *Processor) raiseAlerts(ctx context.Context, report *Report) {
	if p.sns == nil || p.topicArn == "" || len(report.Alerts) == 0 {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		slog.Warn("Alert payload encoding failed", "error", err)
		return
	}
	_, err = p.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicArn),
		Subject:  aws.String("Dual-routing traffic alert"),
		Message:  aws.String(string(payload)),
	})
	if err != nil {
		slog.Warn("Alert publication failed", "error", err)
	}
}
