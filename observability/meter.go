package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/taskchain/logger"
)

// Metric instrument names.
const (
	MetricJobTotal     = "taskchain.job.total"
	MetricJobDuration  = "taskchain.job.duration"
	MetricBatchSize    = "taskchain.batch.size"
	MetricRunPathTotal = "taskchain.runpath.total"
)

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Get("observability").Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// SchedulerMetrics holds the instruments recorded while a pipeline runs.
type SchedulerMetrics struct {
	jobTotal     metric.Int64Counter
	jobDuration  metric.Float64Histogram
	batchSize    metric.Int64Histogram
	runPathTotal metric.Int64Counter
}

// NewSchedulerMetrics creates the scheduler instruments on the given meter.
func NewSchedulerMetrics(meter metric.Meter) (*SchedulerMetrics, error) {
	jobTotal, err := meter.Int64Counter(MetricJobTotal,
		metric.WithDescription("Executed batch items by task and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricJobTotal, err)
	}

	jobDuration, err := meter.Float64Histogram(MetricJobDuration,
		metric.WithDescription("Duration of batch items in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricJobDuration, err)
	}

	batchSize, err := meter.Int64Histogram(MetricBatchSize,
		metric.WithDescription("Number of items submitted per executor batch"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricBatchSize, err)
	}

	runPathTotal, err := meter.Int64Counter(MetricRunPathTotal,
		metric.WithDescription("Run paths executed by strategy"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRunPathTotal, err)
	}

	return &SchedulerMetrics{
		jobTotal:     jobTotal,
		jobDuration:  jobDuration,
		batchSize:    batchSize,
		runPathTotal: runPathTotal,
	}, nil
}

// RecordJob records one finished batch item.
func (m *SchedulerMetrics) RecordJob(ctx context.Context, task, status string, duration time.Duration) {
	m.jobTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("status", status),
	))
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("task", task),
	))
}

// RecordBatch records the size of a batch handed to an executor.
func (m *SchedulerMetrics) RecordBatch(ctx context.Context, task string, size int) {
	m.batchSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String("task", task)))
}

// RecordRunPath counts a run path started by the given strategy.
func (m *SchedulerMetrics) RecordRunPath(ctx context.Context, strategy string) {
	m.runPathTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}
