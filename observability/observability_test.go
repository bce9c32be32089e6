package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.Enabled {
		t.Error("expected tracing to be disabled by default")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestSchedulerMetrics_Noop(t *testing.T) {
	m, err := NewSchedulerMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	ctx := context.Background()
	m.RecordJob(ctx, "a", "ok", time.Millisecond)
	m.RecordBatch(ctx, "a", 3)
	m.RecordRunPath(ctx, "per_task")
}

func TestSchedulerMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewSchedulerMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.RecordJob(ctx, "b", "ok", 10*time.Millisecond)
	m.RecordJob(ctx, "b", "ok", 20*time.Millisecond)
	m.RecordJob(ctx, "b", "error", 5*time.Millisecond)
	m.RecordBatch(ctx, "b", 3)
	m.RecordRunPath(ctx, "per_job")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = md.Data
		}
	}

	jobs, ok := found[MetricJobTotal].(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected %s sum, got %T", MetricJobTotal, found[MetricJobTotal])
	}
	var total int64
	for _, dp := range jobs.DataPoints {
		total += dp.Value
	}
	if total != 3 || len(jobs.DataPoints) != 2 {
		t.Errorf("expected 3 jobs across 2 status series, got %d in %d", total, len(jobs.DataPoints))
	}

	if _, ok := found[MetricJobDuration].(metricdata.Histogram[float64]); !ok {
		t.Errorf("expected %s histogram", MetricJobDuration)
	}
	if _, ok := found[MetricBatchSize].(metricdata.Histogram[int64]); !ok {
		t.Errorf("expected %s histogram", MetricBatchSize)
	}
	paths, ok := found[MetricRunPathTotal].(metricdata.Sum[int64])
	if !ok || len(paths.DataPoints) != 1 || paths.DataPoints[0].Value != 1 {
		t.Errorf("expected one run path recorded, got %+v", found[MetricRunPathTotal])
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func TestStartSpan_Attributes(t *testing.T) {
	sr := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanRun)
	SetSpanAttribute(ctx, AttrRunID, "run-1")
	SetSpanAttribute(ctx, AttrBatchSize, 4)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, AttrSucceeded, true)
	SetSpanAttribute(ctx, "tasks", []string{"a", "b"})
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Name() != SpanRun {
		t.Errorf("expected span %q, got %q", SpanRun, ended[0].Name())
	}
	attrs := map[string]bool{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = true
	}
	for _, k := range []string{AttrRunID, AttrBatchSize, "int64-key", "float-key", AttrSucceeded, "tasks"} {
		if !attrs[k] {
			t.Errorf("missing attribute %q", k)
		}
	}
	if attrs["unsupported-key"] {
		t.Error("unsupported values should be ignored")
	}
}

func TestSetSpanError(t *testing.T) {
	sr := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanItem)
	SetSpanError(ctx, fmt.Errorf("boom"))
	SetSpanError(ctx, nil)
	span.End()

	s := sr.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "boom" {
		t.Errorf("expected error status, got %+v", s.Status())
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(s.Events()))
	}
}

func TestSpanHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
	}
	for _, tc := range tests {
		if got := samplerFor(tc.rate).Description(); got != tc.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tc.rate, got, tc.want)
		}
	}
	if samplerFor(0.5) == nil {
		t.Error("expected ratio sampler")
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("taskchain", "1.0.0", "test")
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "taskchain" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name attribute")
	}
}

func TestInitTracer(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	cfg := DefaultTracerConfig("test-service")
	tp, err := InitTracer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	// Nothing is exported before shutdown, which flushes to an absent
	// collector; the error is expected and ignored.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tp.Shutdown(ctx)
}

func TestInitMeter(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)

	cfg := DefaultMeterConfig("test-service")
	cfg.Interval = 0
	mp, err := InitMeter(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitMeter: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = mp.Shutdown(ctx)
}
