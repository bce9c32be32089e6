package pipeline

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/taskchain/executor"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/observability"
	"github.com/kbukum/taskchain/task"
)

func TestRun_RecordsSpansAndMetrics(t *testing.T) {
	ctx := context.Background()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(ctx)
	metrics, err := observability.NewSchedulerMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	exec := executor.Chain(&executor.Sync{},
		executor.WithLogging(logger.Get("executor")),
		executor.WithTracing(),
		executor.WithMetrics(metrics),
	)
	a, b := source("A", "a0", "a1"), mapper("B")
	p, err := New([]task.Task{a, b},
		WithMetaDir(t.TempDir()),
		WithExecutor(exec),
		WithMetrics(metrics),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(ctx, PerTask{}, RunOptions{NeedOutput: true})
	if err != nil {
		t.Fatal(err)
	}

	names := map[string]int{}
	var runID string
	for _, s := range recorder.Ended() {
		names[s.Name()]++
		if s.Name() == observability.SpanRun {
			for _, kv := range s.Attributes() {
				if string(kv.Key) == observability.AttrRunID {
					runID = kv.Value.AsString()
				}
			}
		}
	}
	if names[observability.SpanRun] != 1 || names[observability.SpanRunPath] != 1 {
		t.Errorf("unexpected run spans: %v", names)
	}
	if names[observability.SpanBatch+".A"] != 1 || names[observability.SpanBatch+".B"] != 1 {
		t.Errorf("expected one batch span per task: %v", names)
	}
	if names[observability.SpanItem] != 4 {
		t.Errorf("expected 4 item spans, got %d", names[observability.SpanItem])
	}
	if runID != res.RunID {
		t.Errorf("run span carries run id %q, result has %q", runID, res.RunID)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	var paths, jobs int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch md.Name {
				case observability.MetricRunPathTotal:
					paths += dp.Value
				case observability.MetricJobTotal:
					jobs += dp.Value
				}
			}
		}
	}
	if paths != 1 || jobs != 4 {
		t.Errorf("expected 1 run path and 4 jobs recorded, got %d and %d", paths, jobs)
	}
}
