// Package observability wires OpenTelemetry tracing and metrics for the
// scheduler.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, cfg.Tracing)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, cfg.Metrics)
//	defer mp.Shutdown(ctx)
//
//	m, err := observability.NewSchedulerMetrics(observability.Meter("taskchain"))
//	m.RecordJob(ctx, "resize", "ok", elapsed)
//
// When neither provider is initialized the global otel no-op providers are
// used, so instrumented code costs nothing in tests.
package observability
