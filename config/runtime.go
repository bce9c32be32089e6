package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbukum/taskchain/executor"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/observability"
	"github.com/kbukum/taskchain/storage"
)

// Runtime holds what a pipeline is built from: job output storage, the
// executor and the scheduler metrics, plus the telemetry providers started
// for them.
type Runtime struct {
	// Storage is nil when no storage provider is configured.
	Storage  storage.Storage
	Executor executor.Executor
	// Metrics is nil unless metrics are enabled.
	Metrics *observability.SchedulerMetrics

	shutdown []func(context.Context) error
}

// NewRuntime starts tracing and metrics when enabled, opens the storage and
// builds the executor. Call Shutdown when done to flush telemetry.
func (c *Config) NewRuntime(ctx context.Context, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{}

	if c.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, c.Tracing)
		if err != nil {
			return nil, fmt.Errorf("config.tracing: %w", err)
		}
		rt.shutdown = append(rt.shutdown, tp.Shutdown)
	}

	if c.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, c.Metrics)
		if err != nil {
			_ = rt.Shutdown(ctx)
			return nil, fmt.Errorf("config.metrics: %w", err)
		}
		rt.shutdown = append(rt.shutdown, mp.Shutdown)
		m, err := observability.NewSchedulerMetrics(observability.Meter(c.Metrics.ServiceName))
		if err != nil {
			_ = rt.Shutdown(ctx)
			return nil, fmt.Errorf("config.metrics: %w", err)
		}
		rt.Metrics = m
	}

	st, err := c.NewStorage(ctx, log)
	if err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	rt.Storage = st
	rt.Executor = c.NewExecutor(log, rt.Metrics)

	log.Debug("runtime ready", logger.Fields(
		"tracing", c.Tracing.Enabled,
		"metrics", c.Metrics.Enabled,
		"storage", c.Storage.Provider,
		"workers", c.Executor.Workers,
	))
	return rt, nil
}

// Shutdown stops the telemetry providers in reverse start order.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(r.shutdown) - 1; i >= 0; i-- {
		if err := r.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.shutdown = nil
	return errors.Join(errs...)
}
