package executor

import (
	"context"
	"time"

	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/observability"
)

// Middleware decorates an Executor.
type Middleware func(Executor) Executor

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(exec Executor, mws ...Middleware) Executor {
	for i := len(mws) - 1; i >= 0; i-- {
		exec = mws[i](exec)
	}
	return exec
}

type labelKey struct{}

// WithLabel names the batches started with ctx, typically after the task
// whose jobs they run. Middlewares use it to tag logs, spans and metrics.
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelKey{}, label)
}

// Label returns the batch label set by WithLabel, or "batch".
func Label(ctx context.Context) string {
	if l, ok := ctx.Value(labelKey{}).(string); ok && l != "" {
		return l
	}
	return "batch"
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo)

// Run implements Executor.
func (f ExecutorFunc) Run(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo) {
	return f(ctx, n, work)
}

// WithTracing opens a span per batch and a child span per item.
func WithTracing() Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo) {
			label := Label(ctx)
			ctx, span := observability.StartSpan(ctx, observability.SpanBatch+"."+label)
			defer span.End()
			observability.SetSpanAttribute(ctx, observability.AttrTask, label)
			observability.SetSpanAttribute(ctx, observability.AttrBatchSize, n)

			return next.Run(ctx, n, func(ctx context.Context, i int) (any, error) {
				ctx, span := observability.StartSpan(ctx, observability.SpanItem)
				defer span.End()
				observability.SetSpanAttribute(ctx, observability.AttrItemIndex, i)

				out, err := work(ctx, i)
				if err != nil {
					observability.SetSpanError(ctx, err)
				}
				return out, err
			})
		})
	}
}

// WithMetrics records the batch size and one job sample per item.
func WithMetrics(m *observability.SchedulerMetrics) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo) {
			label := Label(ctx)
			m.RecordBatch(ctx, label, n)

			results, infos := next.Run(ctx, n, work)
			for _, info := range infos {
				status := "ok"
				if !info.Success {
					status = "error"
				}
				m.RecordJob(ctx, label, status, info.Duration)
			}
			return results, infos
		})
	}
}

// WithLogging logs each failed item and a summary per batch.
func WithLogging(log *logger.Logger) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo) {
			label := Label(ctx)
			l := log.WithContext(ctx)
			start := time.Now()

			results, infos := next.Run(ctx, n, work)

			succeeded := 0
			for i, info := range infos {
				if info.Success {
					succeeded++
					continue
				}
				l.Error("batch item failed", logger.Fields(
					logger.FieldTask, label,
					"item", i,
					logger.FieldError, errString(info.Err),
					logger.FieldDuration, info.Duration.Milliseconds(),
				))
			}
			l.Debug("batch finished", logger.Fields(
				logger.FieldTask, label,
				logger.FieldJobs, n,
				logger.FieldSucceeded, succeeded,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			))
			return results, infos
		})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
