// Package executor runs batches of independent work items.
//
// An Executor receives a batch size and a WorkFunc closing over the shared
// arguments; it returns one result and one RunInfo per item, in item order.
// A failing or panicking item never affects its siblings:
//
//	exec := executor.New(executor.Config{Workers: 8})
//	results, infos := exec.Run(ctx, len(jobs), func(ctx context.Context, i int) (any, error) {
//	    return process(ctx, jobs[i])
//	})
//
// Middleware decorates every item of every batch:
//
//	exec = executor.Chain(exec,
//	    executor.WithLogging(log),
//	    executor.WithTracing(),
//	    executor.WithMetrics(metrics),
//	)
package executor
