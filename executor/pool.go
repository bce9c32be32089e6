package executor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool runs items concurrently on at most Workers goroutines.
type Pool struct {
	Workers     int
	ItemTimeout time.Duration
}

// Run implements Executor. Items report failures through their RunInfo, so
// the group never cancels siblings.
func (p *Pool) Run(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo) {
	results := make([]any, n)
	infos := make([]RunInfo, n)

	var g errgroup.Group
	g.SetLimit(p.limit(n))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i], infos[i] = runItem(ctx, i, p.ItemTimeout, work)
			return nil
		})
	}
	_ = g.Wait()
	return results, infos
}

func (p *Pool) limit(n int) int {
	if p.Workers <= 0 || p.Workers > n {
		return max(n, 1)
	}
	return p.Workers
}
