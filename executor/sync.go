package executor

import (
	"context"
	"time"
)

// Sync runs items one after another on the calling goroutine.
type Sync struct {
	ItemTimeout time.Duration
}

// Run implements Executor.
func (s *Sync) Run(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo) {
	results := make([]any, n)
	infos := make([]RunInfo, n)
	for i := 0; i < n; i++ {
		results[i], infos[i] = runItem(ctx, i, s.ItemTimeout, work)
	}
	return results, infos
}
