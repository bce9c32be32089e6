package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kbukum/taskchain/errors"
)

// WorkFunc processes item i of a batch.
type WorkFunc func(ctx context.Context, i int) (any, error)

// RunInfo describes how one item of a batch finished.
type RunInfo struct {
	Success  bool
	Err      error
	Duration time.Duration
}

// Executor runs a batch of n independent items and returns their results and
// run infos indexed by item. Results of failed items are nil.
type Executor interface {
	Run(ctx context.Context, n int, work WorkFunc) ([]any, []RunInfo)
}

// Config selects and tunes an executor.
type Config struct {
	// Workers bounds parallel items. 0 or 1 runs items sequentially.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
	// ItemTimeout bounds each item's run time. 0 disables the bound.
	ItemTimeout time.Duration `yaml:"item_timeout" mapstructure:"item_timeout" validate:"gte=0"`
}

// New returns a Sync executor for Workers <= 1 and a Pool otherwise.
func New(cfg Config) Executor {
	if cfg.Workers <= 1 {
		return &Sync{ItemTimeout: cfg.ItemTimeout}
	}
	return &Pool{Workers: cfg.Workers, ItemTimeout: cfg.ItemTimeout}
}

// runItem executes one item, converting panics, deadline overruns and a
// cancelled batch context into per-item failures.
func runItem(ctx context.Context, i int, timeout time.Duration, work WorkFunc) (out any, info RunInfo) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = nil
			info = RunInfo{
				Err:      errors.Internal(fmt.Errorf("item %d panicked: %v\n%s", i, r, debug.Stack())),
				Duration: time.Since(start),
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, RunInfo{Err: err}
	}

	itemCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := work(itemCtx, i)
	info.Duration = time.Since(start)
	if timeout > 0 && ctx.Err() == nil && itemCtx.Err() == context.DeadlineExceeded {
		cause := err
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		err = errors.Timeout(fmt.Sprintf("item %d", i)).WithCause(cause)
	}
	if err != nil {
		info.Err = err
		return nil, info
	}
	info.Success = true
	return res, info
}
