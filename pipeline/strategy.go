package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/taskchain/executor"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/observability"
	"github.com/kbukum/taskchain/task"
)

// Strategy names.
const (
	StrategyPerTask = "per_task"
	StrategyPerJob  = "per_job"
)

// RunOptions controls one run.
type RunOptions struct {
	// SavingTasks persist job outputs and metadata. Unknown names are ignored.
	SavingTasks []string
	// ForceRerunTasks run every job even when an output is cached.
	ForceRerunTasks []string
	// NeedOutput runs the last task and returns its outputs.
	NeedOutput bool
	// SplitSave cuts run paths after every saving task. PerTask ignores it.
	SplitSave bool
	// Executor overrides the pipeline's executor for this run.
	Executor executor.Executor
}

// Result describes a finished run.
type Result struct {
	RunID    string
	RunPaths []RunPath
	// FinalJobs names the last task's jobs when output was requested.
	FinalJobs []string
	// Outputs[i] is the output of FinalJobs[i], nil when that job failed.
	Outputs []task.Data
	// Statuses holds every task's effective status after the run.
	Statuses map[string]task.Status
	Duration time.Duration
}

// Strategy executes the planned run paths of a pipeline.
type Strategy interface {
	Name() string
	Run(ctx context.Context, p *Pipeline, opts RunOptions) (*Result, error)
}

// PerTask runs one batch per task.
type PerTask struct{}

func (PerTask) Name() string { return StrategyPerTask }

func (PerTask) Run(ctx context.Context, p *Pipeline, opts RunOptions) (*Result, error) {
	return p.RunPerTask(ctx, opts)
}

// PerJob runs one batch per run path, one item per final job.
type PerJob struct{}

func (PerJob) Name() string { return StrategyPerJob }

func (PerJob) Run(ctx context.Context, p *Pipeline, opts RunOptions) (*Result, error) {
	return p.RunPerJob(ctx, opts)
}

// StrategyByName returns the strategy registered under name.
func StrategyByName(name string) (Strategy, bool) {
	switch name {
	case StrategyPerTask:
		return PerTask{}, true
	case StrategyPerJob:
		return PerJob{}, true
	}
	return nil, false
}

// Run executes the pipeline with s.
func (p *Pipeline) Run(ctx context.Context, s Strategy, opts RunOptions) (*Result, error) {
	return s.Run(ctx, p, opts)
}

// run carries the per-run state shared by both strategies.
type run struct {
	p        *Pipeline
	id       string
	strategy string
	opts     RunOptions
	saving   []string
	force    []string
	exec     executor.Executor
	log      *logger.Logger
	start    time.Time
}

type pathFunc func(ctx context.Context, r *run, rp RunPath, res *Result) error

func (p *Pipeline) execute(ctx context.Context, strategy string, opts RunOptions, splitSave bool, runPath pathFunc) (res *Result, err error) {
	r := &run{
		p:        p,
		id:       uuid.NewString(),
		strategy: strategy,
		opts:     opts,
		exec:     opts.Executor,
		start:    time.Now(),
	}
	if r.exec == nil {
		r.exec = p.exec
	}

	ctx = logger.ContextWithRunID(ctx, r.id)
	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunID, r.id)
	observability.SetSpanAttribute(ctx, observability.AttrStrategy, strategy)
	defer func() {
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
	}()

	r.log = p.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldStrategy, strategy))
	r.saving = p.sanitize(ctx, "saving_tasks", opts.SavingTasks)
	r.force = p.sanitize(ctx, "force_rerun_tasks", opts.ForceRerunTasks)

	paths, err := p.determineRunPaths(ctx, r.saving, r.force, opts.NeedOutput, splitSave)
	if err != nil {
		return nil, err
	}

	res = &Result{RunID: r.id, RunPaths: paths}
	for _, rp := range paths {
		if err := r.runPath(ctx, rp, res, runPath); err != nil {
			return nil, err
		}
	}

	metas, err := p.Status(ctx)
	if err != nil {
		return nil, err
	}
	res.Statuses = make(map[string]task.Status, len(metas))
	for i, m := range metas {
		res.Statuses[p.names[i]] = m.Status
	}
	res.Duration = time.Since(r.start)

	r.log.Info("run finished", logger.Fields(
		"run_paths", len(paths),
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
	return res, nil
}

func (r *run) runPath(ctx context.Context, rp RunPath, res *Result, fn pathFunc) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanRunPath)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunPathStart, rp.Start)
	observability.SetSpanAttribute(ctx, observability.AttrRunPathEnd, rp.End)
	if r.p.metrics != nil {
		r.p.metrics.RecordRunPath(ctx, r.strategy)
	}

	r.log.Info("running path", logger.Fields(
		logger.FieldRunPath, rp.String(),
		"from", r.p.names[rp.Start],
		"to", r.p.names[rp.End],
	))
	if err := fn(ctx, r, rp, res); err != nil {
		observability.SetSpanError(ctx, err)
		return err
	}
	return nil
}

func (r *run) isSaving(name string) bool { return contains(r.saving, name) }

func (r *run) isForced(name string) bool { return contains(r.force, name) }

// wantsOutput reports whether the caller receives the outputs of rp's last task.
func (r *run) wantsOutput(rp RunPath) bool {
	return r.opts.NeedOutput && rp.End == len(r.p.tasks)-1
}

func (r *run) markAttempted(ctx context.Context, t task.Task) error {
	w, ok := r.p.writer(ctx)
	if !ok {
		return nil
	}
	return w.markAttempted(ctx, t)
}

func (r *run) saveMeta(ctx context.Context, t task.Task, completed []string, complete bool) error {
	w, ok := r.p.writer(ctx)
	if !ok {
		return nil
	}
	status := task.StatusAttempted
	if complete {
		status = task.StatusDone
	}
	if completed == nil {
		completed = []string{}
	}
	return w.save(ctx, t, completed, status)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
