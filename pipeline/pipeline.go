package pipeline

import (
	"context"
	"sync"

	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/executor"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/observability"
	"github.com/kbukum/taskchain/task"
	"github.com/kbukum/taskchain/validation"
)

// DefaultMetaDir is the metadata root used when WithMetaDir is not given.
const DefaultMetaDir = "/tmp/taskchain"

// Pipeline is a scheduling session over an ordered chain of tasks.
type Pipeline struct {
	tasks   []task.Task
	names   []string
	index   map[string]int
	metaDir string

	exec    executor.Executor
	metrics *observability.SchedulerMetrics
	log     *logger.Logger

	mu   sync.RWMutex
	fake map[string]task.Meta
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetaDir sets the directory under which each task keeps <dir>/<task>.
func WithMetaDir(dir string) Option {
	return func(p *Pipeline) { p.metaDir = dir }
}

// WithExecutor sets the executor used when RunOptions.Executor is nil.
func WithExecutor(exec executor.Executor) Option {
	return func(p *Pipeline) { p.exec = exec }
}

// WithMetrics records run path counts on m.
func WithMetrics(m *observability.SchedulerMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger replaces the component logger.
func WithLogger(log *logger.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New creates a pipeline over tasks, binds each task to its metadata
// directory and validates its hyper-parameters.
func New(tasks []task.Task, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		metaDir: DefaultMetaDir,
		index:   make(map[string]int, len(tasks)),
		fake:    make(map[string]task.Meta),
		log:     logger.Get("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.exec == nil {
		p.exec = &executor.Sync{}
	}

	v := validation.New().Custom(len(tasks) > 0, "tasks", "a pipeline needs at least one task")
	for _, t := range tasks {
		v.TaskName("tasks", t.Name())
	}
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}

	for i, t := range tasks {
		name := t.Name()
		if _, dup := p.index[name]; dup {
			return nil, errors.DuplicateTask(name)
		}
		p.index[name] = i
		p.names = append(p.names, name)
	}
	for _, t := range tasks {
		if err := t.Bind(p.metaDir); err != nil {
			return nil, err
		}
		if err := t.CheckHParams(); err != nil {
			return nil, err
		}
	}
	p.tasks = append([]task.Task(nil), tasks...)

	p.log.Debug("pipeline created", logger.Fields("tasks", p.names, "meta_dir", p.metaDir))
	return p, nil
}

// Tasks returns the tasks in pipeline order.
func (p *Pipeline) Tasks() []task.Task { return append([]task.Task(nil), p.tasks...) }

// TaskNames returns the task names in pipeline order.
func (p *Pipeline) TaskNames() []string { return append([]string(nil), p.names...) }

// MetaDir returns the metadata root.
func (p *Pipeline) MetaDir() string { return p.metaDir }

// Task returns the named task.
func (p *Pipeline) Task(name string) (task.Task, error) {
	i, ok := p.index[name]
	if !ok {
		return nil, errors.UnknownTask(name)
	}
	return p.tasks[i], nil
}

// IsClean reports whether no task has been faked done in this session.
func (p *Pipeline) IsClean() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.fake) == 0
}

// FakeTaskDone makes the named task read as done, with its cached jobs as
// the job list, for the rest of the session. The session becomes unclean and
// stops persisting metadata. Faking a task that is already done is a no-op.
func (p *Pipeline) FakeTaskDone(ctx context.Context, name string) error {
	t, err := p.Task(name)
	if err != nil {
		return err
	}
	log := p.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldTask, name))

	m, err := p.EffectiveMeta(ctx, t)
	if err != nil {
		return err
	}
	if m.IsDone() {
		log.Warn("task is already done, not faking it")
		return nil
	}

	finished, err := t.GatherFinishedJobs(ctx)
	if err != nil {
		return err
	}
	if finished == nil {
		finished = []string{}
	}

	p.mu.Lock()
	p.fake[name] = task.Meta{Status: task.StatusDone, AllJobs: finished, UpdatedAt: m.UpdatedAt}
	p.mu.Unlock()

	log.Warn("task faked as done, session is unclean and will not persist metadata",
		logger.Fields(logger.FieldJobs, len(finished)))
	return nil
}

// EffectiveMeta returns the faked metadata of t if any, otherwise its
// persisted metadata.
func (p *Pipeline) EffectiveMeta(ctx context.Context, t task.Task) (task.Meta, error) {
	p.mu.RLock()
	m, ok := p.fake[t.Name()]
	p.mu.RUnlock()
	if ok {
		m.AllJobs = append([]string(nil), m.AllJobs...)
		return m, nil
	}
	return t.SavedMeta(ctx)
}

// Status returns the effective metadata of every task, in pipeline order.
func (p *Pipeline) Status(ctx context.Context) ([]task.Meta, error) {
	metas := make([]task.Meta, len(p.tasks))
	for i, t := range p.tasks {
		m, err := p.EffectiveMeta(ctx, t)
		if err != nil {
			return nil, err
		}
		metas[i] = m
	}
	return metas, nil
}

// sanitize drops names that are not part of the pipeline, with a warning.
func (p *Pipeline) sanitize(ctx context.Context, field string, names []string) []string {
	kept := make([]string, 0, len(names))
	var dropped []string
	for _, n := range names {
		if _, ok := p.index[n]; ok {
			kept = append(kept, n)
		} else {
			dropped = append(dropped, n)
		}
	}
	if len(dropped) > 0 {
		p.log.WithContext(ctx).Warn("unknown task names ignored",
			logger.Fields("option", field, "names", dropped))
	}
	return kept
}

// metaWriter persists task metadata. It is only handed out by a clean session.
type metaWriter struct {
	log *logger.Logger
}

func (p *Pipeline) writer(ctx context.Context) (*metaWriter, bool) {
	if !p.IsClean() {
		return nil, false
	}
	return &metaWriter{log: p.log.WithContext(ctx)}, true
}

func (w *metaWriter) markAttempted(ctx context.Context, t task.Task) error {
	return w.save(ctx, t, nil, task.StatusAttempted)
}

func (w *metaWriter) save(ctx context.Context, t task.Task, completed []string, status task.Status) error {
	if err := t.SaveMeta(ctx, completed, status); err != nil {
		if _, ok := errors.AsAppError(err); !ok {
			err = errors.MetaIO(t.Name(), err)
		}
		return err
	}
	fields := logger.Fields(logger.FieldTask, t.Name(), logger.FieldStatus, string(status))
	if completed != nil {
		fields[logger.FieldJobs] = len(completed)
	}
	w.log.Debug("task meta saved", fields)
	return nil
}
