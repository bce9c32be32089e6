package task

import (
	"context"
	"path/filepath"

	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/storage"
	"github.com/kbukum/taskchain/storage/local"
	"github.com/kbukum/taskchain/validation"
)

// Base implements every Task method except GatherJobs and Run. Embed it in
// concrete tasks.
type Base struct {
	name    string
	hparams any
	codec   Codec
	storage storage.Storage

	dir  string
	meta MetaStore
	jobs *JobStore
	log  *logger.Logger
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithHParams sets the hyper-parameter struct validated by CheckHParams.
func WithHParams(hparams any) BaseOption {
	return func(b *Base) { b.hparams = hparams }
}

// WithCodec sets the codec for cached job outputs. Defaults to JSONCodec.
func WithCodec(c Codec) BaseOption {
	return func(b *Base) { b.codec = c }
}

// WithStorage caches job outputs in st under "<task>/jobs/" instead of the
// task's own directory.
func WithStorage(st storage.Storage) BaseOption {
	return func(b *Base) { b.storage = st }
}

// WithMetaStore overrides the metadata store chosen by Bind.
func WithMetaStore(m MetaStore) BaseOption {
	return func(b *Base) { b.meta = m }
}

// NewBase creates a Base for the named task.
func NewBase(name string, opts ...BaseOption) *Base {
	b := &Base{
		name:  name,
		codec: JSONCodec{},
		log:   logger.Get("task").WithFields(logger.Fields(logger.FieldTask, name)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Task.
func (b *Base) Name() string { return b.name }

// Dir returns the task directory assigned by Bind.
func (b *Base) Dir() string { return b.dir }

// Bind implements Task. Metadata lives in <metaDir>/<name>/meta.json; unless
// WithStorage was given, job outputs live in <metaDir>/<name>/jobs/.
func (b *Base) Bind(metaDir string) error {
	b.dir = filepath.Join(metaDir, b.name)
	if b.meta == nil {
		b.meta = NewFileMetaStore(b.dir)
	}

	if b.storage != nil {
		b.jobs = NewJobStore(b.name, b.storage, b.name+"/jobs", b.codec)
		return nil
	}
	st, err := local.NewStorage(b.dir)
	if err != nil {
		return errors.JobDataIO(b.name, "", err)
	}
	b.jobs = NewJobStore(b.name, st, "jobs", b.codec)
	return nil
}

// CheckHParams implements Task.
func (b *Base) CheckHParams() error {
	if b.hparams == nil {
		return nil
	}
	if err := validation.Validate(b.hparams); err != nil {
		return errors.InvalidHParams(b.name, err)
	}
	return nil
}

func (b *Base) bound() error {
	if b.meta == nil || b.jobs == nil {
		return errors.New(errors.ErrCodeInternal, "task "+b.name+" is not bound to a metadata directory")
	}
	return nil
}

// HasJobData implements Task.
func (b *Base) HasJobData(ctx context.Context, name string) bool {
	if b.bound() != nil {
		return false
	}
	return b.jobs.Has(ctx, name)
}

// LoadJobData implements Task.
func (b *Base) LoadJobData(ctx context.Context, name string) (Data, error) {
	if err := b.bound(); err != nil {
		return nil, err
	}
	return b.jobs.Load(ctx, name)
}

// SaveJobData implements Task.
func (b *Base) SaveJobData(ctx context.Context, name string, data Data) error {
	if err := b.bound(); err != nil {
		return err
	}
	return b.jobs.Save(ctx, name, data)
}

// SavedMeta implements Task.
func (b *Base) SavedMeta(ctx context.Context) (Meta, error) {
	if err := b.bound(); err != nil {
		return Meta{}, err
	}
	m, err := b.meta.Load(ctx)
	if err != nil {
		return Meta{}, errors.MetaIO(b.name, err)
	}
	return m, nil
}

// SaveMeta implements Task. A nil completed list keeps the persisted job list.
func (b *Base) SaveMeta(ctx context.Context, completed []string, status Status) error {
	if err := b.bound(); err != nil {
		return err
	}
	m, err := b.meta.Load(ctx)
	if err != nil {
		return errors.MetaIO(b.name, err)
	}
	m.Status = status
	if completed != nil {
		m.AllJobs = append([]string(nil), completed...)
	}
	if err := b.meta.Save(ctx, m); err != nil {
		return errors.MetaIO(b.name, err)
	}
	b.log.Debug("meta saved", logger.Fields(logger.FieldStatus, string(status), logger.FieldJobs, len(m.AllJobs)))
	return nil
}

// GatherFinishedJobs implements Task by listing cached outputs.
func (b *Base) GatherFinishedJobs(ctx context.Context) ([]string, error) {
	if err := b.bound(); err != nil {
		return nil, err
	}
	return b.jobs.List(ctx)
}

// ResetMeta removes the persisted metadata.
func (b *Base) ResetMeta(ctx context.Context) error {
	if err := b.bound(); err != nil {
		return err
	}
	if err := b.meta.Reset(ctx); err != nil {
		return errors.MetaIO(b.name, err)
	}
	return nil
}

// ClearJobData deletes every cached job output and returns how many were
// removed.
func (b *Base) ClearJobData(ctx context.Context) (int, error) {
	if err := b.bound(); err != nil {
		return 0, err
	}
	names, err := b.jobs.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := b.jobs.Delete(ctx, name); err != nil {
			return i, err
		}
	}
	if len(names) > 0 {
		b.log.Debug("job data cleared", logger.Fields(logger.FieldJobs, len(names)))
	}
	return len(names), nil
}
