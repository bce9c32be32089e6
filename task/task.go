package task

import (
	"context"
	"time"
)

// Status is the persisted completion state of a task.
type Status string

const (
	// StatusPending is reported for tasks that never persisted metadata.
	StatusPending Status = "pending"
	// StatusAttempted marks a task whose last run was incomplete or in flight.
	StatusAttempted Status = "attempted"
	// StatusDone marks a task whose every job succeeded with complete upstream.
	StatusDone Status = "done"
)

// Meta is the per-task metadata persisted between runs.
type Meta struct {
	Status Status `json:"status"`
	// AllJobs lists, in gather order, the jobs that completed in the last run.
	AllJobs   []string  `json:"all_jobs"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsDone reports whether the metadata marks the task done.
func (m Meta) IsDone() bool { return m.Status == StatusDone }

// Data is an opaque job output. The scheduler never inspects it.
type Data = any

// JobSpec describes one job of a task.
type JobSpec struct {
	// Name is unique within the owning task's job list.
	Name string
	// Input is task-specific job input.
	Input any
	// Dependencies name jobs of the previous task. Empty only for jobs of the
	// first task and for synthetic pivot jobs.
	Dependencies []string
}

// Names returns the job names of specs, in order.
func Names(specs []JobSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Task is one stage of a pipeline.
type Task interface {
	// Name identifies the task within its pipeline.
	Name() string
	// Bind assigns the task's metadata directory, <metaDir>/<Name()>.
	Bind(metaDir string) error
	// CheckHParams validates the task's hyper-parameters.
	CheckHParams() error

	// GatherJobs produces this task's job list from the previous task's job
	// names. Tasks at index 0 receive an empty list.
	GatherJobs(ctx context.Context, previous []string) ([]JobSpec, error)
	// Run executes one job. deps holds the outputs of job.Dependencies, in order.
	Run(ctx context.Context, job JobSpec, deps []Data) (Data, error)

	HasJobData(ctx context.Context, name string) bool
	LoadJobData(ctx context.Context, name string) (Data, error)
	SaveJobData(ctx context.Context, name string, data Data) error

	// SavedMeta returns the persisted metadata, or pending with no jobs.
	SavedMeta(ctx context.Context) (Meta, error)
	// SaveMeta persists status and, unless completed is nil, the job list.
	SaveMeta(ctx context.Context, completed []string, status Status) error
	// GatherFinishedJobs lists jobs whose outputs are cached, in a stable order.
	GatherFinishedJobs(ctx context.Context) ([]string, error)
}
