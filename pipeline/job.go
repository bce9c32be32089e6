package pipeline

import (
	"context"
	"fmt"

	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/task"
)

// jobPlan is what both strategies decide about one job before touching it.
type jobPlan struct {
	cached     bool
	save       bool
	forced     bool
	needOutput bool
}

// runJob loads or computes one job. A cached job that is not forced is only
// loaded when its output is needed; any other job runs and, for saving
// tasks, has its output stored. deps is called only when the job runs.
func runJob(ctx context.Context, t task.Task, spec task.JobSpec, plan jobPlan, deps func() ([]task.Data, error)) (task.Data, error) {
	if plan.cached && !plan.forced {
		if !plan.needOutput {
			return nil, nil
		}
		return t.LoadJobData(ctx, spec.Name)
	}

	in, err := deps()
	if err != nil {
		return nil, err
	}
	out, err := t.Run(ctx, spec, in)
	if err != nil {
		return nil, errors.JobFailed(t.Name(), spec.Name, err)
	}
	if plan.save {
		if err := t.SaveJobData(ctx, spec.Name, out); err != nil {
			return nil, err
		}
	}
	if !plan.needOutput {
		return nil, nil
	}
	return out, nil
}

// loadPivot reads a pivot job's cached output. Pivot jobs belong to a task
// outside the run path and are never executed, so a missing output is an
// error only when a running job has to read it.
func loadPivot(ctx context.Context, t task.Task, spec task.JobSpec, cached, needOutput bool) (task.Data, error) {
	if !needOutput {
		return nil, nil
	}
	if !cached {
		return nil, errors.JobDataIO(t.Name(), spec.Name, errors.NotFound("job output", spec.Name))
	}
	return t.LoadJobData(ctx, spec.Name)
}

// upstreamOf returns a deps func over the outputs of completed upstream jobs.
func upstreamOf(t task.Task, spec task.JobSpec, upstream map[string]task.Data) func() ([]task.Data, error) {
	return func() ([]task.Data, error) {
		in := make([]task.Data, len(spec.Dependencies))
		for i, dep := range spec.Dependencies {
			v, ok := upstream[dep]
			if !ok {
				return nil, errors.JobFailed(t.Name(), spec.Name, fmt.Errorf("dependency %q did not complete", dep))
			}
			in[i] = v
		}
		return in, nil
	}
}
