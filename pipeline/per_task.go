package pipeline

import (
	"context"

	"github.com/kbukum/taskchain/executor"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/task"
)

// RunPerTask runs every planned path one task at a time: each task's full job
// list is one executor batch, and each task gathers its jobs from the names
// of the previous task's successful jobs. SplitSave is ignored.
func (p *Pipeline) RunPerTask(ctx context.Context, opts RunOptions) (*Result, error) {
	return p.execute(ctx, StrategyPerTask, opts, false, runPathPerTask)
}

func runPathPerTask(ctx context.Context, r *run, rp RunPath, res *Result) error {
	p := r.p

	var pivot task.Task
	specs := []task.JobSpec{}
	upstreamComplete := true
	if rp.Start > 0 {
		pivot = p.tasks[rp.Start-1]
		m, err := p.EffectiveMeta(ctx, pivot)
		if err != nil {
			return err
		}
		for _, name := range m.AllJobs {
			specs = append(specs, task.JobSpec{Name: name})
		}
		upstreamComplete = m.IsDone()
	}
	prevIndex, err := indexSpecs(pivotName(pivot), specs)
	if err != nil {
		return err
	}

	upstream := map[string]task.Data{}
	survivors := []string{}
	for k := 0; k <= rp.Len(); k++ {
		idx := rp.Start - 1 + k

		var t task.Task
		if k == 0 {
			if pivot == nil {
				continue
			}
			t = pivot
		} else {
			t = p.tasks[idx]
			gathered, err := t.GatherJobs(ctx, survivors)
			if err != nil {
				return gatherError(t, err)
			}
			if gathered == nil {
				gathered = []task.JobSpec{}
			}
			if err := checkDependencies(t.Name(), idx, gathered, prevIndex); err != nil {
				return err
			}
			if prevIndex, err = indexSpecs(t.Name(), gathered); err != nil {
				return err
			}
			specs = gathered
		}

		isPivot := k == 0
		saving := !isPivot && r.isSaving(t.Name())
		forced := !isPivot && r.isForced(t.Name())
		needOutput := k < rp.Len() || r.wantsOutput(rp)
		batch := specs

		log := r.log.WithFields(logger.Fields(logger.FieldTask, t.Name()))
		log.Info("running task", logger.Fields(logger.FieldJobs, len(batch)))

		if saving {
			if err := r.markAttempted(ctx, t); err != nil {
				return err
			}
		}

		prev := upstream
		// Pivot jobs without a cached output still count as finished; only
		// the jobs that actually read them fail.
		absent := make([]bool, len(batch))
		results, infos := r.exec.Run(executor.WithLabel(ctx, t.Name()), len(batch), func(ctx context.Context, i int) (any, error) {
			spec := batch[i]
			cached := t.HasJobData(ctx, spec.Name)
			if isPivot {
				absent[i] = !cached
				return loadPivot(ctx, t, spec, cached, needOutput && cached)
			}
			plan := jobPlan{cached: cached, save: saving, forced: forced, needOutput: needOutput}
			return runJob(ctx, t, spec, plan, upstreamOf(t, spec, prev))
		})

		upstream = make(map[string]task.Data, len(batch))
		survivors = make([]string, 0, len(batch))
		for i, info := range infos {
			if !info.Success {
				continue
			}
			if !absent[i] {
				upstream[batch[i].Name] = results[i]
			}
			survivors = append(survivors, batch[i].Name)
		}
		complete := upstreamComplete && len(survivors) == len(batch)
		upstreamComplete = complete

		log.Info("task finished", logger.Fields(
			logger.FieldJobs, len(batch),
			logger.FieldSucceeded, len(survivors),
		))

		if saving {
			if err := r.saveMeta(ctx, t, survivors, complete); err != nil {
				return err
			}
		}

		if k == rp.Len() && r.wantsOutput(rp) {
			res.FinalJobs = task.Names(batch)
			res.Outputs = make([]task.Data, len(batch))
			for i, info := range infos {
				if info.Success {
					res.Outputs[i] = results[i]
				}
			}
		}
	}
	return nil
}
