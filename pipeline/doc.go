// Package pipeline schedules jobs across a linear chain of tasks.
//
// A Pipeline owns an ordered list of tasks. Every task expands into jobs that
// depend on named jobs of the previous task. A run plans which contiguous
// segments of the chain (run paths) must execute, builds the cross-task job
// graph for each segment, dispatches it through an executor.Executor and
// persists per-task completion metadata so later runs only redo what is
// missing.
//
// Two strategies execute a run path and persist the same metadata:
//
//   - PerTask runs one batch per task, holding a whole task's outputs in memory.
//   - PerJob runs one batch per run path whose items each walk a single final
//     job's ancestor chain, so only one chain's outputs are live per item.
//
// # Usage
//
//	p, err := pipeline.New([]task.Task{decode, resize, upload},
//	    pipeline.WithMetaDir("/var/lib/taskchain"))
//	if err != nil {
//	    return err
//	}
//	res, err := p.Run(ctx, pipeline.PerJob{}, pipeline.RunOptions{
//	    SavingTasks: []string{"resize"},
//	    NeedOutput:  true,
//	})
//
// FakeTaskDone lets a caller treat a partially finished task as done for the
// rest of the process. A faked session never persists metadata.
package pipeline
