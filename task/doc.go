// Package task defines the unit of work scheduled by a pipeline.
//
// A Task expands into Jobs. Each job of task k depends on named jobs of task
// k-1, and a task's job list is derived from its predecessor's job names
// alone. Concrete tasks embed *Base, which provides metadata persistence and
// the job output cache, and implement GatherJobs and Run:
//
//	type Resize struct {
//	    *task.Base
//	    Params ResizeParams
//	}
//
//	func NewResize(p ResizeParams) *Resize {
//	    return &Resize{Base: task.NewBase("resize", task.WithHParams(&p)), Params: p}
//	}
//
//	func (r *Resize) GatherJobs(ctx context.Context, previous []string) ([]task.JobSpec, error) {
//	    specs := make([]task.JobSpec, len(previous))
//	    for i, name := range previous {
//	        specs[i] = task.JobSpec{Name: name + "-small", Dependencies: []string{name}}
//	    }
//	    return specs, nil
//	}
package task
