package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/task"
)

// RunPath is an inclusive, contiguous range of task indices executed together.
type RunPath struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Indices expands the path into its task indices.
func (r RunPath) Indices() []int {
	out := make([]int, 0, r.End-r.Start+1)
	for i := r.Start; i <= r.End; i++ {
		out = append(out, i)
	}
	return out
}

// Len returns the number of tasks in the path.
func (r RunPath) Len() int { return r.End - r.Start + 1 }

func (r RunPath) String() string { return fmt.Sprintf("[%d..%d]", r.Start, r.End) }

// PlanRunPaths decides which tasks must run. Every saving task, every forced
// task and, if needOutput, the last task anchors a backward walk that marks
// tasks until it reaches one that is done and not forced. The marks are
// collapsed into ascending contiguous paths; splitSave further cuts each path
// after every saving task. Names outside names are ignored.
func PlanRunPaths(names []string, metas []task.Meta, saving, force []string, needOutput, splitSave bool) []RunPath {
	n := len(names)
	if n == 0 {
		return nil
	}
	index := make(map[string]int, n)
	for i, name := range names {
		index[name] = i
	}
	savingSet := toSet(saving)
	forceSet := toSet(force)

	anchorSet := make(map[int]struct{})
	for _, name := range append(append([]string(nil), saving...), force...) {
		if i, ok := index[name]; ok {
			anchorSet[i] = struct{}{}
		}
	}
	if needOutput {
		anchorSet[n-1] = struct{}{}
	}
	anchors := make([]int, 0, len(anchorSet))
	for i := range anchorSet {
		anchors = append(anchors, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(anchors)))

	mask := make([]bool, n)
	for _, anchor := range anchors {
		for i := anchor; i >= 0; i-- {
			_, forced := forceSet[names[i]]
			if i < len(metas) && metas[i].IsDone() && !forced {
				break
			}
			mask[i] = true
		}
	}
	if needOutput {
		mask[n-1] = true
	}

	var paths []RunPath
	for i, marked := range mask {
		if !marked {
			continue
		}
		if len(paths) > 0 && paths[len(paths)-1].End == i-1 {
			paths[len(paths)-1].End = i
			continue
		}
		paths = append(paths, RunPath{Start: i, End: i})
	}

	if splitSave {
		paths = splitAfterSaving(paths, names, savingSet)
	}
	return paths
}

func splitAfterSaving(paths []RunPath, names []string, saving map[string]struct{}) []RunPath {
	var out []RunPath
	for _, rp := range paths {
		start := rp.Start
		for i := rp.Start; i <= rp.End; i++ {
			if _, ok := saving[names[i]]; ok {
				out = append(out, RunPath{Start: start, End: i})
				start = i + 1
			}
		}
		if start <= rp.End {
			out = append(out, RunPath{Start: start, End: rp.End})
		}
	}
	return out
}

// DetermineRunPaths plans run paths from the tasks' effective metadata.
// Unknown names in saving and force are dropped with a warning.
func (p *Pipeline) DetermineRunPaths(ctx context.Context, saving, force []string, needOutput, splitSave bool) ([]RunPath, error) {
	saving = p.sanitize(ctx, "saving_tasks", saving)
	force = p.sanitize(ctx, "force_rerun_tasks", force)
	return p.determineRunPaths(ctx, saving, force, needOutput, splitSave)
}

func (p *Pipeline) determineRunPaths(ctx context.Context, saving, force []string, needOutput, splitSave bool) ([]RunPath, error) {
	metas, err := p.Status(ctx)
	if err != nil {
		return nil, err
	}
	paths := PlanRunPaths(p.names, metas, saving, force, needOutput, splitSave)
	p.log.WithContext(ctx).Info("run paths planned", logger.Fields(
		"count", len(paths),
		logger.FieldRunPath, pathStrings(paths),
	))
	return paths, nil
}

func pathStrings(paths []RunPath) []string {
	out := make([]string, len(paths))
	for i, rp := range paths {
		out[i] = rp.String()
	}
	return out
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
