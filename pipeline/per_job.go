package pipeline

import (
	"context"
	"sync"

	"github.com/kbukum/taskchain/executor"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/task"
)

// RunPerJob runs every planned path as a single executor batch. Each item
// walks one final job's ancestor chain depth by depth, so only that chain's
// outputs are held in memory. Jobs that no final job depends on get an item
// of their own so that they run exactly as they would per task.
func (p *Pipeline) RunPerJob(ctx context.Context, opts RunOptions) (*Result, error) {
	return p.execute(ctx, StrategyPerJob, opts, opts.SplitSave, runPathPerJob)
}

// chainItem is one executor item: an ancestor chain ending at a final job or
// at a dangling job.
type chainItem struct {
	gens  Generations
	final bool
}

// completion records, per task index, the jobs that finished successfully.
type completion struct {
	mu   sync.Mutex
	done map[int]map[string]struct{}
}

func newCompletion() *completion {
	return &completion{done: make(map[int]map[string]struct{})}
}

func (c *completion) add(idx int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.done[idx]
	if !ok {
		m = make(map[string]struct{})
		c.done[idx] = m
	}
	m[name] = struct{}{}
}

func (c *completion) has(idx int, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.done[idx][name]
	return ok
}

// of returns the completed jobs of specs, in their gather order.
func (c *completion) of(idx int, specs []task.JobSpec) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		if _, ok := c.done[idx][s.Name]; ok {
			out = append(out, s.Name)
		}
	}
	return out
}

// perJobPath is the state of one run path under the per-job strategy.
type perJobPath struct {
	r      *run
	rp     RunPath
	g      *jobGraph
	steps  []task.Task
	cached map[jobKey]bool
	done   *completion
	// saved holds the jobs an earlier item already ran and stored in this
	// run; later items load them instead of running them again.
	saved *completion
}

func runPathPerJob(ctx context.Context, r *run, rp RunPath, res *Result) error {
	p := r.p
	g, pivot, err := p.gatherJobGraph(ctx, rp)
	if err != nil {
		return err
	}

	pivotComplete := true
	if pivot != nil {
		m, err := p.EffectiveMeta(ctx, pivot)
		if err != nil {
			return err
		}
		pivotComplete = m.IsDone()
	}

	for idx := rp.Start; idx <= rp.End; idx++ {
		if t := p.tasks[idx]; r.isSaving(t.Name()) {
			if err := r.markAttempted(ctx, t); err != nil {
				return err
			}
		}
	}

	items := chainItems(g, rp)
	pj := &perJobPath{
		r:     r,
		rp:    rp,
		g:     g,
		steps: append([]task.Task{pivot}, p.tasks[rp.Start:rp.End+1]...),
		done:  newCompletion(),
		saved: newCompletion(),
	}
	pj.prescan(ctx, items)

	finals := g.specs[rp.End]
	outputs := make([]task.Data, len(finals))
	finalIndex := g.gatherIndex(rp.End)

	r.log.Info("running chains", logger.Fields(
		logger.FieldRunPath, rp.String(),
		logger.FieldJobs, len(finals),
		"dangling", len(items)-len(finals),
	))

	label := p.names[rp.End]
	_, infos := r.exec.Run(executor.WithLabel(ctx, label), len(items), func(ctx context.Context, i int) (any, error) {
		item := items[i]
		out, finalOK, err := pj.runChain(ctx, item)
		if item.final && finalOK {
			outputs[finalIndex[item.gens.Final().Name]] = out
		}
		return out, err
	})

	succeeded := 0
	for _, info := range infos {
		if info.Success {
			succeeded++
		}
	}
	r.log.Info("chains finished", logger.Fields(
		logger.FieldRunPath, rp.String(),
		logger.FieldJobs, len(items),
		logger.FieldSucceeded, succeeded,
	))

	complete := pivotComplete
	if pivot != nil {
		pivotSpecs := g.specs[rp.Start-1]
		complete = complete && len(pj.done.of(rp.Start-1, pivotSpecs)) == len(pivotSpecs)
	}
	for idx := rp.Start; idx <= rp.End; idx++ {
		specs := g.specs[idx]
		completed := pj.done.of(idx, specs)
		complete = complete && len(completed) == len(specs)
		if t := p.tasks[idx]; r.isSaving(t.Name()) {
			if err := r.saveMeta(ctx, t, completed, complete); err != nil {
				return err
			}
		}
	}

	if r.wantsOutput(rp) {
		res.FinalJobs = task.Names(finals)
		res.Outputs = outputs
	}
	return nil
}

// chainItems returns one item per final job, followed by one item per job
// that no final job transitively depends on, deepest first. A dangling job's
// ancestors count as covered by its item.
func chainItems(g *jobGraph, rp RunPath) []chainItem {
	finals := g.specs[rp.End]
	items := make([]chainItem, 0, len(finals))
	covered := make(map[jobKey]struct{})
	cover := func(gens Generations) {
		for d, level := range gens {
			for _, s := range level {
				covered[jobKey{idx: rp.Start - 1 + d, name: s.Name}] = struct{}{}
			}
		}
	}

	for _, spec := range finals {
		gens := g.probe(rp.End, spec)
		items = append(items, chainItem{gens: gens, final: true})
		cover(gens)
	}
	for idx := rp.End - 1; idx >= rp.Start-1 && idx >= 0; idx-- {
		for _, spec := range g.specs[idx] {
			if _, ok := covered[jobKey{idx: idx, name: spec.Name}]; ok {
				continue
			}
			gens := g.probe(idx, spec)
			items = append(items, chainItem{gens: gens})
			cover(gens)
		}
	}
	return items
}

// prescan checks the cache once for every job in the merged forest.
func (pj *perJobPath) prescan(ctx context.Context, items []chainItem) {
	all := make([]Generations, len(items))
	for i, it := range items {
		all[i] = it.gens
	}
	forest := MergeGenerations(all)

	pj.cached = make(map[jobKey]bool)
	for d, level := range forest {
		t := pj.steps[d]
		if t == nil {
			continue
		}
		idx := pj.rp.Start - 1 + d
		for _, spec := range level {
			pj.cached[jobKey{idx: idx, name: spec.Name}] = t.HasJobData(ctx, spec.Name)
		}
	}
}

// willRun reports whether the job named name at idx executes instead of
// being served from the cache.
func (pj *perJobPath) willRun(idx int, name string) bool {
	if pj.saved.has(idx, name) {
		return false
	}
	return !pj.cached[jobKey{idx: idx, name: name}] || pj.r.isForced(pj.r.p.names[idx])
}

// needsOutput reports whether spec, at depth d of gens, feeds a job that will
// run at depth d+1. Jobs at the last depth need output only when they are
// final jobs whose outputs the caller receives.
func (pj *perJobPath) needsOutput(item chainItem, d int, spec task.JobSpec) bool {
	if d == len(item.gens)-1 {
		return item.final && pj.r.wantsOutput(pj.rp)
	}
	nextIdx := pj.rp.Start + d
	for _, child := range item.gens[d+1] {
		if !contains(child.Dependencies, spec.Name) {
			continue
		}
		if pj.willRun(nextIdx, child.Name) {
			return true
		}
	}
	return false
}

// runChain walks one item's generations. A failed job does not stop the walk:
// jobs that do not depend on it still run, and the item reports the first
// failure. finalOK tells whether the chain's last job succeeded.
func (pj *perJobPath) runChain(ctx context.Context, item chainItem) (out task.Data, finalOK bool, err error) {
	upstream := map[string]task.Data{}
	for d, level := range item.gens {
		t := pj.steps[d]
		if t == nil {
			continue
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, false, cerr
		}
		idx := pj.rp.Start - 1 + d
		isPivot := d == 0
		saving := !isPivot && pj.r.isSaving(t.Name())
		forced := !isPivot && pj.r.isForced(t.Name())

		current := make(map[string]task.Data, len(level))
		for _, spec := range level {
			cached := pj.cached[jobKey{idx: idx, name: spec.Name}]
			rerun := forced
			if saving && pj.saved.has(idx, spec.Name) {
				cached, rerun = true, false
			}
			need := pj.needsOutput(item, d, spec)

			var v task.Data
			var jerr error
			if isPivot {
				v, jerr = loadPivot(ctx, t, spec, cached, need)
			} else {
				plan := jobPlan{cached: cached, save: saving, forced: rerun, needOutput: need}
				v, jerr = runJob(ctx, t, spec, plan, upstreamOf(t, spec, upstream))
				if jerr == nil && saving && (!cached || rerun) {
					pj.saved.add(idx, spec.Name)
				}
			}
			if jerr != nil {
				if err == nil {
					err = jerr
				}
				continue
			}
			current[spec.Name] = v
			pj.done.add(idx, spec.Name)
		}
		upstream = current
	}

	final := item.gens.Final()
	out, finalOK = upstream[final.Name]
	return out, finalOK, err
}
