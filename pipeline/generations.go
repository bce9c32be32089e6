package pipeline

import (
	"context"
	"fmt"

	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/task"
)

// Generations lists, for one final job, the jobs it transitively needs grouped
// by depth. Index 0 is the pivot level (empty when the run path starts at the
// first task), index k belongs to task Start+k-1, and the last generation
// holds only the final job. Jobs of generation k+1 depend only on jobs of
// generation k.
type Generations [][]task.JobSpec

// Depth returns the number of generations.
func (g Generations) Depth() int { return len(g) }

// Final returns the job of the last generation.
func (g Generations) Final() task.JobSpec {
	last := g[len(g)-1]
	return last[len(last)-1]
}

// MergeGenerations unions generation lists of equal depth into one forest,
// keeping the first occurrence of each job name per depth.
func MergeGenerations(perFinal []Generations) Generations {
	if len(perFinal) == 0 {
		return nil
	}
	return unionGenerations(perFinal)
}

func unionGenerations(parts []Generations) Generations {
	depth := 0
	for _, g := range parts {
		if len(g) > depth {
			depth = len(g)
		}
	}
	out := make(Generations, depth)
	for d := 0; d < depth; d++ {
		seen := make(map[string]struct{})
		out[d] = []task.JobSpec{}
		for _, g := range parts {
			if d >= len(g) {
				continue
			}
			for _, spec := range g[d] {
				if _, ok := seen[spec.Name]; ok {
					continue
				}
				seen[spec.Name] = struct{}{}
				out[d] = append(out[d], spec)
			}
		}
	}
	return out
}

// jobGraph holds the gathered job lists of one run path and probes ancestor
// chains over them.
type jobGraph struct {
	path  RunPath
	names []string
	specs map[int][]task.JobSpec
	byKey map[int]map[string]int
	memo  map[jobKey]Generations
}

type jobKey struct {
	idx  int
	name string
}

// BuildGenerations gathers the jobs of every task in rp and returns one
// Generations per job of the path's last task, the job lists by task index
// (index Start-1 holds the synthetic pivot jobs) and the pivot task, nil when
// rp starts at the first task.
//
// A job graph with duplicate job names, a job outside the first task without
// dependencies, or a dependency on an unknown job fails with
// errors.ErrCodeMalformedJobGraph.
func (p *Pipeline) BuildGenerations(ctx context.Context, rp RunPath) ([]Generations, map[int][]task.JobSpec, task.Task, error) {
	g, pivot, err := p.gatherJobGraph(ctx, rp)
	if err != nil {
		return nil, nil, nil, err
	}
	finals := g.specs[rp.End]
	perFinal := make([]Generations, len(finals))
	for i, spec := range finals {
		perFinal[i] = g.probe(rp.End, spec)
	}
	return perFinal, g.specs, pivot, nil
}

func (p *Pipeline) gatherJobGraph(ctx context.Context, rp RunPath) (*jobGraph, task.Task, error) {
	if rp.Start < 0 || rp.End >= len(p.tasks) || rp.Start > rp.End {
		return nil, nil, errors.InvalidInput("run_path", fmt.Sprintf("run path %s is outside the pipeline", rp))
	}

	var pivot task.Task
	pivotSpecs := []task.JobSpec{}
	if rp.Start > 0 {
		pivot = p.tasks[rp.Start-1]
		m, err := p.EffectiveMeta(ctx, pivot)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range m.AllJobs {
			pivotSpecs = append(pivotSpecs, task.JobSpec{Name: name})
		}
	}

	g := &jobGraph{
		path:  rp,
		names: p.names,
		specs: map[int][]task.JobSpec{rp.Start - 1: pivotSpecs},
		byKey: make(map[int]map[string]int),
		memo:  make(map[jobKey]Generations),
	}
	if err := g.index(rp.Start-1, pivotName(pivot)); err != nil {
		return nil, nil, err
	}

	for idx := rp.Start; idx <= rp.End; idx++ {
		t := p.tasks[idx]
		specs, err := t.GatherJobs(ctx, task.Names(g.specs[idx-1]))
		if err != nil {
			return nil, nil, gatherError(t, err)
		}
		if specs == nil {
			specs = []task.JobSpec{}
		}
		g.specs[idx] = specs
		if err := g.index(idx, t.Name()); err != nil {
			return nil, nil, err
		}
		if err := g.checkDependencies(idx, t.Name()); err != nil {
			return nil, nil, err
		}
	}
	return g, pivot, nil
}

func gatherError(t task.Task, err error) error {
	return fmt.Errorf("gathering jobs of task %q: %w", t.Name(), err)
}

func pivotName(t task.Task) string {
	if t == nil {
		return ""
	}
	return t.Name()
}

func (g *jobGraph) index(idx int, taskName string) error {
	m, err := indexSpecs(taskName, g.specs[idx])
	if err != nil {
		return err
	}
	g.byKey[idx] = m
	return nil
}

func (g *jobGraph) checkDependencies(idx int, taskName string) error {
	return checkDependencies(taskName, idx, g.specs[idx], g.byKey[idx-1])
}

// indexSpecs maps job names to their gather position, rejecting duplicates.
func indexSpecs(taskName string, specs []task.JobSpec) (map[string]int, error) {
	m := make(map[string]int, len(specs))
	for i, spec := range specs {
		if _, dup := m[spec.Name]; dup {
			return nil, errors.MalformedJobGraph(taskName, spec.Name, "job name appears more than once")
		}
		m[spec.Name] = i
	}
	return m, nil
}

// checkDependencies verifies that every job of task idx names only jobs in
// prev and, outside the first task, names at least one.
func checkDependencies(taskName string, idx int, specs []task.JobSpec, prev map[string]int) error {
	for _, spec := range specs {
		if idx > 0 && len(spec.Dependencies) == 0 {
			return errors.MalformedJobGraph(taskName, spec.Name, "job declares no dependencies")
		}
		for _, dep := range spec.Dependencies {
			if _, ok := prev[dep]; !ok {
				return errors.MalformedJobGraph(taskName, spec.Name, fmt.Sprintf("depends on unknown job %q", dep))
			}
		}
	}
	return nil
}

// probe returns the ancestor generations of spec, which belongs to task idx.
func (g *jobGraph) probe(idx int, spec task.JobSpec) Generations {
	key := jobKey{idx: idx, name: spec.Name}
	if gens, ok := g.memo[key]; ok {
		return gens
	}

	var gens Generations
	switch {
	case idx == g.path.Start-1:
		gens = Generations{{spec}}
	case idx == 0:
		gens = Generations{{}, {spec}}
	default:
		parts := make([]Generations, 0, len(spec.Dependencies))
		for _, dep := range spec.Dependencies {
			parts = append(parts, g.probe(idx-1, g.specs[idx-1][g.byKey[idx-1][dep]]))
		}
		gens = append(unionGenerations(parts), []task.JobSpec{spec})
	}
	g.memo[key] = gens
	return gens
}

// gatherIndex returns the position of each job name in task idx's job list.
func (g *jobGraph) gatherIndex(idx int) map[string]int { return g.byKey[idx] }
