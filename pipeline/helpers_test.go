package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/taskchain/task"
)

// testTask is a configurable task whose outputs are strings.
type testTask struct {
	*task.Base
	gather func(previous []string) []task.JobSpec

	mu       sync.Mutex
	fail     map[string]bool
	runs     map[string]int
	loads    map[string]int
	gathered [][]string
}

func (t *testTask) LoadJobData(ctx context.Context, name string) (task.Data, error) {
	t.mu.Lock()
	t.loads[name]++
	t.mu.Unlock()
	return t.Base.LoadJobData(ctx, name)
}

func (t *testTask) totalLoads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.loads {
		n += c
	}
	return n
}

func (t *testTask) GatherJobs(_ context.Context, previous []string) ([]task.JobSpec, error) {
	t.mu.Lock()
	t.gathered = append(t.gathered, append([]string(nil), previous...))
	t.mu.Unlock()
	return t.gather(previous), nil
}

func (t *testTask) Run(_ context.Context, job task.JobSpec, deps []task.Data) (task.Data, error) {
	t.mu.Lock()
	t.runs[job.Name]++
	failing := t.fail[job.Name]
	t.mu.Unlock()
	if failing {
		return nil, fmt.Errorf("job %s broke", job.Name)
	}
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = fmt.Sprint(d)
	}
	if len(parts) == 0 {
		return job.Name, nil
	}
	return job.Name + "(" + strings.Join(parts, ",") + ")", nil
}

func (t *testTask) failOn(names ...string) *testTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = make(map[string]bool)
	for _, n := range names {
		t.fail[n] = true
	}
	return t
}

func (t *testTask) runCount(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs[name]
}

func (t *testTask) totalRuns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.runs {
		n += c
	}
	return n
}

func (t *testTask) lastGathered() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.gathered) == 0 {
		return nil
	}
	return t.gathered[len(t.gathered)-1]
}

func newTestTask(name string, gather func(previous []string) []task.JobSpec) *testTask {
	return &testTask{
		Base:   task.NewBase(name),
		gather: gather,
		fail:   map[string]bool{},
		runs:   map[string]int{},
		loads:  map[string]int{},
	}
}

// source produces fixed jobs without dependencies.
func source(name string, jobs ...string) *testTask {
	return newTestTask(name, func([]string) []task.JobSpec {
		specs := make([]task.JobSpec, len(jobs))
		for i, j := range jobs {
			specs[i] = task.JobSpec{Name: j}
		}
		return specs
	})
}

// mapper produces one job <name>.<prev> per previous job.
func mapper(name string) *testTask {
	return newTestTask(name, func(previous []string) []task.JobSpec {
		specs := make([]task.JobSpec, len(previous))
		for i, p := range previous {
			specs[i] = task.JobSpec{Name: name + "." + p, Dependencies: []string{p}}
		}
		return specs
	})
}

// reducer produces a single job depending on every previous job.
func reducer(name string) *testTask {
	return newTestTask(name, func(previous []string) []task.JobSpec {
		return []task.JobSpec{{Name: name, Dependencies: append([]string(nil), previous...)}}
	})
}

// pairs produces one job per adjacent pair of previous jobs, so inner jobs
// are shared by two children.
func pairs(name string) *testTask {
	return newTestTask(name, func(previous []string) []task.JobSpec {
		var specs []task.JobSpec
		for i := 0; i+1 < len(previous); i++ {
			specs = append(specs, task.JobSpec{
				Name:         fmt.Sprintf("%s.%d", name, i),
				Dependencies: []string{previous[i], previous[i+1]},
			})
		}
		return specs
	})
}

func newTestPipeline(t *testing.T, dir string, tasks ...*testTask) *Pipeline {
	t.Helper()
	list := make([]task.Task, len(tasks))
	for i, tt := range tasks {
		list[i] = tt
	}
	p, err := New(list, WithMetaDir(dir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func setMeta(t *testing.T, tt *testTask, status task.Status, jobs ...string) {
	t.Helper()
	if jobs == nil {
		jobs = []string{}
	}
	if err := tt.SaveMeta(context.Background(), jobs, status); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}
}

func metaOf(t *testing.T, tt *testTask) task.Meta {
	t.Helper()
	m, err := tt.SavedMeta(context.Background())
	if err != nil {
		t.Fatalf("SavedMeta: %v", err)
	}
	m.UpdatedAt = m.UpdatedAt.Truncate(0)
	return m
}

func strategies() []Strategy {
	return []Strategy{PerTask{}, PerJob{}}
}
