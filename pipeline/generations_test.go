package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/task"
)

func levelNames(g Generations) [][]string {
	out := make([][]string, len(g))
	for i, level := range g {
		out[i] = task.Names(level)
	}
	return out
}

func TestBuildGenerations_SharedAncestors(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, t.TempDir(), source("A", "a0", "a1", "a2", "a3"), pairs("B"), pairs("C"))

	perFinal, specs, pivot, err := p.BuildGenerations(ctx, RunPath{Start: 0, End: 2})
	if err != nil {
		t.Fatalf("BuildGenerations: %v", err)
	}
	if pivot != nil {
		t.Errorf("expected no pivot for a path starting at 0")
	}
	if len(specs[-1]) != 0 || len(specs[0]) != 4 || len(specs[1]) != 3 || len(specs[2]) != 2 {
		t.Fatalf("unexpected job lists: %v", specs)
	}
	if len(perFinal) != 2 {
		t.Fatalf("expected one generation list per final job, got %d", len(perFinal))
	}

	want := [][]string{{}, {"a0", "a1", "a2"}, {"B.0", "B.1"}, {"C.0"}}
	if got := levelNames(perFinal[0]); !reflect.DeepEqual(got, want) {
		t.Errorf("generations of C.0 = %v, want %v", got, want)
	}
	if perFinal[1].Final().Name != "C.1" {
		t.Errorf("expected C.1 last, got %s", perFinal[1].Final().Name)
	}

	merged := MergeGenerations(perFinal)
	wantMerged := [][]string{{}, {"a0", "a1", "a2", "a3"}, {"B.0", "B.1", "B.2"}, {"C.0", "C.1"}}
	if got := levelNames(merged); !reflect.DeepEqual(got, wantMerged) {
		t.Errorf("merged = %v, want %v", got, wantMerged)
	}
}

func TestBuildGenerations_DependencySoundness(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, t.TempDir(),
		source("A", "a0", "a1", "a2", "a3", "a4"), pairs("B"), mapper("C"), pairs("D"), reducer("E"))

	perFinal, _, _, err := p.BuildGenerations(ctx, RunPath{Start: 0, End: 4})
	if err != nil {
		t.Fatal(err)
	}
	for _, gens := range perFinal {
		if gens.Depth() != 6 {
			t.Fatalf("expected depth 6, got %d", gens.Depth())
		}
		for k := 1; k < len(gens); k++ {
			prev := map[string]bool{}
			for _, s := range gens[k-1] {
				prev[s.Name] = true
			}
			seen := map[string]bool{}
			for _, s := range gens[k] {
				if seen[s.Name] {
					t.Errorf("job %s repeated at depth %d", s.Name, k)
				}
				seen[s.Name] = true
				for _, dep := range s.Dependencies {
					if !prev[dep] {
						t.Errorf("dependency %s of %s missing from depth %d", dep, s.Name, k-1)
					}
				}
			}
		}
	}
}

func TestBuildGenerations_Pivot(t *testing.T) {
	ctx := context.Background()
	a := source("A", "a0", "a1", "a2")
	p := newTestPipeline(t, t.TempDir(), a, mapper("B"), mapper("C"))
	setMeta(t, a, done, "a0", "a2")

	perFinal, specs, pivot, err := p.BuildGenerations(ctx, RunPath{Start: 1, End: 2})
	if err != nil {
		t.Fatal(err)
	}
	if pivot == nil || pivot.Name() != "A" {
		t.Fatalf("expected pivot A, got %v", pivot)
	}
	if got := task.Names(specs[0]); !reflect.DeepEqual(got, []string{"a0", "a2"}) {
		t.Errorf("pivot jobs = %v", got)
	}
	for _, s := range specs[0] {
		if len(s.Dependencies) != 0 || s.Input != nil {
			t.Errorf("pivot jobs carry no input or dependencies: %+v", s)
		}
	}
	want := [][]string{{"a2"}, {"B.a2"}, {"C.B.a2"}}
	if got := levelNames(perFinal[1]); !reflect.DeepEqual(got, want) {
		t.Errorf("generations = %v, want %v", got, want)
	}
}

func TestBuildGenerations_MalformedGraphs(t *testing.T) {
	tests := []struct {
		name   string
		gather func(previous []string) []task.JobSpec
	}{
		{"duplicate names", func([]string) []task.JobSpec {
			return []task.JobSpec{{Name: "x", Dependencies: []string{"a0"}}, {Name: "x", Dependencies: []string{"a0"}}}
		}},
		{"no dependencies", func([]string) []task.JobSpec {
			return []task.JobSpec{{Name: "x"}}
		}},
		{"unknown dependency", func([]string) []task.JobSpec {
			return []task.JobSpec{{Name: "x", Dependencies: []string{"ghost"}}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(t, t.TempDir(), source("A", "a0"), newTestTask("B", tc.gather))
			_, _, _, err := p.BuildGenerations(context.Background(), RunPath{Start: 0, End: 1})
			if !errors.IsCode(err, errors.ErrCodeMalformedJobGraph) {
				t.Fatalf("expected MALFORMED_JOB_GRAPH, got %v", err)
			}
		})
	}
}

func TestBuildGenerations_FirstTaskWithDependencies(t *testing.T) {
	bad := newTestTask("A", func([]string) []task.JobSpec {
		return []task.JobSpec{{Name: "a0", Dependencies: []string{"nothing"}}}
	})
	p := newTestPipeline(t, t.TempDir(), bad)
	_, _, _, err := p.BuildGenerations(context.Background(), RunPath{Start: 0, End: 0})
	if !errors.IsCode(err, errors.ErrCodeMalformedJobGraph) {
		t.Fatalf("expected MALFORMED_JOB_GRAPH, got %v", err)
	}
}

func TestBuildGenerations_InvalidPath(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), source("A", "a0"))
	_, _, _, err := p.BuildGenerations(context.Background(), RunPath{Start: 0, End: 3})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestMergeGenerations_Empty(t *testing.T) {
	if MergeGenerations(nil) != nil {
		t.Error("expected nil forest for no generations")
	}
}
