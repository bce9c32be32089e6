package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/task"
	"github.com/kbukum/taskchain/version"
)

// seedMeta leaves a done with two cached jobs, b attempted with one and c
// never run.
func seedMeta(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()

	a := task.NewBase("a")
	require.NoError(t, a.Bind(dir))
	require.NoError(t, a.SaveJobData(ctx, "x", "x"))
	require.NoError(t, a.SaveJobData(ctx, "y", "y"))
	require.NoError(t, a.SaveMeta(ctx, []string{"x", "y"}, task.StatusDone))

	b := task.NewBase("b")
	require.NoError(t, b.Bind(dir))
	require.NoError(t, b.SaveJobData(ctx, "x.b", "x.b"))
	require.NoError(t, b.SaveMeta(ctx, []string{"x.b"}, task.StatusAttempted))
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "taskchain.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func setup(t *testing.T) (metaDir, configPath string) {
	t.Helper()
	root := t.TempDir()
	metaDir = filepath.Join(root, "meta")
	seedMeta(t, metaDir)
	configPath = writeConfig(t, root, "meta_dir: "+metaDir+"\ntasks: [a, b, c]\n")
	return metaDir, configPath
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", configPath, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}

func TestStatus(t *testing.T) {
	_, cfg := setup(t)

	out, err := execute(t, cfg, "status", "--json")
	require.NoError(t, err)

	rows := decode[[]taskStatus](t, out)
	require.Len(t, rows, 3)

	assert.Equal(t, "a", rows[0].Task)
	assert.Equal(t, task.StatusDone, rows[0].Status)
	assert.Equal(t, 2, rows[0].Jobs)
	assert.Equal(t, 2, rows[0].Cached)
	assert.NotNil(t, rows[0].UpdatedAt)

	assert.Equal(t, task.StatusAttempted, rows[1].Status)
	assert.Equal(t, 1, rows[1].Cached)

	assert.Equal(t, task.StatusPending, rows[2].Status)
	assert.Equal(t, 0, rows[2].Cached)
	assert.Nil(t, rows[2].UpdatedAt)
}

func TestStatus_Table(t *testing.T) {
	_, cfg := setup(t)

	out, err := execute(t, cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "TASK")
	assert.Contains(t, out, "attempted")
	assert.Contains(t, out, "pending")
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []plannedPath
	}{
		{
			name: "nothing requested",
			want: []plannedPath{},
		},
		{
			name: "need output resumes after the done task",
			args: []string{"--need-output"},
			want: []plannedPath{{Start: 1, End: 2, Tasks: []string{"b", "c"}}},
		},
		{
			name: "forcing the done task extends the path",
			args: []string{"--need-output", "--force", "a"},
			want: []plannedPath{{Start: 0, End: 2, Tasks: []string{"a", "b", "c"}}},
		},
		{
			name: "split save cuts after the saving task",
			args: []string{"--need-output", "--saving", "b", "--split-save"},
			want: []plannedPath{
				{Start: 1, End: 1, Tasks: []string{"b"}},
				{Start: 2, End: 2, Tasks: []string{"c"}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, cfg := setup(t)
			out, err := execute(t, cfg, append([]string{"plan", "--json"}, tc.args...)...)
			require.NoError(t, err)

			plan := decode[planOutput](t, out)
			assert.Equal(t, "per_job", plan.Strategy)
			assert.Equal(t, tc.want, plan.Paths)
		})
	}
}

func TestPlan_PerTaskIgnoresSplitSave(t *testing.T) {
	root := t.TempDir()
	metaDir := filepath.Join(root, "meta")
	seedMeta(t, metaDir)
	cfg := writeConfig(t, root, "meta_dir: "+metaDir+"\ntasks: [a, b, c]\nrun:\n  strategy: per_task\n  saving_tasks: [b]\n  split_save: true\n  need_output: true\n")

	out, err := execute(t, cfg, "plan", "--json")
	require.NoError(t, err)

	plan := decode[planOutput](t, out)
	assert.Equal(t, "per_task", plan.Strategy)
	assert.Equal(t, []plannedPath{{Start: 1, End: 2, Tasks: []string{"b", "c"}}}, plan.Paths)
}

func TestPlan_BuildsConfiguredRuntime(t *testing.T) {
	root := t.TempDir()
	metaDir := filepath.Join(root, "meta")
	seedMeta(t, metaDir)
	cfg := writeConfig(t, root, "meta_dir: "+metaDir+"\ntasks: [a, b, c]\n"+
		"executor:\n  workers: 2\n"+
		"tracing:\n  enabled: true\n  endpoint: 127.0.0.1:4318\n  insecure: true\n")

	out, err := execute(t, cfg, "plan", "--json", "--need-output")
	require.NoError(t, err)

	plan := decode[planOutput](t, out)
	assert.Equal(t, []plannedPath{{Start: 1, End: 2, Tasks: []string{"b", "c"}}}, plan.Paths)
}

func TestPlan_Text(t *testing.T) {
	_, cfg := setup(t)

	out, err := execute(t, cfg, "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to run")

	out, err = execute(t, cfg, "plan", "--need-output")
	require.NoError(t, err)
	assert.Contains(t, out, "[1..2]  b -> c")
}

func TestReset(t *testing.T) {
	_, cfg := setup(t)

	out, err := execute(t, cfg, "reset", "b", "--jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset b (1 cached jobs removed)")

	out, err = execute(t, cfg, "status", "--json")
	require.NoError(t, err)
	rows := decode[[]taskStatus](t, out)
	assert.Equal(t, task.StatusPending, rows[1].Status)
	assert.Equal(t, 0, rows[1].Cached)
	assert.Equal(t, task.StatusDone, rows[0].Status)
}

func TestReset_KeepsJobsByDefault(t *testing.T) {
	_, cfg := setup(t)

	out, err := execute(t, cfg, "reset", "--all", "--json")
	require.NoError(t, err)
	results := decode[[]resetResult](t, out)
	require.Len(t, results, 3)

	out, err = execute(t, cfg, "status", "--json")
	require.NoError(t, err)
	rows := decode[[]taskStatus](t, out)
	for _, r := range rows {
		assert.Equal(t, task.StatusPending, r.Status, r.Task)
	}
	assert.Equal(t, 2, rows[0].Cached)
}

func TestReset_Errors(t *testing.T) {
	_, cfg := setup(t)

	_, err := execute(t, cfg, "reset")
	require.Error(t, err)

	_, err = execute(t, cfg, "reset", "a", "--all")
	require.Error(t, err)

	_, err = execute(t, cfg, "reset", "zzz")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownTask))
}

func TestTasksFlagOverridesConfig(t *testing.T) {
	_, cfg := setup(t)

	out, err := execute(t, cfg, "--tasks", "a,b", "status", "--json")
	require.NoError(t, err)
	rows := decode[[]taskStatus](t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].Task)
}

func TestInvalidConfig(t *testing.T) {
	root := t.TempDir()
	cfg := writeConfig(t, root, "meta_dir: "+root+"\n")

	_, err := execute(t, cfg, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "missing.yml"), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "taskchain "+version.Version)
}

func TestInspectedTaskCannotRun(t *testing.T) {
	it := &inspectedTask{Base: task.NewBase("a")}
	_, err := it.GatherJobs(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
	_, err = it.Run(context.Background(), task.JobSpec{Name: "x"}, nil)
	assert.Error(t, err)
}
