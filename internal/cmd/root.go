// Package cmd implements the taskchain command line. The commands inspect
// and maintain the metadata a pipeline persists under its meta directory;
// running jobs needs the task implementations and happens in Go code.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskchain/config"
	"github.com/kbukum/taskchain/errors"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/pipeline"
	"github.com/kbukum/taskchain/task"

	// Register the job output storage providers.
	_ "github.com/kbukum/taskchain/storage/local"
	_ "github.com/kbukum/taskchain/storage/s3"
)

type options struct {
	configFile string
	envFile    string
	metaDir    string
	tasks      []string
	logLevel   string
	jsonOutput bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	opts options
	cfg  *config.Config
	log  *logger.Logger
	rt   *config.Runtime
}

// NewRootCommand builds the taskchain command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "taskchain",
		Short: "Inspect and maintain taskchain pipeline state",
		Long: `taskchain reads the per-task metadata a pipeline keeps under its meta
directory and reports what the next run will do.

Configuration is read from taskchain.yml (or config.yml) and the environment.
Environment variables override the file: META_DIR sets meta_dir, TASKS sets
the comma separated task list and RUN_SAVING_TASKS sets run.saving_tasks.

Examples:
  # Show the status of every task
  taskchain status

  # Show which run paths a run that needs the final output would execute
  taskchain plan --need-output

  # Forget the metadata and cached outputs of one task
  taskchain reset resize --jobs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.opts.configFile, "config", "", "Config file (default: ./taskchain.yml, ./config.yml)")
	f.StringVar(&a.opts.envFile, "env-file", "", ".env file to load before reading the environment")
	f.StringVar(&a.opts.metaDir, "meta-dir", "", "Override meta_dir")
	f.StringSliceVar(&a.opts.tasks, "tasks", nil, "Override the task list, in pipeline order")
	f.StringVar(&a.opts.logLevel, "log-level", "", "Override logging.level")
	f.BoolVar(&a.opts.jsonOutput, "json", false, "Output as JSON")

	root.AddCommand(
		newStatusCommand(a),
		newPlanCommand(a),
		newResetCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) init(_ context.Context) error {
	var loaderOpts []config.LoaderOption
	if a.opts.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(a.opts.configFile))
	}
	if a.opts.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(a.opts.envFile))
	}

	cfg := &config.Config{}
	if err := config.LoadConfig(config.DefaultServiceName, cfg, loaderOpts...); err != nil {
		return err
	}
	if a.opts.metaDir != "" {
		cfg.MetaDir = a.opts.metaDir
	}
	if len(a.opts.tasks) > 0 {
		cfg.Tasks = a.opts.tasks
	}
	if a.opts.logLevel != "" {
		cfg.Logging.Level = a.opts.logLevel
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging)
	a.cfg = cfg
	a.log = logger.Get("cli")
	return nil
}

// openPipeline binds an inspection task per configured name, with the
// storage, executor and telemetry of the configuration.
func (a *app) openPipeline(ctx context.Context) (*pipeline.Pipeline, map[string]*inspectedTask, error) {
	if a.rt == nil {
		rt, err := a.cfg.NewRuntime(ctx, a.log)
		if err != nil {
			return nil, nil, err
		}
		a.rt = rt
	}
	st := a.rt.Storage

	tasks := make([]task.Task, 0, len(a.cfg.Tasks))
	byName := make(map[string]*inspectedTask, len(a.cfg.Tasks))
	for _, name := range a.cfg.Tasks {
		var opts []task.BaseOption
		if st != nil {
			opts = append(opts, task.WithStorage(st))
		}
		t := &inspectedTask{Base: task.NewBase(name, opts...)}
		tasks = append(tasks, t)
		byName[name] = t
	}

	p, err := pipeline.New(tasks,
		pipeline.WithMetaDir(a.cfg.MetaDir),
		pipeline.WithLogger(a.log),
		pipeline.WithExecutor(a.rt.Executor),
		pipeline.WithMetrics(a.rt.Metrics),
	)
	if err != nil {
		return nil, nil, err
	}
	return p, byName, nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.rt == nil {
		return nil
	}
	err := a.rt.Shutdown(ctx)
	a.rt = nil
	return err
}

// inspectedTask exposes the persisted state of a task without its job logic.
type inspectedTask struct {
	*task.Base
}

func (t *inspectedTask) GatherJobs(context.Context, []string) ([]task.JobSpec, error) {
	return nil, t.notRunnable()
}

func (t *inspectedTask) Run(context.Context, task.JobSpec, []task.Data) (task.Data, error) {
	return nil, t.notRunnable()
}

func (t *inspectedTask) notRunnable() error {
	return errors.New(errors.ErrCodeInternal, fmt.Sprintf("task %q is opened for inspection and cannot run jobs", t.Name()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
