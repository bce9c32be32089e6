package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskchain/pipeline"
)

type plannedPath struct {
	Start int      `json:"start"`
	End   int      `json:"end"`
	Tasks []string `json:"tasks"`
}

type planOutput struct {
	Strategy string        `json:"strategy"`
	Paths    []plannedPath `json:"paths"`
}

func newPlanCommand(a *app) *cobra.Command {
	var (
		saving     []string
		force      []string
		needOutput bool
		splitSave  bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the run paths the next run would execute",
		Long: `Show the contiguous task ranges the next run would execute, given the
persisted metadata and the run options.

Flags left unset fall back to the run section of the configuration. Split
save only applies to the per_job strategy.

Examples:
  # Plan a run that persists resize and needs the final output
  taskchain plan --saving resize --need-output

  # Plan a run that recomputes publish regardless of its status
  taskchain plan --force publish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			run := a.cfg.Run
			if cmd.Flags().Changed("saving") {
				run.SavingTasks = saving
			}
			if cmd.Flags().Changed("force") {
				run.ForceRerunTasks = force
			}
			if cmd.Flags().Changed("need-output") {
				run.NeedOutput = needOutput
			}
			if cmd.Flags().Changed("split-save") {
				run.SplitSave = splitSave
			}
			if _, ok := pipeline.StrategyByName(run.Strategy); !ok {
				return fmt.Errorf("unknown strategy %q", run.Strategy)
			}

			p, _, err := a.openPipeline(ctx)
			if err != nil {
				return err
			}
			split := run.SplitSave && run.Strategy == pipeline.StrategyPerJob
			paths, err := p.DetermineRunPaths(ctx, run.SavingTasks, run.ForceRerunTasks, run.NeedOutput, split)
			if err != nil {
				return err
			}

			out := planOutput{Strategy: run.Strategy, Paths: make([]plannedPath, len(paths))}
			names := p.TaskNames()
			for i, rp := range paths {
				out.Paths[i] = plannedPath{Start: rp.Start, End: rp.End, Tasks: names[rp.Start : rp.End+1]}
			}
			if a.opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if len(out.Paths) == 0 {
				_, _ = fmt.Fprintln(w, "Nothing to run")
				return nil
			}
			_, _ = fmt.Fprintf(w, "Strategy: %s\n", out.Strategy)
			for i, rp := range paths {
				_, _ = fmt.Fprintf(w, "  %s  %s\n", rp, strings.Join(out.Paths[i].Tasks, " -> "))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&saving, "saving", nil, "Tasks whose job outputs and metadata the run persists")
	f.StringSliceVar(&force, "force", nil, "Tasks to recompute even when done")
	f.BoolVar(&needOutput, "need-output", false, "The caller needs the last task's outputs")
	f.BoolVar(&splitSave, "split-save", false, "Cut run paths after every saving task")
	return cmd
}
