package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskchain/logger"
)

type resetResult struct {
	Task        string `json:"task"`
	JobsRemoved int    `json:"jobs_removed"`
}

func newResetCommand(a *app) *cobra.Command {
	var (
		all  bool
		jobs bool
	)
	cmd := &cobra.Command{
		Use:   "reset [TASK...]",
		Short: "Forget the persisted metadata of tasks",
		Long: `Remove the metadata of the named tasks so the next run treats them as never
run. Cached job outputs are kept unless --jobs is given; a kept output is
still loaded instead of recomputed once its task is done again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if all == (len(args) > 0) {
				return fmt.Errorf("name the tasks to reset or pass --all")
			}

			p, tasks, err := a.openPipeline(ctx)
			if err != nil {
				return err
			}
			targets := args
			if all {
				targets = p.TaskNames()
			}
			for _, name := range targets {
				if _, err := p.Task(name); err != nil {
					return err
				}
			}

			results := make([]resetResult, 0, len(targets))
			for _, name := range targets {
				t := tasks[name]
				if err := t.ResetMeta(ctx); err != nil {
					return err
				}
				res := resetResult{Task: name}
				if jobs {
					n, err := t.ClearJobData(ctx)
					if err != nil {
						return err
					}
					res.JobsRemoved = n
				}
				a.log.Info("task reset", logger.Fields(logger.FieldTask, name, logger.FieldJobs, res.JobsRemoved))
				results = append(results, res)
			}

			if a.opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			for _, r := range results {
				if jobs {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reset %s (%d cached jobs removed)\n", r.Task, r.JobsRemoved)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", r.Task)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reset every task")
	cmd.Flags().BoolVar(&jobs, "jobs", false, "Also delete cached job outputs")
	return cmd
}
