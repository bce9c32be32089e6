package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskchain/pipeline"
	"github.com/kbukum/taskchain/task"
)

type taskStatus struct {
	Task      string      `json:"task"`
	Status    task.Status `json:"status"`
	Jobs      int         `json:"jobs"`
	Cached    int         `json:"cached"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted status of every task",
		Long: `Show, for every task in pipeline order, its persisted status, the number of
jobs its last run completed and the number of job outputs in its cache.

A task never run reports "pending". JOBS is the length of the task's
completed job list; CACHED counts the outputs on disk, which include the
outputs of earlier runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, tasks, err := a.openPipeline(ctx)
			if err != nil {
				return err
			}
			rows, err := collectStatus(ctx, p, tasks)
			if err != nil {
				return err
			}
			if a.opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TASK\tSTATUS\tJOBS\tCACHED\tUPDATED")
			for _, r := range rows {
				updated := "-"
				if r.UpdatedAt != nil {
					updated = r.UpdatedAt.Local().Format(time.RFC3339)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.Task, r.Status, r.Jobs, r.Cached, updated)
			}
			return w.Flush()
		},
	}
}

func collectStatus(ctx context.Context, p *pipeline.Pipeline, tasks map[string]*inspectedTask) ([]taskStatus, error) {
	metas, err := p.Status(ctx)
	if err != nil {
		return nil, err
	}
	names := p.TaskNames()
	rows := make([]taskStatus, len(names))
	for i, name := range names {
		cached, err := tasks[name].GatherFinishedJobs(ctx)
		if err != nil {
			return nil, err
		}
		rows[i] = taskStatus{
			Task:   name,
			Status: metas[i].Status,
			Jobs:   len(metas[i].AllJobs),
			Cached: len(cached),
		}
		if !metas[i].UpdatedAt.IsZero() {
			at := metas[i].UpdatedAt
			rows[i].UpdatedAt = &at
		}
	}
	return rows, nil
}
