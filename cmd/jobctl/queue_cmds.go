// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		limit int
		force bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pass over due jobs in this process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := jobs.NewRunner(a.store, a.registry, jobs.RunnerConfigFrom(a.cfg.Jobs),
				jobs.WithWorkerRuns(a.store),
				jobs.WithMaintenance(a.store),
			)
			if err != nil {
				return err
			}

			summary, err := runner.Run(cmd.Context(), jobs.RunOptions{
				Limit:  limit,
				Force:  force,
				Source: models.WorkerRunSourceAdminManual,
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(summary)
			}

			if summary.Status == models.RunStatusPaused {
				fmt.Fprintf(a.out, "Paused: %s (use --force to run anyway)\n", summary.Message)
				return nil
			}
			fmt.Fprintf(a.out, "Processed %d: %d succeeded, %d failed\n", summary.Processed, summary.Succeeded, summary.Failed)
			for _, r := range summary.Results {
				line := fmt.Sprintf("  %s %-20s %s", r.ID, r.TaskType, r.Status)
				if r.LastError != nil {
					line += " (" + truncate(*r.LastError, 60) + ")"
				}
				fmt.Fprintln(a.out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "jobs to claim (default from configuration, capped at 10)")
	cmd.Flags().BoolVar(&force, "force", false, "run even while processing is paused")
	return cmd
}

func newPauseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pause [reason]",
		Short: "Turn the processing switch off",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reason *string
			if r := strings.TrimSpace(strings.Join(args, " ")); r != "" {
				reason = &r
			}
			return a.setProcessing(cmd, false, reason)
		},
	}
}

func newResumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Turn the processing switch on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setProcessing(cmd, true, nil)
		},
	}
}

func (a *app) setProcessing(cmd *cobra.Command, enabled bool, reason *string) error {
	settings, err := a.store.UpdateSettings(cmd.Context(), enabled, reason)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return a.printJSON(settings)
	}
	if settings.ProcessingEnabled {
		fmt.Fprintln(a.out, "Processing enabled")
	} else if settings.PausedReason != nil {
		fmt.Fprintf(a.out, "Processing paused: %s\n", *settings.PausedReason)
	} else {
		fmt.Fprintln(a.out, "Processing paused")
	}
	return nil
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent worker runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.store.ListWorkerRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.out, "No worker runs.")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSOURCE\tSTATUS\tPROCESSED\tSUCCEEDED\tFAILED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
					r.StartedAt.Format(time.RFC3339), r.Source, r.Status, r.Processed, r.Succeeded, r.Failed)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the processing switch and job counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := a.store.GetSettings(ctx)
			if err != nil {
				return err
			}
			counts, err := a.store.CountJobsByStatus(ctx)
			if err != nil {
				return err
			}

			full := make(map[models.JobStatus]int, len(models.AllJobStatuses))
			for _, s := range models.AllJobStatuses {
				full[s] = counts[s]
			}
			if a.jsonOut {
				return a.printJSON(map[string]any{"settings": settings, "counts": full})
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "processing_enabled\t%t\n", settings.ProcessingEnabled)
			for _, s := range models.AllJobStatuses {
				fmt.Fprintf(tw, "%s\t%d\n", s, full[s])
			}
			return tw.Flush()
		},
	}
}
