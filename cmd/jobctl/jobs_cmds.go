// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/models"
)

func newEnqueueCmd(a *app) *cobra.Command {
	var (
		payload     string
		runAt       string
		delay       time.Duration
		every       int
		expiresIn   time.Duration
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "enqueue <task-type>",
		Short: "Enqueue a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := models.EnqueueOptions{MaxAttempts: maxAttempts}

			switch {
			case runAt != "" && delay > 0:
				return errors.New("--run-at and --delay are mutually exclusive")
			case runAt != "":
				t, err := time.Parse(time.RFC3339, runAt)
				if err != nil {
					return fmt.Errorf("--run-at: %w", err)
				}
				opts.RunAt = &t
			case delay > 0:
				t := time.Now().UTC().Add(delay)
				opts.RunAt = &t
			}
			if every > 0 {
				opts.IsRecurring = true
				opts.RecurrenceIntervalMinutes = &every
			}
			if expiresIn > 0 {
				t := time.Now().UTC().Add(expiresIn)
				opts.ExpiresAt = &t
			}

			var raw json.RawMessage
			if payload != "" {
				raw = json.RawMessage(payload)
			}

			job, err := jobs.Enqueue(cmd.Context(), a.store, a.registry, jobs.TaskType(args[0]), raw, opts)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(job)
			}
			fmt.Fprintf(a.out, "Enqueued %s (%s) to run at %s\n", job.ID, job.TaskType, job.RunAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload")
	cmd.Flags().StringVar(&runAt, "run-at", "", "earliest run time (RFC3339)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "run after this delay, e.g. 10m")
	cmd.Flags().IntVar(&every, "every", 0, "make the job recurring every N minutes")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "cancel the job if it has not run within this window")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempt budget (default from configuration)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		status   string
		taskType string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.JobFilter{
				Status:   models.JobStatus(status),
				TaskType: taskType,
				Limit:    limit,
				Offset:   offset,
			}
			if status != "" && !filter.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			list, err := a.store.ListJobs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No jobs.")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTASK TYPE\tSTATUS\tATTEMPTS\tRUN AT\tLAST ERROR")
			for _, j := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					j.ID, j.TaskType, j.Status, j.Attempts, j.MaxAttempts,
					j.RunAt.Format(time.RFC3339), truncate(j.LastErrorString(), 60))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|running|succeeded|failed|cancelled)")
	cmd.Flags().StringVar(&taskType, "task-type", "", "filter by task type")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.store.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(job)
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\t%s\n", job.ID)
			fmt.Fprintf(tw, "Task type\t%s\n", job.TaskType)
			fmt.Fprintf(tw, "Status\t%s\n", job.Status)
			fmt.Fprintf(tw, "Attempts\t%d/%d\n", job.Attempts, job.MaxAttempts)
			fmt.Fprintf(tw, "Run at\t%s\n", job.RunAt.Format(time.RFC3339))
			if interval := job.RecurrenceInterval(); interval > 0 {
				fmt.Fprintf(tw, "Recurs every\t%s\n", interval)
			}
			if job.ExpiresAt != nil {
				fmt.Fprintf(tw, "Expires at\t%s\n", job.ExpiresAt.Format(time.RFC3339))
			}
			if job.LastError != nil {
				fmt.Fprintf(tw, "Last error\t%s\n", *job.LastError)
			}
			fmt.Fprintf(tw, "Payload\t%s\n", job.Payload)
			if len(job.Output) > 0 {
				fmt.Fprintf(tw, "Output\t%s\n", job.Output)
			}
			return tw.Flush()
		},
	}
}

// newActionCmd builds retry, cancel, and delete, which share a shape.
func newActionCmd(a *app, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			var (
				job *models.Job
				err error
			)
			switch action {
			case "retry":
				job, err = a.store.RetryJob(ctx, id)
			case "cancel":
				job, err = a.store.CancelJob(ctx, id)
			case "delete":
				err = a.store.DeleteJob(ctx, id)
			default:
				return fmt.Errorf("unknown action %q", action)
			}
			if err != nil {
				if errors.Is(err, models.ErrInvalidTransition) {
					return fmt.Errorf("cannot %s job %s: %w", action, id, err)
				}
				return err
			}

			if a.jsonOut {
				return a.printJSON(map[string]any{"job_id": id, "action": action, "job": job})
			}
			if job != nil {
				fmt.Fprintf(a.out, "Job %s is now %s\n", id, job.Status)
			} else {
				fmt.Fprintf(a.out, "Job %s deleted\n", id)
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
