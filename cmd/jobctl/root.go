// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/jobqueue/internal/config"
	"github.com/tomtom215/jobqueue/internal/jobs"
	"github.com/tomtom215/jobqueue/internal/jobs/handlers"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/stores"
)

// app carries what every subcommand needs. The store is opened lazily in
// PersistentPreRunE so --help works without a database.
type app struct {
	loadConfig func() (*config.Config, error)
	openStore  func(ctx context.Context, cfg *config.Config) (jobs.Store, error)

	cfg      *config.Config
	store    jobs.Store
	registry *jobs.Registry

	jsonOut bool
	out     io.Writer
}

func newApp() *app {
	return &app{
		loadConfig: config.Load,
		openStore:  stores.Open,
		out:        os.Stdout,
	}
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Operate the jobqueue store from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetLevelString(logLevel)
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetOut(a.out)
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newEnqueueCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newRunCmd(a),
		newPauseCmd(a),
		newResumeCmd(a),
		newActionCmd(a, "retry", "Make a job eligible to run now with attempts reset"),
		newActionCmd(a, "cancel", "Cancel a pending or running job"),
		newActionCmd(a, "delete", "Delete a job permanently"),
		newRunsCmd(a),
		newStatsCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	registry, err := jobs.NewRegistry(handlers.Builtins(cfg))
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return err
	}

	a.cfg, a.store, a.registry = cfg, store, registry
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// printJSON writes v indented.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
