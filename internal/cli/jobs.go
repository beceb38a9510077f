// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/go-a2a/tuneflow/metrics"
	"github.com/go-a2a/tuneflow/tuning"
)

func newTuneStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB",
		Short: "Print the state of a tuning job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJob(cmd.OutOrStdout(), job); err != nil {
				return err
			}
			if job.Experiment != "" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "experiment: %s\n", job.Experiment)
			}
			return err
		},
	}
}

func newTuneCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB",
		Short: "Request cancellation of a tuning job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.tuningClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Cancel(ctx, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cancellation requested: %s\n", client.JobResourceName(args[0]))
			return err
		},
	}
}

func (a *app) tuningClient(ctx context.Context) (*tuning.Client, error) {
	project, location, err := a.project()
	if err != nil {
		return nil, err
	}
	return tuning.NewClient(ctx, project, location, tuning.WithLogger(a.logger))
}

// job returns the tuning job name, a bare job ID or a full resource name.
func (a *app) job(ctx context.Context, name string) (*tuning.Job, error) {
	client, err := a.tuningClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Get(ctx, name)
}

// experimentRun returns the TensorBoard run holding the metrics of experiment.
func (a *app) experimentRun(ctx context.Context, experiment string) (string, error) {
	if experiment == "" {
		return "", errNoExperiment
	}

	api, err := metrics.NewExperimentAPI(ctx, a.ns.String(defaultLocation, "project", "location"))
	if err != nil {
		return "", err
	}
	defer api.Close()

	run, err := metrics.RunForExperiment(ctx, api, experiment)
	if err != nil {
		return "", err
	}
	a.logger.InfoContext(ctx, "Resolved experiment run",
		slog.String("experiment", experiment),
		slog.String("run", run),
	)
	return run, nil
}
