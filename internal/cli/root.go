// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the tuneflow command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/go-a2a/tuneflow/config"
	"github.com/go-a2a/tuneflow/generate"
	"github.com/go-a2a/tuneflow/pkg/logging"
)

// Environment variables providing flag defaults.
const (
	EnvConfigDir = "TUNEFLOW_CONFIG_DIR"
	EnvModel     = "TUNEFLOW_MODEL"
)

// defaultLocation is the Vertex AI region used when project.location is unset.
const defaultLocation = "us-central1"

// app holds the state shared by every command of one invocation.
type app struct {
	configDir string
	model     string
	verbose   bool

	logger *slog.Logger
	ns     *config.Namespace
}

// NewRootCmd returns the tuneflow root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tuneflow",
		Short: "Supervised tuning and evaluation of summarization models on Vertex AI",
		Long: heredoc.Doc(`
			tuneflow prepares datasets, tunes Gemini models on Vertex AI, evaluates the
			tuned model with ROUGE and exports its loss curves.

			Settings are read from a configuration directory holding project.yml and one
			sub-directory of YAML overrides per model. The model selected with --model is
			merged over the project settings.
		`),
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configDir, "config-dir", envOr(EnvConfigDir, config.DefaultDir), "configuration directory (env "+EnvConfigDir+")")
	flags.StringVarP(&a.model, "model", "m", os.Getenv(EnvModel), "model whose configuration is merged over the project settings (env "+EnvModel+")")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newConfigCmd(a),
		newQuotaCmd(a),
		newPrepareCmd(a),
		newTuneCmd(a),
		newEvaluateCmd(a),
		newLossesCmd(a),
		newRunCmd(a),
		newDeployCmd(a),
		newPredictCmd(a),
		newReportCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// setup builds the logger, resolves the configuration namespace and applies the
// credential binding.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.logger = logging.New(cmd.ErrOrStderr(), a.verbose)
	ctx := logging.NewContext(cmd.Context(), a.logger)
	cmd.SetContext(ctx)

	resolver := config.NewResolver(a.configDir, config.WithLogger(a.logger))
	ns, err := resolver.Resolve(ctx, a.model)
	if err != nil {
		return fmt.Errorf("resolve configuration: %w", err)
	}

	path, err := config.ApplyCredentialBinding(ns)
	if err != nil {
		return err
	}
	if path != "" {
		a.logger.DebugContext(ctx, "Bound service account credentials", slog.String("path", path))
	}

	a.ns = ns
	return nil
}

// project returns the configured project ID and location.
func (a *app) project() (project, location string, err error) {
	project, err = a.ns.RequireString("project", "project_id")
	if err != nil {
		return "", "", err
	}
	return project, a.ns.String(defaultLocation, "project", "location"), nil
}

// invoker returns the generation invoker configured by GENERATION_CONFIG.
func (a *app) invoker() *generate.Invoker {
	return generate.NewInvoker(
		generate.WithMaxAttempts(a.ns.Int(generate.DefaultMaxAttempts, "generation_config", "max_attempts")),
		generate.WithMaxTemperature(a.ns.Float(0, "generation_config", "max_temperature")),
		generate.WithLogger(a.logger),
	)
}

// output returns the writer for path: stdout when path is empty or "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
