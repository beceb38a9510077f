// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"cmp"
	"fmt"
	"path"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/go-a2a/tuneflow/config"
	"github.com/go-a2a/tuneflow/deploy"
	"github.com/go-a2a/tuneflow/evaluation"
	"github.com/go-a2a/tuneflow/quota"
	"github.com/go-a2a/tuneflow/tuning"
)

func newDeployCmd(a *app) *cobra.Command {
	var skipQuota bool
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an open model to a Vertex AI endpoint with a TGI container",
		Long: heredoc.Doc(`
			Upload model.model_id as a model served by the model.tgi_docker_uri
			container and deploy it to a new endpoint on deployment.machine_type.
			The serving quota of deployment.accelerator_type is checked first.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			project, location, err := a.project()
			if err != nil {
				return err
			}
			spec, err := a.deploySpec(time.Now())
			if err != nil {
				return err
			}

			opts := []deploy.Option{deploy.WithLogger(a.logger)}
			if !skipQuota {
				fetcher, err := quota.NewServiceUsageFetcher(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, deploy.WithQuotaChecker(quota.NewChecker(fetcher, quota.WithLogger(a.logger))))
			}

			deployer, err := deploy.NewDeployer(ctx, project, location, opts...)
			if err != nil {
				return err
			}
			defer deployer.Close()

			deployment, err := deployer.Deploy(ctx, spec)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "endpoint: %s\nmodel:    %s\n", deployment.Endpoint, deployment.Model)
			return err
		},
	}
	cmd.Flags().BoolVar(&skipQuota, "skip-quota-check", false, "deploy without checking the serving quota")
	return cmd
}

// deploySpec reads the deployment from the configuration and names it after the
// model and now.
func (a *app) deploySpec(now time.Time) (*deploy.Spec, error) {
	spec, err := deploy.SpecFromConfig(a.ns)
	if err != nil {
		return nil, err
	}
	spec.DisplayName = tuning.JobName(path.Base(spec.ModelID), now)
	return spec, nil
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		endpoint string
		params   deploy.PredictParams
	)
	cmd := &cobra.Command{
		Use:   "predict PROMPT",
		Short: "Send a prompt to a deployed TGI endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			project, location, err := a.project()
			if err != nil {
				return err
			}
			endpoint = cmp.Or(endpoint, a.ns.String("", "deployment", "endpoint"))
			if endpoint == "" {
				return fmt.Errorf("%w: DEPLOYMENT.endpoint", config.ErrMissingKey)
			}

			flags := cmd.Flags()
			if !flags.Changed("max-new-tokens") {
				params.MaxNewTokens = int32(a.ns.Int(evaluation.DefaultMaxTokens, "generation_config", "max_output_tokens"))
			}
			if !flags.Changed("temperature") {
				params.Temperature = a.ns.Float(evaluation.DefaultTemperature, "generation_config", "temperature")
			}

			deployer, err := deploy.NewDeployer(ctx, project, location, deploy.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer deployer.Close()

			predictions, err := deployer.Predict(ctx, endpoint, args[0], params)
			if err != nil {
				return err
			}
			for _, p := range predictions {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&endpoint, "endpoint", "", "endpoint ID or resource name (default deployment.endpoint)")
	flags.Int32Var(&params.MaxNewTokens, "max-new-tokens", 0, "maximum generated tokens (default generation_config.max_output_tokens)")
	flags.Float64Var(&params.Temperature, "temperature", 0, "sampling temperature (default generation_config.temperature)")
	flags.Float64Var(&params.TopP, "top-p", 0, "nucleus sampling probability")
	flags.Int32Var(&params.TopK, "top-k", 0, "top-k sampling")
	return cmd
}
