// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-a2a/tuneflow/config"
	"github.com/go-a2a/tuneflow/quota"
)

func newQuotaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Look up accelerator quota",
	}
	cmd.AddCommand(newQuotaResourceIDCmd(), newQuotaCheckCmd(a))
	return cmd
}

func usageFlags(cmd *cobra.Command, usage *quota.Usage) {
	var serving bool
	cmd.Flags().BoolVar(&serving, "serving", false, "quota for serving instead of training")
	cmd.Flags().BoolVar(&usage.RestrictedImage, "restricted-image", false, "training with a restricted image")
	cmd.Flags().BoolVar(&usage.DynamicWorkloadScheduler, "dws", false, "Dynamic Workload Scheduler quota")
	cmd.PreRun = func(*cobra.Command, []string) {
		usage.Training = !serving
	}
}

func newQuotaResourceIDCmd() *cobra.Command {
	var usage quota.Usage
	cmd := &cobra.Command{
		Use:   "resource-id ACCELERATOR",
		Short: "Print the quota resource ID of an accelerator type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := quota.ResourceID(args[0], usage)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	usageFlags(cmd, &usage)
	return cmd
}

func newQuotaCheckCmd(a *app) *cobra.Command {
	var (
		req   quota.Request
		count int64
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the project has enough accelerator quota in the region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			req.Project = cmp.Or(req.Project, a.ns.String("", "project", "project_id"))
			if req.Project == "" {
				return fmt.Errorf("%w: PROJECT.project_id", config.ErrMissingKey)
			}
			req.Region = cmp.Or(req.Region, a.ns.String(defaultLocation, "project", "location"))
			req.Accelerator = cmp.Or(req.Accelerator, a.ns.String("", "deployment", "accelerator_type"))
			req.AcceleratorCount = cmp.Or(count, int64(a.ns.Int(1, "deployment", "accelerator_count")))

			fetcher, err := quota.NewServiceUsageFetcher(ctx)
			if err != nil {
				return err
			}
			if err := quota.NewChecker(fetcher, quota.WithLogger(a.logger)).Check(ctx, req); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "quota available for %d x %s in %s\n", req.AcceleratorCount, req.Accelerator, req.Region)
			return err
		},
	}
	cmd.Flags().StringVar(&req.Project, "project", "", "project ID (default project.project_id)")
	cmd.Flags().StringVar(&req.Region, "region", "", "region (default project.location)")
	cmd.Flags().StringVar(&req.Accelerator, "accelerator", "", "accelerator type (default deployment.accelerator_type)")
	cmd.Flags().Int64Var(&count, "count", 0, "required accelerator count (default deployment.accelerator_count)")
	usageFlags(cmd, &req.Usage)
	return cmd
}
