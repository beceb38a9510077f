// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-a2a/tuneflow/evaluation"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report FILE",
		Short: "Summarize an evaluation report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := evaluation.ReadReport(f)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
}

func printReport(w io.Writer, r *evaluation.Report) error {
	if _, err := fmt.Fprintf(w, "run:       %s\nmodel:     %s\nrecords:   %d\nfallbacks: %d\n",
		r.RunID, r.Model, len(r.Results), r.Fallbacks); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-16s %8s %8s %8s %8s %8s\n", "metric", "mean", "std", "min", "50%", "max"); err != nil {
		return err
	}
	for _, name := range []string{evaluation.MetricRouge1, evaluation.MetricRouge2, evaluation.MetricRougeL} {
		s, ok := r.Metrics[name]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-16s %8.4f %8.4f %8.4f %8.4f %8.4f\n", name, s.Mean, s.Std, s.Min, s.P50, s.Max); err != nil {
			return err
		}
	}
	return nil
}
