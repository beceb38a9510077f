// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-a2a/tuneflow/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the resolved configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return writeYAML(cmd.OutOrStdout(), a.ns.Map())
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one value, addressed by a dotted path such as project.bucket_name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, ok := a.ns.Lookup(strings.Split(args[0], ".")...)
				if !ok {
					return fmt.Errorf("%w: %s", config.ErrMissingKey, args[0])
				}
				switch v.(type) {
				case map[string]any, []any:
					return writeYAML(cmd.OutOrStdout(), v)
				default:
					_, err := fmt.Fprintln(cmd.OutOrStdout(), v)
					return err
				}
			},
		},
	)
	return cmd
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
