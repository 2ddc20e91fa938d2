// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/pkg/manifest"
)

var (
	pullNamespace string
	pullOutput    string
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Export scannable objects from the current cluster as YAML",
	Long: `Export the Pods, workloads, Roles and ClusterRoles of the current cluster as
one multi-document manifest. Server-populated fields such as status and
managedFields are removed, and objects owned by another object are skipped.

Examples:
  # Pull one namespace and review it interactively
  cub-guard pull -n production -o production.yaml
  cub-guard view production.yaml

  # Pull everything and scan it
  cub-guard pull | cub-guard scan -
`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().StringVarP(&pullNamespace, "namespace", "n", "", "Namespace to pull (default: all namespaces)")
	pullCmd.Flags().StringVarP(&pullOutput, "output", "o", "", "Write to this file instead of stdout")

	_ = pullCmd.RegisterFlagCompletionFunc("namespace", completeNamespaces)
}

func runPull(cmd *cobra.Command, args []string) error {
	docs, err := fetchCluster(cmd.Context(), pullNamespace)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), clierr.NothingFound("scannable objects"))
		return nil
	}

	text, err := manifest.SerializeSet(docs)
	if err != nil {
		return fmt.Errorf("render manifest: %w", err)
	}
	if pullOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}
	if err := os.WriteFile(pullOutput, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", pullOutput, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d objects to %s\n", len(docs), pullOutput)
	return nil
}
