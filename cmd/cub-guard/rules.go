// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rulesJSON bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the active RBAC rule table",
	Long: `Print the RBAC rule table used by scan, fix and view.

The output is a valid rule file: save it, edit it and pass it back with
--rules (or the rules key in .cub-guard.yaml) to change which verb and
resource combinations are reported.

Examples:
  cub-guard rules > rules.yaml
  cub-guard scan --rules rules.yaml role.yaml
`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false, "Output as JSON")
}

func runRules(cmd *cobra.Command, args []string) error {
	s, err := newScanner()
	if err != nil {
		return err
	}
	table := s.RuleTable()

	if rulesJSON {
		return writeJSON(cmd.OutOrStdout(), table.File())
	}
	data, err := table.Marshal()
	if err != nil {
		return fmt.Errorf("render rules: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
