// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/pkg/fieldpath"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/workspace"
)

var (
	fixPath    string
	fixAll     bool
	fixOutput  string
	fixInPlace bool
	fixDiff    bool
	fixJSON    bool
)

var fixCmd = &cobra.Command{
	Use:   "fix FILE|-",
	Short: "Rewrite a manifest with fixable findings resolved",
	Long: `Fix the automatically fixable findings in a manifest.

Workload findings are rewritten to safe values. RBAC findings are never
changed and are listed for manual review.

Examples:
  # Print the fixed manifest
  cub-guard fix deploy.yaml

  # Fix a single finding
  cub-guard fix deploy.yaml --path spec.template.spec.hostNetwork

  # Show what would change
  cub-guard fix deploy.yaml --diff

  # Rewrite the file
  cub-guard fix deploy.yaml --in-place
`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)

	fixCmd.Flags().StringVar(&fixPath, "path", "", "Fix only the finding at this path")
	fixCmd.Flags().BoolVar(&fixAll, "all", false, "Fix every fixable finding (default when --path is not set)")
	fixCmd.Flags().StringVarP(&fixOutput, "output", "o", "", "Write the fixed manifest to this file")
	fixCmd.Flags().BoolVar(&fixInPlace, "in-place", false, "Overwrite the input file")
	fixCmd.Flags().BoolVar(&fixDiff, "diff", false, "Print a unified diff instead of the manifest")
	fixCmd.Flags().BoolVar(&fixJSON, "json", false, "Output the result as JSON")

	fixCmd.MarkFlagsMutuallyExclusive("path", "all")
	fixCmd.MarkFlagsMutuallyExclusive("output", "in-place")
}

// fixResult is the JSON form of a fix run.
type fixResult struct {
	File      string            `json:"file"`
	Resolved  int               `json:"resolved"`
	Remaining []finding.Finding `json:"remaining"`
	Manual    int               `json:"manualReview"`
	Diff      string            `json:"diff,omitempty"`
	Manifest  string            `json:"manifest"`
}

func runFix(cmd *cobra.Command, args []string) error {
	name := args[0]
	if fixInPlace && name == stdinName {
		return clierr.Validation("--in-place needs a file, not stdin")
	}

	text, err := readInput(cmd, name)
	if err != nil {
		return err
	}

	w, audit, err := newWorkspace("fix")
	if err != nil {
		return err
	}
	defer closeAudit(cmd, audit)

	if err := w.Load(text); err != nil {
		return fmt.Errorf("%s: %w", displayName(name), err)
	}
	before := len(w.Findings())

	if fixPath != "" {
		if err := fixAtPath(w, fixPath); err != nil {
			return err
		}
	} else if _, err := w.FixAll(); err != nil {
		return err
	}

	remaining := w.Findings()
	result := fixResult{
		File:      displayName(name),
		Resolved:  before - len(remaining),
		Remaining: remaining,
		Manual:    len(remaining) - w.FixableCount(),
		Diff:      w.Diff(),
		Manifest:  w.Text(),
	}
	logger.Debugw("fix complete", "file", result.File, "resolved", result.Resolved, "remaining", len(remaining))

	target := fixOutput
	if fixInPlace {
		target = name
	}
	if target != "" {
		if err := os.WriteFile(target, []byte(w.Text()), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	}

	out := cmd.OutOrStdout()
	switch {
	case fixJSON:
		if err := writeJSON(out, result); err != nil {
			return err
		}
	case fixDiff:
		fmt.Fprint(out, result.Diff)
	case target == "":
		fmt.Fprint(out, w.Text())
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Resolved %d of %d findings", result.Resolved, before)
	if result.Manual > 0 {
		fmt.Fprintf(errOut, ", %d need manual review", result.Manual)
	}
	fmt.Fprintln(errOut)
	if target != "" {
		fmt.Fprintln(errOut, "Wrote "+target)
	}
	return nil
}

func fixAtPath(w *workspace.Workspace, raw string) error {
	p, err := fieldpath.Parse(raw)
	if err != nil {
		return clierr.Validation("--path: %v", err)
	}
	matches := finding.AtPath(w.Findings(), p)
	if len(matches) == 0 {
		return clierr.Validation("no finding at %s", raw)
	}
	for _, f := range matches {
		if !w.IsFixable(f) {
			continue
		}
		_, err := w.FixOne(f)
		return err
	}
	return clierr.Validation("the finding at %s needs manual review: %s", raw, matches[0].Issue)
}
