// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/confighub/cub-guard/pkg/demo"
)

var demoScan bool

var demoCmd = &cobra.Command{
	Use:   "demo [name]",
	Short: "Print a bundled demo manifest",
	Long: `Print one of the bundled demo manifests, ready to pipe into other commands.

Examples:
  cub-guard demo                          # List available demos
  cub-guard demo insecure                 # Print the insecure Deployment
  cub-guard demo insecure | cub-guard scan -
  cub-guard demo rbac --scan              # Scan the demo directly`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeDemos,
	RunE:              runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().BoolVar(&demoScan, "scan", false, "Scan the demo instead of printing it")
}

func runDemo(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		listDemos(cmd.OutOrStdout())
		return nil
	}

	text, err := demo.Get(args[0])
	if err != nil {
		return fmt.Errorf("%w\nRun 'cub-guard demo' to see available demos", err)
	}
	if !demoScan {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}

	s, err := newScanner()
	if err != nil {
		return err
	}
	r, err := scanText(s, "demo/"+args[0], text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render(r.File))
	printWarnings(out, r.Warnings)
	printFindings(out, r.File, r.Findings, locatorFor(text))
	fmt.Fprintln(out, summaryLine(r.Summary))
	return nil
}

func listDemos(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Available Demos"))
	fmt.Fprintln(w)
	for _, d := range demo.List() {
		fmt.Fprintf(w, "  %-10s %s\n", d.Name, d.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render("Try: cub-guard demo insecure | cub-guard scan -"))
}

func completeDemos(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(demo.Names(), toComplete), cobra.ShellCompDirectiveNoFileComp
}
