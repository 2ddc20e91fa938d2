// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/internal/config"
	"github.com/confighub/cub-guard/pkg/cluster"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
	"github.com/confighub/cub-guard/pkg/scanner"
)

var (
	scanJSON      bool
	scanCluster   bool
	scanNamespace string
)

var scanCmd = &cobra.Command{
	Use:   "scan [FILE|-]...",
	Short: "Scan manifests for privilege escalation and RBAC risks",
	Long: `Scan Kubernetes manifests for risky security settings.

Each file may hold several documents separated by ---. Pods, Deployments,
DaemonSets, StatefulSets, ReplicaSets, Jobs, CronJobs, Roles and ClusterRoles
are checked; other kinds are reported as skipped.

Examples:
  # Scan a file
  cub-guard scan deploy.yaml

  # Scan from stdin
  kubectl get deploy web -o yaml | cub-guard scan -

  # Only high and critical findings, as JSON
  cub-guard scan --min-severity high --json deploy.yaml

  # Scan what is running in a namespace
  cub-guard scan --cluster -n production
`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output as JSON")
	scanCmd.Flags().String(config.KeyMinSeverity, string(finding.Low), "Hide findings below this severity (critical, high, medium, low)")
	scanCmd.Flags().BoolVar(&scanCluster, "cluster", false, "Scan objects from the current cluster instead of files")
	scanCmd.Flags().StringVarP(&scanNamespace, "namespace", "n", "", "Namespace for --cluster (default: all namespaces)")

	_ = scanCmd.RegisterFlagCompletionFunc(config.KeyMinSeverity, completeSeverities)
	_ = scanCmd.RegisterFlagCompletionFunc("namespace", completeNamespaces)
}

// scanReport is the result for one input.
type scanReport struct {
	File      string            `json:"file"`
	Documents int               `json:"documents"`
	Findings  []finding.Finding `json:"findings"`
	Warnings  []string          `json:"warnings,omitempty"`
	Summary   finding.Summary   `json:"summary"`
	// Managed lists cluster objects whose fixes belong in a GitOps or Helm source.
	Managed []cluster.ManagedObject `json:"managed,omitempty"`

	text string
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := newScanner()
	if err != nil {
		return err
	}

	var reports []scanReport
	if scanCluster {
		if len(args) > 0 {
			return clierr.Validation("--cluster does not take file arguments")
		}
		r, err := scanClusterObjects(cmd.Context(), s)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	} else {
		if len(args) == 0 {
			args = []string{stdinName}
		}
		for _, name := range args {
			r, err := scanFile(cmd, s, name)
			if err != nil {
				return err
			}
			reports = append(reports, r)
		}
	}

	if scanJSON {
		return writeJSON(cmd.OutOrStdout(), reports)
	}

	out := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintln(out, headerStyle.Render(r.File))
		if r.Documents == 0 {
			fmt.Fprintln(out, clierr.NothingFound("scannable objects"))
			fmt.Fprintln(out)
			continue
		}
		printWarnings(out, r.Warnings)
		printManaged(out, r.Managed)
		if r.Summary.Total == 0 {
			fmt.Fprintln(out, summaryLine(r.Summary))
			fmt.Fprintln(out)
			continue
		}
		printFindings(out, r.File, r.Findings, locatorFor(r.text))
		fmt.Fprintln(out, summaryLine(r.Summary))
		fmt.Fprintln(out)
	}
	return nil
}

func scanFile(cmd *cobra.Command, s *scanner.Scanner, name string) (scanReport, error) {
	text, err := readInput(cmd, name)
	if err != nil {
		return scanReport{}, err
	}
	return scanText(s, displayName(name), text)
}

func scanText(s *scanner.Scanner, name, text string) (scanReport, error) {
	res, err := manifest.Parse(text)
	if err != nil {
		return scanReport{}, fmt.Errorf("%s: %w", name, err)
	}
	return buildReport(name, text, s, res.Documents, res.IsMultiDoc), nil
}

func scanClusterObjects(ctx context.Context, s *scanner.Scanner) (scanReport, error) {
	docs, err := fetchCluster(ctx, scanNamespace)
	if err != nil {
		return scanReport{}, err
	}
	text, err := manifest.SerializeSet(docs)
	if err != nil {
		return scanReport{}, err
	}
	name := "cluster"
	if scanNamespace != "" {
		name = "cluster/" + scanNamespace
	}
	r := buildReport(name, text, s, docs, len(docs) > 1)
	r.Managed = cluster.Managed(docs)
	return r, nil
}

func buildReport(name, text string, s *scanner.Scanner, docs []manifest.Document, isMultiDoc bool) scanReport {
	minSeverity := finding.Low
	if settings != nil {
		minSeverity = settings.MinSeverity
	}
	all := s.Scan(docs, isMultiDoc)
	findings := finding.Filter(all, minSeverity)

	scanned := docs
	if !isMultiDoc && len(docs) > 1 {
		scanned = docs[:1]
	}
	logger.Debugw("scanned", "file", name, "documents", len(docs), "findings", len(all), "shown", len(findings))
	return scanReport{
		File:      name,
		Documents: len(docs),
		Findings:  findings,
		Warnings:  manifest.UnscannableKinds(scanned),
		Summary:   finding.Summarize(findings),
		text:      text,
	}
}

func fetchCluster(ctx context.Context, namespace string) ([]manifest.Document, error) {
	kubeconfig := ""
	if settings != nil {
		kubeconfig = settings.Kubeconfig
	}
	cfg, err := cluster.BuildConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	f, err := cluster.NewForConfig(cfg, cluster.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, namespace)
}

func completeSeverities(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var names []string
	for _, s := range finding.Severities {
		names = append(names, string(s))
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}
