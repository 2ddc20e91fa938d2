// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/confighub/cub-guard/internal/logging"
	"github.com/confighub/cub-guard/pkg/cluster"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
	"github.com/confighub/cub-guard/pkg/remedy"
	"github.com/confighub/cub-guard/pkg/rules"
	"github.com/confighub/cub-guard/pkg/scanner"
	"github.com/confighub/cub-guard/pkg/workspace"
)

// stdinName is the argument that reads a manifest from standard input.
const stdinName = "-"

var upperCaser = cases.Upper(language.English)

// Styles
var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("202"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

func severityStyle(s finding.Severity) lipgloss.Style {
	switch s {
	case finding.Critical:
		return criticalStyle
	case finding.High:
		return highStyle
	case finding.Medium:
		return mediumStyle
	default:
		return lowStyle
	}
}

// readInput reads a manifest file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == stdinName {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func displayName(name string) string {
	if name == stdinName {
		return "<stdin>"
	}
	return name
}

// newScanner returns a scanner using the configured rule table.
func newScanner() (*scanner.Scanner, error) {
	if settings == nil || settings.Rules == "" {
		return scanner.New(), nil
	}
	t, err := rules.Load(settings.Rules)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	logger.Debugw("loaded rule table", "path", settings.Rules)
	return scanner.New(scanner.WithRuleTable(t)), nil
}

// newWorkspace builds a workspace from the current settings. The returned
// audit log is nil unless auditing is enabled; the caller closes it.
func newWorkspace(command string) (*workspace.Workspace, *logging.AuditLog, error) {
	s, err := newScanner()
	if err != nil {
		return nil, nil, err
	}
	opts := []workspace.Option{
		workspace.WithScanner(s),
		workspace.WithRemediator(remedy.New(remedy.WithScanner(s))),
		workspace.WithLogger(logger),
	}

	var audit *logging.AuditLog
	if settings != nil {
		opts = append(opts, workspace.WithHistoryLimit(settings.HistoryLimit))
		if settings.Audit {
			audit, err = logging.NewAuditLog(settings.AuditDir, command)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, workspace.WithAuditLog(audit))
		}
	}
	return workspace.New(opts...), audit, nil
}

func closeAudit(cmd *cobra.Command, audit *logging.AuditLog) {
	if path := audit.Close(); path != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("Audit log: "+path))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// locator returns the source line for a finding, if known.
type locator func(finding.Finding) (int, bool)

func locatorFor(text string) locator {
	return func(f finding.Finding) (int, bool) {
		return manifest.Locate(text, f.Path)
	}
}

// printFindings writes findings grouped by severity, worst first.
func printFindings(w io.Writer, file string, findings []finding.Finding, locate locator) {
	groups := finding.GroupBySeverity(findings)
	for _, sev := range finding.Severities {
		group := groups[sev]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintln(w, severityStyle(sev).Render(fmt.Sprintf("%s (%d)", upperCaser.String(string(sev)), len(group))))
		for _, f := range group {
			loc := file
			if line, ok := locate(f); ok {
				loc = fmt.Sprintf("%s:%d", file, line)
			}
			fmt.Fprintf(w, "  %s  %s\n", loc, f.Issue)
			fmt.Fprintf(w, "    %s\n", dimStyle.Render(f.Path.String()))
			fmt.Fprintf(w, "    -> %s\n", rules.Recommend(f))
		}
		fmt.Fprintln(w)
	}
}

func printWarnings(w io.Writer, kinds []string) {
	if len(kinds) == 0 {
		return
	}
	fmt.Fprintln(w, warnStyle.Render("Warning: skipped unsupported kinds: "+strings.Join(kinds, ", ")))
}

// printManaged notes cluster objects that a reconciler would revert.
func printManaged(w io.Writer, objs []cluster.ManagedObject) {
	for _, o := range objs {
		src := o.Manager.Tool
		if o.Manager.Source != "" {
			src += " " + o.Manager.Source
		}
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("Note: %s/%s is managed by %s; apply fixes to its source", o.Kind, o.Name, src)))
	}
}

func summaryLine(s finding.Summary) string {
	if s.Total == 0 {
		return okStyle.Render("No security issues found")
	}
	var parts []string
	for _, sev := range finding.Severities {
		if n := s.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(sev))))
		}
	}
	return fmt.Sprintf("%d findings (%s)", s.Total, strings.Join(parts, ", "))
}
