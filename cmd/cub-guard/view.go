// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/pkg/demo"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/rules"
	"github.com/confighub/cub-guard/pkg/workspace"
)

var (
	viewDemo   string
	viewOutput string
)

var viewCmd = &cobra.Command{
	Use:   "view [FILE]",
	Short: "Review and fix findings interactively",
	Long: `Open a manifest in an interactive viewer.

Keys:
  j/k    select finding
  f      fix the selected finding
  a      fix all fixable findings
  u      undo the last fix
  d      toggle the diff against the original
  w      write the manifest
  q      quit

Examples:
  cub-guard view deploy.yaml
  cub-guard view --demo insecure -o fixed.yaml
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().StringVar(&viewDemo, "demo", "", "Open a bundled demo manifest instead of a file")
	viewCmd.Flags().StringVarP(&viewOutput, "output", "o", "", "File written by w (default: the input file)")

	_ = viewCmd.RegisterFlagCompletionFunc("demo", completeDemos)
}

func runView(cmd *cobra.Command, args []string) error {
	var name, text string
	switch {
	case viewDemo != "" && len(args) > 0:
		return clierr.Validation("pass a file or --demo, not both")
	case viewDemo != "":
		t, err := demo.Get(viewDemo)
		if err != nil {
			return err
		}
		name, text = "demo/"+viewDemo, t
	case len(args) == 1:
		t, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		name, text = args[0], t
	default:
		return clierr.Validation("pass a manifest file or --demo NAME")
	}

	target := viewOutput
	if target == "" && viewDemo == "" {
		target = name
	}

	w, audit, err := newWorkspace("view")
	if err != nil {
		return err
	}
	defer closeAudit(cmd, audit)
	if err := w.Load(text); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	m := newViewModel(w, name, fileWriter(target))
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// fileWriter returns a write callback for path, or nil when there is nowhere to write.
func fileWriter(path string) func(string) (string, error) {
	if path == "" {
		return nil
	}
	return func(text string) (string, error) {
		return path, os.WriteFile(path, []byte(text), 0o644)
	}
}

type viewKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Fix    key.Binding
	FixAll key.Binding
	Undo   key.Binding
	Diff   key.Binding
	Write  key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultViewKeyMap() viewKeyMap {
	return viewKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Fix:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fix")),
		FixAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "fix all")),
		Undo:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
		Diff:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "diff")),
		Write:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k viewKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Fix, k.FixAll, k.Undo, k.Diff, k.Write, k.Quit}
}

func (k viewKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Fix, k.FixAll, k.Undo},
		{k.Diff, k.Write, k.Help, k.Quit},
	}
}

// viewModel is the interactive viewer state.
type viewModel struct {
	ws       *workspace.Workspace
	file     string
	write    func(string) (string, error)
	findings []finding.Finding
	cursor   int
	showDiff bool
	written  bool

	keymap    viewKeyMap
	help      help.Model
	pane      viewport.Model
	width     int
	height    int
	ready     bool
	statusMsg string
}

func newViewModel(ws *workspace.Workspace, file string, write func(string) (string, error)) viewModel {
	return viewModel{
		ws:       ws,
		file:     file,
		write:    write,
		findings: ws.Findings(),
		keymap:   defaultViewKeyMap(),
		help:     help.New(),
	}
}

func (m viewModel) Init() tea.Cmd {
	return nil
}

// listHeight is the number of finding rows shown above the detail pane.
func (m viewModel) listHeight() int {
	h := (m.height - 6) / 2
	if h < 3 {
		h = 3
	}
	return h
}

func (m viewModel) paneHeight() int {
	h := m.height - m.listHeight() - 6
	if h < 3 {
		h = 3
	}
	return h
}

func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.pane = viewport.New(msg.Width, m.paneHeight())
			m.ready = true
		} else {
			m.pane.Width = msg.Width
			m.pane.Height = m.paneHeight()
		}
		m.refreshPane()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keymap.Down):
			if m.cursor < len(m.findings)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keymap.Fix):
			m.fixSelected()
		case key.Matches(msg, m.keymap.FixAll):
			m.fixAll()
		case key.Matches(msg, m.keymap.Undo):
			if m.ws.Undo() {
				m.statusMsg = "Undid last fix"
			} else {
				m.statusMsg = "Nothing to undo"
			}
			m.sync()
		case key.Matches(msg, m.keymap.Diff):
			m.showDiff = !m.showDiff
			m.pane.GotoTop()
		case key.Matches(msg, m.keymap.Write):
			m.writeFile()
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
		default:
			var cmd tea.Cmd
			m.pane, cmd = m.pane.Update(msg)
			return m, cmd
		}
		m.refreshPane()
		return m, nil
	}
	return m, nil
}

func (m *viewModel) selected() (finding.Finding, bool) {
	if m.cursor < 0 || m.cursor >= len(m.findings) {
		return finding.Finding{}, false
	}
	return m.findings[m.cursor], true
}

func (m *viewModel) fixSelected() {
	f, ok := m.selected()
	if !ok {
		m.statusMsg = "No finding selected"
		return
	}
	if !m.ws.IsFixable(f) {
		m.statusMsg = "RBAC findings need manual review"
		return
	}
	fixed, err := m.ws.FixOne(f)
	switch {
	case err != nil:
		m.statusMsg = "Fix failed: " + err.Error()
	case fixed:
		m.statusMsg = "Fixed: " + f.Issue
	default:
		m.statusMsg = "Already fixed"
	}
	m.sync()
}

func (m *viewModel) fixAll() {
	resolved, err := m.ws.FixAll()
	switch {
	case err != nil:
		m.statusMsg = "Fix failed: " + err.Error()
	case resolved == 0:
		m.statusMsg = "Nothing to fix"
	default:
		m.statusMsg = fmt.Sprintf("Resolved %d findings", resolved)
	}
	m.sync()
}

func (m *viewModel) writeFile() {
	if m.write == nil {
		m.statusMsg = "Nowhere to write: start with -o FILE"
		return
	}
	path, err := m.write(m.ws.Text())
	if err != nil {
		m.statusMsg = "Write failed: " + err.Error()
		return
	}
	m.written = true
	m.statusMsg = "Wrote " + path
}

// sync reloads findings after the workspace changed.
func (m *viewModel) sync() {
	m.findings = m.ws.Findings()
	if m.cursor >= len(m.findings) {
		m.cursor = len(m.findings) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *viewModel) refreshPane() {
	if !m.ready {
		return
	}
	if m.showDiff {
		diff := m.ws.Diff()
		if diff == "" {
			diff = vDimStyle.Render("No changes yet")
		} else {
			diff = colorDiff(diff)
		}
		m.pane.SetContent(diff)
		return
	}
	m.pane.SetContent(m.detail())
}

func (m viewModel) detail() string {
	f, ok := m.selected()
	if !ok {
		switch m.ws.Status() {
		case workspace.StatusUnscannable:
			return vWarnStyle.Render("No scannable resources: " + strings.Join(m.ws.Warnings(), ", "))
		default:
			return vOkStyle.Render("No security issues found")
		}
	}

	var b strings.Builder
	b.WriteString(severityStyle(f.Severity).Render(string(f.Severity)) + "  " + vBoldStyle.Render(f.Issue) + "\n")
	loc := f.Path.String()
	if line, ok := m.ws.Line(f.Path); ok {
		loc = fmt.Sprintf("%s (line %d)", loc, line)
	}
	b.WriteString(vDimStyle.Render(loc) + "\n\n")
	if f.Description != "" {
		b.WriteString(f.Description + "\n\n")
	}
	rec := rules.RecommendationFor(f)
	b.WriteString(vSectionStyle.Render(rec.Title) + "\n")
	b.WriteString(rules.Recommend(f) + "\n\n")

	for _, a := range m.ws.Plan() {
		if !a.Finding.Path.Equal(f.Path) || a.Finding.Key != f.Key {
			continue
		}
		if a.Fixable {
			b.WriteString(vOkStyle.Render("Fix: "+a.Description) + vDimStyle.Render(fmt.Sprintf(" (%s risk)", a.Risk)))
		} else {
			b.WriteString(vWarnStyle.Render("Manual review required"))
		}
		break
	}
	return b.String()
}

func (m viewModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n")
	b.WriteString(m.renderList() + "\n")

	title := "DETAILS"
	if m.showDiff {
		title = "DIFF"
	}
	b.WriteString(vSectionStyle.Render(title) + "\n")
	b.WriteString(m.pane.View() + "\n")

	if m.statusMsg != "" {
		b.WriteString(vCyanStyle.Render(m.statusMsg) + "\n")
	}
	b.WriteString(m.help.View(m.keymap))
	return b.String()
}

func (m viewModel) renderHeader() string {
	s := m.ws.Summary()
	status := vOkStyle.Render("clean")
	switch m.ws.Status() {
	case workspace.StatusIssues:
		status = severityStyle(s.Worst).Render(fmt.Sprintf("%d findings, %d fixable", s.Total, m.ws.FixableCount()))
	case workspace.StatusUnscannable:
		status = vWarnStyle.Render("unscannable")
	}
	modified := ""
	if m.ws.Modified() {
		modified = vWarnStyle.Render(" [modified]")
	}
	return vHeaderStyle.Render("cub-guard") + "  " + m.file + modified + "  " + status
}

func (m viewModel) renderList() string {
	if len(m.findings) == 0 {
		return vDimStyle.Render("  (no findings)")
	}
	rows := m.listHeight()
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := start + rows
	if end > len(m.findings) {
		end = len(m.findings)
	}

	var lines []string
	for i := start; i < end; i++ {
		f := m.findings[i]
		marker := "  "
		if i == m.cursor {
			marker = vCursorStyle.Render("> ")
		}
		sev := severityStyle(f.Severity).Render(fmt.Sprintf("%-8s", f.Severity))
		issue := f.Issue
		if !m.ws.IsFixable(f) {
			issue += vDimStyle.Render(" (manual)")
		}
		lines = append(lines, marker+sev+" "+issue)
	}
	return strings.Join(lines, "\n")
}

func colorDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			lines[i] = vBoldStyle.Render(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = vOkStyle.Render(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = vErrStyle.Render(l)
		case strings.HasPrefix(l, "@@"):
			lines[i] = vCyanStyle.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

// Styles
var (
	vHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	vSectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	vDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	vOkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	vWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	vErrStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	vCyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	vBoldStyle    = lipgloss.NewStyle().Bold(true)
	vCursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)
