// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package workspace holds the manifest being reviewed and drives scan, fix and
// undo for a single caller such as the CLI or the interactive viewer.
package workspace

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/aymanbagabas/go-udiff"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confighub/cub-guard/internal/logging"
	"github.com/confighub/cub-guard/pkg/fieldpath"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/history"
	"github.com/confighub/cub-guard/pkg/manifest"
	"github.com/confighub/cub-guard/pkg/remedy"
	"github.com/confighub/cub-guard/pkg/scanner"
)

// ErrEmpty is returned by fixes when nothing is loaded.
var ErrEmpty = errors.New("no manifest loaded")

// Status is the outcome a UI shows for the current manifest.
type Status int

const (
	// StatusEmpty means nothing is loaded.
	StatusEmpty Status = iota
	// StatusClean means every scanned document passed.
	StatusClean
	// StatusIssues means at least one finding exists.
	StatusIssues
	// StatusUnscannable means there are no findings but some kinds were skipped.
	StatusUnscannable
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusIssues:
		return "issues"
	case StatusUnscannable:
		return "unscannable"
	default:
		return "empty"
	}
}

// Workspace is not safe for concurrent use.
type Workspace struct {
	id         string
	scanner    *scanner.Scanner
	remediator *remedy.Remediator
	history    *history.Manager
	logger     *zap.SugaredLogger
	audit      *logging.AuditLog

	loaded   bool
	original string
	text     string
	docs     []manifest.Document
	isMulti  bool
	findings []finding.Finding
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithScanner sets the scanner. The remediator keeps its own unless WithRemediator is also given.
func WithScanner(s *scanner.Scanner) Option {
	return func(w *Workspace) { w.scanner = s }
}

func WithRemediator(r *remedy.Remediator) Option {
	return func(w *Workspace) { w.remediator = r }
}

func WithHistoryLimit(n int) Option {
	return func(w *Workspace) { w.history = history.New(n) }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithAuditLog records every fix and undo in a.
func WithAuditLog(a *logging.AuditLog) Option {
	return func(w *Workspace) { w.audit = a }
}

// New creates an empty workspace.
func New(opts ...Option) *Workspace {
	w := &Workspace{id: uuid.NewString()}
	for _, opt := range opts {
		opt(w)
	}
	if w.scanner == nil {
		w.scanner = scanner.New()
	}
	if w.remediator == nil {
		w.remediator = remedy.New(remedy.WithScanner(w.scanner))
	}
	if w.history == nil {
		w.history = history.New(history.DefaultLimit)
	}
	if w.logger == nil {
		w.logger = logging.Nop()
	}
	w.logger = w.logger.With("workspace", w.id)
	return w
}

// ID identifies the workspace in logs.
func (w *Workspace) ID() string { return w.id }

// Load parses text and makes it the current manifest. On a parse error the
// previous state is kept and the error is returned.
func (w *Workspace) Load(text string) error {
	res, err := manifest.Parse(text)
	if err != nil {
		w.logger.Debugw("load failed", "error", err)
		return err
	}

	w.loaded = true
	w.original = text
	w.text = text
	w.docs = res.Documents
	w.isMulti = res.IsMultiDoc
	w.rescan()
	w.history.Reset()

	w.logger.Debugw("loaded manifest",
		"documents", len(w.docs),
		"multiDoc", w.isMulti,
		"findings", len(w.findings),
	)
	return nil
}

// Clear drops the manifest and its history.
func (w *Workspace) Clear() {
	w.loaded = false
	w.original = ""
	w.text = ""
	w.docs = nil
	w.isMulti = false
	w.findings = nil
	w.history.Reset()
	w.logger.Debug("cleared")
}

func (w *Workspace) rescan() {
	w.findings = w.scanner.Scan(w.docs, w.isMulti)
}

func (w *Workspace) snapshot() history.Snapshot {
	return history.Snapshot{
		Documents:  w.docs,
		IsMultiDoc: w.isMulti,
		Text:       w.text,
		Findings:   w.findings,
	}
}

// commit replaces the documents with fixed ones, recording the previous state
// for undo. It reports false when fixed is identical to the current documents.
func (w *Workspace) commit(fixed []manifest.Document) (bool, error) {
	if reflect.DeepEqual(documentContents(w.docs), documentContents(fixed)) {
		return false, nil
	}
	text, err := manifest.SerializeResult(fixed, w.isMulti)
	if err != nil {
		return false, fmt.Errorf("serialize fixed manifest: %w", err)
	}

	w.history.Push(w.snapshot())
	w.docs = fixed
	w.text = text
	w.rescan()
	return true, nil
}

func documentContents(docs []manifest.Document) []interface{} {
	out := make([]interface{}, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out
}

// FixOne applies the fix for f. It reports false, with no history entry,
// when f is not fixable or already resolved.
func (w *Workspace) FixOne(f finding.Finding) (bool, error) {
	if !w.loaded {
		return false, ErrEmpty
	}
	if !w.remediator.Registry().IsFixable(f) {
		w.logger.Debugw("finding not fixable", "path", f.Path.String(), "key", f.Key)
		return false, nil
	}

	changed, err := w.commit(w.remediator.FixOneInSet(w.docs, f))
	if err != nil || !changed {
		return false, err
	}
	w.audit.Fix(f)
	w.logger.Debugw("fixed finding", "path", f.Path.String(), "key", f.Key, "remaining", len(w.findings))
	return true, nil
}

// FixAll fixes every fixable finding and returns how many findings were resolved.
func (w *Workspace) FixAll() (int, error) {
	if !w.loaded {
		return 0, ErrEmpty
	}
	before := len(w.findings)

	changed, err := w.commit(w.remediator.FixAllInSet(w.docs))
	if err != nil || !changed {
		return 0, err
	}
	resolved := before - len(w.findings)
	w.audit.FixAll(before, len(w.findings))
	w.logger.Debugw("fixed all", "resolved", resolved, "remaining", len(w.findings))
	return resolved, nil
}

// Undo restores the state before the last fix. It reports false when there is
// nothing to undo.
func (w *Workspace) Undo() bool {
	s, ok := w.history.Pop()
	if !ok {
		return false
	}
	w.docs = s.Documents
	w.isMulti = s.IsMultiDoc
	w.text = s.Text
	w.findings = s.Findings
	w.audit.Undo()
	w.logger.Debugw("undo", "findings", len(w.findings), "remainingUndo", w.history.Len())
	return true
}

func (w *Workspace) CanUndo() bool { return w.history.CanUndo() }

// Loaded reports whether a manifest is loaded.
func (w *Workspace) Loaded() bool { return w.loaded }

// Text returns the current manifest text.
func (w *Workspace) Text() string { return w.text }

// Original returns the text as it was loaded.
func (w *Workspace) Original() string { return w.original }

// Modified reports whether any fix is in effect.
func (w *Workspace) Modified() bool { return w.text != w.original }

func (w *Workspace) IsMultiDoc() bool { return w.isMulti }

// Documents returns a copy of the current documents.
func (w *Workspace) Documents() []manifest.Document {
	return manifest.CloneSet(w.docs)
}

// Findings returns the findings for the current text.
func (w *Workspace) Findings() []finding.Finding {
	return append([]finding.Finding(nil), w.findings...)
}

// Summary counts the current findings.
func (w *Workspace) Summary() finding.Summary {
	return finding.Summarize(w.findings)
}

// FixableCount is the number of current findings a fix can resolve.
func (w *Workspace) FixableCount() int {
	n := 0
	for _, f := range w.findings {
		if w.remediator.Registry().IsFixable(f) {
			n++
		}
	}
	return n
}

// IsFixable reports whether f has a fix handler.
func (w *Workspace) IsFixable(f finding.Finding) bool {
	return w.remediator.Registry().IsFixable(f)
}

// Plan describes the fix for each current finding.
func (w *Workspace) Plan() []remedy.PlannedAction {
	return w.remediator.Plan(w.findings)
}

// Warnings lists the kinds the scanner skipped.
func (w *Workspace) Warnings() []string {
	return manifest.UnscannableKinds(w.scannedDocuments())
}

func (w *Workspace) scannedDocuments() []manifest.Document {
	if !w.isMulti && len(w.docs) > 1 {
		return w.docs[:1]
	}
	return w.docs
}

// Describe summarizes each document.
func (w *Workspace) Describe() []manifest.DocumentInfo {
	return manifest.Describe(w.docs)
}

// Status classifies the current manifest.
func (w *Workspace) Status() Status {
	switch {
	case !w.loaded:
		return StatusEmpty
	case len(w.findings) > 0:
		return StatusIssues
	case len(w.Warnings()) > 0:
		return StatusUnscannable
	default:
		return StatusClean
	}
}

// Line returns the 1-based line of p in the current text.
func (w *Workspace) Line(p fieldpath.Path) (int, bool) {
	return manifest.Locate(w.text, p)
}

// Diff returns a unified diff from the loaded text to the current text, or ""
// when nothing changed.
func (w *Workspace) Diff() string {
	if !w.Modified() {
		return ""
	}
	return udiff.Unified("original", "fixed", w.original, w.text)
}
