// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package scanner detects insecure settings in parsed Kubernetes manifests.
//
// Each document is dispatched once by its resource shape: Pods and pod
// templates go through the pod spec checks, Roles and ClusterRoles through the
// RBAC rule checks, and every other kind yields no findings. Scanning never
// fails; missing or oddly typed fields simply produce nothing.
package scanner

import (
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
	"github.com/confighub/cub-guard/pkg/rules"
)

// Scanner evaluates documents against a rule table.
type Scanner struct {
	table *rules.Table
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithRuleTable replaces the built-in RBAC rule table.
func WithRuleTable(t *rules.Table) Option {
	return func(s *Scanner) {
		if t != nil {
			s.table = t
		}
	}
}

// New creates a scanner using rules.Default unless overridden.
func New(opts ...Option) *Scanner {
	s := &Scanner{table: rules.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RuleTable returns the table in use.
func (s *Scanner) RuleTable() *rules.Table {
	return s.table
}

// Scan returns the findings for a parsed stream. For multi-document input each
// document is scanned in order and its findings are prefixed with document[i].
// Otherwise only the first document is scanned and paths carry no prefix.
func (s *Scanner) Scan(docs []manifest.Document, isMultiDoc bool) []finding.Finding {
	findings := []finding.Finding{}
	if !isMultiDoc {
		if len(docs) == 0 {
			return findings
		}
		return append(findings, s.ScanDocument(docs[0])...)
	}

	for i, d := range docs {
		for _, f := range s.ScanDocument(d) {
			findings = append(findings, f.InDocument(i))
		}
	}
	return findings
}

// ScanDocument returns the findings for a single document.
func (s *Scanner) ScanDocument(d manifest.Document) []finding.Finding {
	obj := d.Object()
	shape := manifest.ShapeOf(d)

	switch shape.Kind {
	case manifest.ShapeRBAC:
		return s.scanRBAC(obj, shape)
	case manifest.ShapePod, manifest.ShapeTemplated, manifest.ShapeCronJob:
		return s.scanPod(obj, shape)
	default:
		return nil
	}
}
