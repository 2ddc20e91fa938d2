// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package rules holds the RBAC rule table and the remediation advice shown next to findings.
//
// A Table is immutable once built. Default returns the built-in table; Load and
// Parse build a replacement from a YAML file so callers and tests can inject
// their own rule set.
package rules

import (
	"errors"
	"fmt"
	"os"

	rbacv1 "k8s.io/api/rbac/v1"
	"sigs.k8s.io/yaml"

	"github.com/confighub/cub-guard/pkg/finding"
)

// FileVersion is the only supported rule file version.
const FileVersion = 1

// ResourceSeverity rates one resource for a verb.
type ResourceSeverity struct {
	Resource string           `json:"resource"`
	Severity finding.Severity `json:"severity"`
}

// VerbRule lists the dangerous resources for a verb, in evaluation order.
type VerbRule struct {
	Verb      string             `json:"verb"`
	Resources []ResourceSeverity `json:"resources"`
}

// File is the on-disk form of a Table.
type File struct {
	Version                   int        `json:"version"`
	Verbs                     []VerbRule `json:"verbs"`
	CriticalWildcardResources []string   `json:"criticalWildcardResources"`
}

// Table maps verb → resource → severity and names the resources that are
// critical when granted with a wildcard verb.
type Table struct {
	verbs    []VerbRule
	index    map[string]map[string]finding.Severity
	critical []string
	isCrit   map[string]bool
}

// New validates and copies its inputs into a Table.
func New(verbs []VerbRule, criticalWildcard []string) (*Table, error) {
	t := &Table{
		index:  make(map[string]map[string]finding.Severity, len(verbs)),
		isCrit: make(map[string]bool, len(criticalWildcard)),
	}

	for _, v := range verbs {
		if v.Verb == "" {
			return nil, errors.New("rule table: verb must not be empty")
		}
		if _, dup := t.index[v.Verb]; dup {
			return nil, fmt.Errorf("rule table: verb %q listed twice", v.Verb)
		}
		resources := make(map[string]finding.Severity, len(v.Resources))
		copied := VerbRule{Verb: v.Verb, Resources: make([]ResourceSeverity, 0, len(v.Resources))}
		for _, r := range v.Resources {
			if r.Resource == "" {
				return nil, fmt.Errorf("rule table: verb %q has an empty resource", v.Verb)
			}
			sev, err := finding.ParseSeverity(string(r.Severity))
			if err != nil {
				return nil, fmt.Errorf("rule table: %s %s: %w", v.Verb, r.Resource, err)
			}
			if _, dup := resources[r.Resource]; dup {
				return nil, fmt.Errorf("rule table: %s %s listed twice", v.Verb, r.Resource)
			}
			resources[r.Resource] = sev
			copied.Resources = append(copied.Resources, ResourceSeverity{Resource: r.Resource, Severity: sev})
		}
		t.index[v.Verb] = resources
		t.verbs = append(t.verbs, copied)
	}

	for _, r := range criticalWildcard {
		if r == "" || t.isCrit[r] {
			continue
		}
		t.isCrit[r] = true
		t.critical = append(t.critical, r)
	}
	return t, nil
}

// Parse reads a rule file.
func Parse(data []byte) (*Table, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("unsupported rule file version %d", f.Version)
	}
	return New(f.Verbs, f.CriticalWildcardResources)
}

// Load reads a rule file from disk.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Lookup returns the severity of verb on resource.
func (t *Table) Lookup(verb, resource string) (finding.Severity, bool) {
	sev, ok := t.index[verb][resource]
	return sev, ok
}

// HasVerb reports whether verb has any entry.
func (t *Table) HasVerb(verb string) bool {
	_, ok := t.index[verb]
	return ok
}

// AnyResource returns the severity of verb on every resource, if the table has a wildcard entry.
func (t *Table) AnyResource(verb string) (finding.Severity, bool) {
	return t.Lookup(verb, rbacv1.ResourceAll)
}

// Resources returns the resources listed for verb in table order.
func (t *Table) Resources(verb string) []ResourceSeverity {
	for _, v := range t.verbs {
		if v.Verb == verb {
			out := make([]ResourceSeverity, len(v.Resources))
			copy(out, v.Resources)
			return out
		}
	}
	return nil
}

// IsCriticalWildcard reports whether resource is dangerous under a wildcard verb.
func (t *Table) IsCriticalWildcard(resource string) bool {
	return t.isCrit[resource]
}

// File returns the table in its on-disk form.
func (t *Table) File() File {
	f := File{Version: FileVersion}
	for _, v := range t.verbs {
		f.Verbs = append(f.Verbs, VerbRule{Verb: v.Verb, Resources: t.Resources(v.Verb)})
	}
	f.CriticalWildcardResources = append([]string(nil), t.critical...)
	return f
}

// Marshal renders the table as a rule file.
func (t *Table) Marshal() ([]byte, error) {
	return yaml.Marshal(t.File())
}
