// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package finding defines the located, classified security observations
// produced by the scanner and consumed by the remediator.
package finding

import (
	"fmt"
	"strings"

	"github.com/confighub/cub-guard/pkg/fieldpath"
)

// Severity is an ordinal risk level. Critical is worst.
type Severity string

const (
	Critical Severity = "Critical"
	High     Severity = "High"
	Medium   Severity = "Medium"
	Low      Severity = "Low"
)

// Severities lists every level from worst to least severe.
var Severities = []Severity{Critical, High, Medium, Low}

// Rank orders severities; higher is worse. Unknown values rank zero.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity accepts any casing of a severity name.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range Severities {
		if strings.EqualFold(s, string(sev)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q (want one of critical, high, medium, low)", s)
}

// Category groups findings.
type Category string

const (
	PrivilegeEscalation Category = "PrivilegeEscalation"
	RBAC                Category = "RBAC"
)

// Categories lists every category.
var Categories = []Category{PrivilegeEscalation, RBAC}

// Finding is one located security observation.
type Finding struct {
	Path        fieldpath.Path `json:"path"`
	Key         string         `json:"key"`
	Value       interface{}    `json:"value"`
	Issue       string         `json:"issue"`
	Severity    Severity       `json:"severity"`
	Category    Category       `json:"category"`
	Description string         `json:"description"`
	// DocumentIndex is set only for multi-document input.
	DocumentIndex *int `json:"documentIndex,omitempty"`
	// ContainerIndex counts main containers first, then init containers.
	ContainerIndex *int `json:"containerIndex,omitempty"`
}

// Int returns a pointer to i, for the optional index fields.
func Int(i int) *int {
	return &i
}

// InDocument returns a copy of f addressed inside document i of a set.
func (f Finding) InDocument(i int) Finding {
	f.Path = f.Path.ForDocument(i)
	f.DocumentIndex = Int(i)
	return f
}

// LocalPath returns the path without its document[i] prefix.
func (f Finding) LocalPath() fieldpath.Path {
	_, rest := f.Path.SplitDocument()
	return rest
}

// SameTarget reports whether two findings address the same key on the same container.
func (f Finding) SameTarget(o Finding) bool {
	return f.Key == o.Key && equalIndex(f.ContainerIndex, o.ContainerIndex) && equalIndex(f.DocumentIndex, o.DocumentIndex)
}

func equalIndex(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s at %s", f.Severity, f.Issue, f.Path)
}
