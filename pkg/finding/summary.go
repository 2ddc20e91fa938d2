// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package finding

import (
	"sort"

	"github.com/confighub/cub-guard/pkg/fieldpath"
)

// Summary counts findings for status displays.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
	ByCategory map[Category]int `json:"byCategory"`
	Worst      Severity         `json:"worst,omitempty"`
}

// Summarize counts findings per severity and category.
func Summarize(findings []Finding) Summary {
	s := Summary{
		Total:      len(findings),
		BySeverity: map[Severity]int{},
		ByCategory: map[Category]int{},
	}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		s.ByCategory[f.Category]++
		if f.Severity.Rank() > s.Worst.Rank() {
			s.Worst = f.Severity
		}
	}
	return s
}

// GroupBySeverity buckets findings by severity, keeping scan order inside each bucket.
func GroupBySeverity(findings []Finding) map[Severity][]Finding {
	groups := map[Severity][]Finding{}
	for _, f := range findings {
		groups[f.Severity] = append(groups[f.Severity], f)
	}
	return groups
}

// GroupByCategory buckets findings by category, keeping scan order inside each bucket.
func GroupByCategory(findings []Finding) map[Category][]Finding {
	groups := map[Category][]Finding{}
	for _, f := range findings {
		groups[f.Category] = append(groups[f.Category], f)
	}
	return groups
}

// Filter keeps findings at or above min.
func Filter(findings []Finding, min Severity) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.AtLeast(min) {
			out = append(out, f)
		}
	}
	return out
}

// SortBySeverity orders findings worst first. Ties keep scan order.
func SortBySeverity(findings []Finding) []Finding {
	out := make([]Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

// AtPath returns the findings whose path equals p exactly.
func AtPath(findings []Finding, p fieldpath.Path) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Path.Equal(p) {
			out = append(out, f)
		}
	}
	return out
}

// Under returns the findings located at p or anywhere beneath it.
func Under(findings []Finding, p fieldpath.Path) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Path.HasPrefix(p) {
			out = append(out, f)
		}
	}
	return out
}
