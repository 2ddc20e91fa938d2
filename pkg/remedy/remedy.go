// Package remedy applies targeted fixes for pod security findings.
package remedy

import (
	"github.com/confighub/cub-guard/pkg/fieldpath"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
)

// Handler fixes one class of finding, selected by finding key.
type Handler interface {
	// Keys returns the finding keys this handler fixes
	Keys() []string

	// Risk rates how much the fix changes workload behavior
	Risk() RiskLevel

	// Describe says what Apply would do for f
	Describe(f finding.Finding) string

	// Apply mutates the pod spec in t and reports whether anything changed.
	// It must be a no-op when the insecure value is no longer present.
	Apply(t Target, f finding.Finding, opts Options) bool
}

// Options tunes a single fix.
type Options struct {
	// FromFixAll marks fixes issued by a bulk fix. Handlers re-verify the
	// insecure value before acting, since container targeting may be broad.
	FromFixAll bool
}

// Target is the pod spec a handler works on, inside a private copy of the document.
type Target struct {
	Spec     map[string]interface{}
	SpecPath fieldpath.Path
}

// Containers returns the containers f addresses. A nil ContainerIndex means
// every container; an index out of range yields none.
func (t Target) Containers(f finding.Finding) []manifest.Container {
	all := manifest.Containers(t.Spec, t.SpecPath)
	if f.ContainerIndex == nil {
		out := make([]manifest.Container, 0, len(all))
		for _, c := range all {
			if c.Object != nil {
				out = append(out, c)
			}
		}
		return out
	}

	i := *f.ContainerIndex
	if i < 0 || i >= len(all) || all[i].Object == nil {
		return nil
	}
	return all[i : i+1]
}

// RiskLevel indicates how much a fix may change runtime behavior
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PlannedAction describes what fixing one finding would do
type PlannedAction struct {
	Finding     finding.Finding `json:"finding"`
	Fixable     bool            `json:"fixable"`
	Description string          `json:"description"`
	Risk        RiskLevel       `json:"risk,omitempty"`
}
