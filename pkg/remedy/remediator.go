package remedy

import (
	"strconv"

	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
	"github.com/confighub/cub-guard/pkg/scanner"
)

// Remediator applies handlers to copies of documents. Inputs are never modified.
type Remediator struct {
	registry *Registry
	scanner  *scanner.Scanner
}

// Option configures a Remediator
type Option func(*Remediator)

// WithRegistry replaces the default handler registry
func WithRegistry(reg *Registry) Option {
	return func(r *Remediator) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithScanner sets the scanner FixAll uses to find fixable issues
func WithScanner(s *scanner.Scanner) Option {
	return func(r *Remediator) {
		if s != nil {
			r.scanner = s
		}
	}
}

// New creates a remediator with the default registry and scanner
func New(opts ...Option) *Remediator {
	r := &Remediator{
		registry: DefaultRegistry(),
		scanner:  scanner.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the handler registry
func (r *Remediator) Registry() *Registry {
	return r.registry
}

// FixOne returns a copy of d with f fixed. Stale findings, unknown keys and
// RBAC findings leave the copy identical to d.
func (r *Remediator) FixOne(d manifest.Document, f finding.Finding) manifest.Document {
	return r.FixOneWithOptions(d, f, Options{})
}

// FixOneWithOptions is FixOne with handler options
func (r *Remediator) FixOneWithOptions(d manifest.Document, f finding.Finding, opts Options) manifest.Document {
	out := manifest.Clone(d)
	r.apply(out, f, opts)
	return out
}

// FixAll returns a copy of d with every fixable finding fixed. Each pass
// rescans the working copy, so fixes never act on stale findings. A pass
// that changes anything resolves at least one finding, so the initial
// finding count bounds the loop.
func (r *Remediator) FixAll(d manifest.Document) manifest.Document {
	out := manifest.Clone(d)
	for limit := len(r.scanner.ScanDocument(out)); limit >= 0; limit-- {
		if !r.fixPass(out) {
			break
		}
	}
	return out
}

// fixPass applies one fix per (key, container, volume) found in d, in scan order.
func (r *Remediator) fixPass(d manifest.Document) bool {
	seen := make(map[string]bool)
	changed := false
	for _, f := range r.scanner.ScanDocument(d) {
		if !r.registry.IsFixable(f) {
			continue
		}
		id := dedupeID(f)
		if seen[id] {
			continue
		}
		seen[id] = true
		if r.apply(d, f, Options{FromFixAll: true}) {
			changed = true
		}
	}
	return changed
}

func dedupeID(f finding.Finding) string {
	id := f.Key
	if f.ContainerIndex != nil {
		id += "/c" + strconv.Itoa(*f.ContainerIndex)
	}
	if i, ok := f.LocalPath().IndexAfter("volumes"); ok {
		id += "/v" + strconv.Itoa(i)
	}
	return id
}

// apply mutates d in place.
func (r *Remediator) apply(d manifest.Document, f finding.Finding, opts Options) bool {
	h, err := r.registry.HandlerFor(f)
	if err != nil {
		return false
	}
	shape := manifest.ShapeOf(d)
	spec, ok := shape.PodSpecOf(d.Object())
	if !ok {
		return false
	}
	return h.Apply(Target{Spec: spec, SpecPath: shape.PodSpec}, f, opts)
}

// FixOneInSet fixes f in the document it addresses and returns a copy of the
// whole set. Findings without a document index address the first document.
func (r *Remediator) FixOneInSet(docs []manifest.Document, f finding.Finding) []manifest.Document {
	out := manifest.CloneSet(docs)

	i := 0
	if f.DocumentIndex != nil {
		i = *f.DocumentIndex
	} else if di, _ := f.Path.SplitDocument(); di >= 0 {
		i = di
	}
	if i < 0 || i >= len(out) {
		return out
	}

	local := f
	local.Path = f.LocalPath()
	local.DocumentIndex = nil
	r.apply(out[i], local, Options{})
	return out
}

// FixAllInSet runs FixAll on every document
func (r *Remediator) FixAllInSet(docs []manifest.Document) []manifest.Document {
	if docs == nil {
		return nil
	}
	out := make([]manifest.Document, len(docs))
	for i, d := range docs {
		out[i] = r.FixAll(d)
	}
	return out
}

// Plan describes what fixing each finding would do, without applying anything
func (r *Remediator) Plan(findings []finding.Finding) []PlannedAction {
	plan := make([]PlannedAction, 0, len(findings))
	for _, f := range findings {
		h, err := r.registry.HandlerFor(f)
		if err != nil {
			plan = append(plan, PlannedAction{
				Finding:     f,
				Description: "manual review required: " + err.Error(),
			})
			continue
		}
		plan = append(plan, PlannedAction{
			Finding:     f,
			Fixable:     true,
			Description: h.Describe(f),
			Risk:        h.Risk(),
		})
	}
	return plan
}
