package remedy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/confighub/cub-guard/pkg/finding"
)

// Registry holds the handlers, keyed by finding key
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler under each of its keys, replacing earlier ones
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range h.Keys() {
		r.handlers[k] = h
	}
}

// Get returns the handler for a finding key
func (r *Registry) Get(key string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	return h, ok
}

// HandlerFor returns the handler that can fix a finding.
// RBAC findings are informational and never have one.
func (r *Registry) HandlerFor(f finding.Finding) (Handler, error) {
	if f.Category == finding.RBAC {
		return nil, fmt.Errorf("RBAC finding %q is not auto-fixable", f.Issue)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[f.Key]
	if !ok {
		return nil, fmt.Errorf("no handler registered for key %s", f.Key)
	}
	return h, nil
}

// IsFixable reports whether HandlerFor would succeed
func (r *Registry) IsFixable(f finding.Finding) bool {
	_, err := r.HandlerFor(f)
	return err == nil
}

// Keys returns all registered keys, sorted
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultRegistry creates a registry with all standard handlers
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPodFlagHandler())
	r.Register(NewContainerFlagHandler("privileged", RiskMedium))
	r.Register(NewContainerFlagHandler("allowPrivilegeEscalation", RiskLow))
	r.Register(NewRunAsUserHandler())
	r.Register(NewHostPathHandler())
	r.Register(NewCapabilityHandler())
	return r
}
