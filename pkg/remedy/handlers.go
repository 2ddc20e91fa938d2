package remedy

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
	"github.com/confighub/cub-guard/pkg/scanner"
)

// nonRootUID replaces runAsUser: 0
const nonRootUID int64 = 1000

// PodFlagHandler turns off pod-level booleans: host namespaces and token automount
type PodFlagHandler struct{}

// NewPodFlagHandler creates a pod flag handler
func NewPodFlagHandler() *PodFlagHandler {
	return &PodFlagHandler{}
}

// Keys returns the pod-level flags
func (h *PodFlagHandler) Keys() []string {
	return []string{"hostNetwork", "hostPID", "hostIPC", "automountServiceAccountToken"}
}

// Risk returns RiskMedium; host networking changes how the pod is reached
func (h *PodFlagHandler) Risk() RiskLevel {
	return RiskMedium
}

// Describe says which flag is set to false
func (h *PodFlagHandler) Describe(f finding.Finding) string {
	return fmt.Sprintf("set %s to false", f.LocalPath())
}

// Apply sets the flag to false only when it is currently true
func (h *PodFlagHandler) Apply(t Target, f finding.Finding, _ Options) bool {
	on, found, err := unstructured.NestedBool(t.Spec, f.Key)
	if !found || err != nil || !on {
		return false
	}
	return unstructured.SetNestedField(t.Spec, false, f.Key) == nil
}

// ContainerFlagHandler turns off a boolean in a container securityContext
type ContainerFlagHandler struct {
	key  string
	risk RiskLevel
}

// NewContainerFlagHandler creates a handler for securityContext.<key>
func NewContainerFlagHandler(key string, risk RiskLevel) *ContainerFlagHandler {
	return &ContainerFlagHandler{key: key, risk: risk}
}

// Keys returns the single flag name
func (h *ContainerFlagHandler) Keys() []string {
	return []string{h.key}
}

// Risk returns the configured risk
func (h *ContainerFlagHandler) Risk() RiskLevel {
	return h.risk
}

// Describe says which container field is set to false
func (h *ContainerFlagHandler) Describe(f finding.Finding) string {
	return fmt.Sprintf("set securityContext.%s to false on %s", h.key, containerLabel(f))
}

// Apply sets the flag to false on targeted containers where it is true
func (h *ContainerFlagHandler) Apply(t Target, f finding.Finding, _ Options) bool {
	changed := false
	for _, c := range t.Containers(f) {
		on, found, err := unstructured.NestedBool(c.Object, "securityContext", h.key)
		if !found || err != nil || !on {
			continue
		}
		if unstructured.SetNestedField(c.Object, false, "securityContext", h.key) == nil {
			changed = true
		}
		pruneSecurityContext(c.Object)
	}
	return changed
}

// RunAsUserHandler moves root containers to a non-root UID
type RunAsUserHandler struct{}

// NewRunAsUserHandler creates a runAsUser handler
func NewRunAsUserHandler() *RunAsUserHandler {
	return &RunAsUserHandler{}
}

// Keys returns runAsUser
func (h *RunAsUserHandler) Keys() []string {
	return []string{"runAsUser"}
}

// Risk returns RiskMedium; the image may expect to write as root
func (h *RunAsUserHandler) Risk() RiskLevel {
	return RiskMedium
}

// Describe says which UID is set
func (h *RunAsUserHandler) Describe(f finding.Finding) string {
	return fmt.Sprintf("set securityContext.runAsUser to %d and runAsNonRoot to true on %s", nonRootUID, containerLabel(f))
}

// Apply rewrites runAsUser only where it is exactly 0
func (h *RunAsUserHandler) Apply(t Target, f finding.Finding, opts Options) bool {
	targets := t.Containers(f)
	if opts.FromFixAll && !anyRunsAsRoot(targets) {
		return false
	}

	changed := false
	for _, c := range targets {
		if !runsAsRoot(c) {
			continue
		}
		if unstructured.SetNestedField(c.Object, nonRootUID, "securityContext", "runAsUser") != nil {
			continue
		}
		_ = unstructured.SetNestedField(c.Object, true, "securityContext", "runAsNonRoot")
		changed = true
	}
	return changed
}

func runsAsRoot(c manifest.Container) bool {
	v, found, err := unstructured.NestedFieldNoCopy(c.Object, "securityContext", "runAsUser")
	if !found || err != nil {
		return false
	}
	switch n := v.(type) {
	case int64:
		return n == 0
	case float64:
		return n == 0
	case int:
		return n == 0
	}
	return false
}

func anyRunsAsRoot(cs []manifest.Container) bool {
	for _, c := range cs {
		if runsAsRoot(c) {
			return true
		}
	}
	return false
}

// HostPathHandler swaps hostPath volumes for emptyDir
type HostPathHandler struct{}

// NewHostPathHandler creates a hostPath handler
func NewHostPathHandler() *HostPathHandler {
	return &HostPathHandler{}
}

// Keys returns hostPath
func (h *HostPathHandler) Keys() []string {
	return []string{"hostPath"}
}

// Risk returns RiskHigh; data written to the host path no longer persists
func (h *HostPathHandler) Risk() RiskLevel {
	return RiskHigh
}

// Describe names the volume being replaced
func (h *HostPathHandler) Describe(f finding.Finding) string {
	if i, ok := f.LocalPath().IndexAfter("volumes"); ok {
		return fmt.Sprintf("replace hostPath with emptyDir on volumes[%d]", i)
	}
	return "replace every hostPath volume with emptyDir"
}

// Apply replaces the addressed volume, or every hostPath volume when the
// finding carries no volume index.
func (h *HostPathHandler) Apply(t Target, f finding.Finding, _ Options) bool {
	volumes, ok := manifest.NestedSlice(t.Spec, "volumes")
	if !ok {
		return false
	}

	fix := func(v interface{}) bool {
		vol, ok := v.(map[string]interface{})
		if !ok || vol["hostPath"] == nil {
			return false
		}
		unstructured.RemoveNestedField(vol, "hostPath")
		vol["emptyDir"] = map[string]interface{}{}
		return true
	}

	if i, ok := f.LocalPath().IndexAfter("volumes"); ok {
		if i < 0 || i >= len(volumes) {
			return false
		}
		return fix(volumes[i])
	}

	changed := false
	for _, v := range volumes {
		if fix(v) {
			changed = true
		}
	}
	return changed
}

// CapabilityHandler removes one dangerous added capability
type CapabilityHandler struct{}

// NewCapabilityHandler creates a capability handler
func NewCapabilityHandler() *CapabilityHandler {
	return &CapabilityHandler{}
}

// Keys returns the dangerous capability names
func (h *CapabilityHandler) Keys() []string {
	keys := make([]string, len(scanner.DangerousCapabilities))
	for i, c := range scanner.DangerousCapabilities {
		keys[i] = string(c)
	}
	return keys
}

// Risk returns RiskMedium; the workload may rely on the capability
func (h *CapabilityHandler) Risk() RiskLevel {
	return RiskMedium
}

// Describe names the capability being removed
func (h *CapabilityHandler) Describe(f finding.Finding) string {
	return fmt.Sprintf("remove %s from capabilities.add and drop ALL on %s", capabilityOf(f), containerLabel(f))
}

// Apply filters the capability out of capabilities.add, adds drop: [ALL] if
// no drop list exists, then removes emptied containers.
func (h *CapabilityHandler) Apply(t Target, f finding.Finding, _ Options) bool {
	name := capabilityOf(f)
	changed := false
	for _, c := range t.Containers(f) {
		caps, ok := manifest.NestedMap(c.Object, "securityContext", "capabilities")
		if !ok {
			continue
		}
		added, _ := caps["add"].([]interface{})
		kept := make([]interface{}, 0, len(added))
		for _, a := range added {
			if s, ok := a.(string); ok && s == name {
				continue
			}
			kept = append(kept, a)
		}
		if len(kept) == len(added) {
			continue
		}
		changed = true

		if len(kept) == 0 {
			delete(caps, "add")
		} else {
			caps["add"] = kept
		}
		if caps["drop"] == nil {
			caps["drop"] = []interface{}{"ALL"}
		}
		if len(caps) == 0 {
			unstructured.RemoveNestedField(c.Object, "securityContext", "capabilities")
		}
		pruneSecurityContext(c.Object)
	}
	return changed
}

func capabilityOf(f finding.Finding) string {
	if s, ok := f.Value.(string); ok && s != "" {
		return s
	}
	return f.Key
}

// pruneSecurityContext removes an empty securityContext from a container.
func pruneSecurityContext(container map[string]interface{}) {
	if sc, ok := manifest.NestedMap(container, "securityContext"); ok && len(sc) == 0 {
		unstructured.RemoveNestedField(container, "securityContext")
	}
}

func containerLabel(f finding.Finding) string {
	if f.ContainerIndex == nil {
		return "all containers"
	}
	return fmt.Sprintf("container %d", *f.ContainerIndex)
}
