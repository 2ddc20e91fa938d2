// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package scanner

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/confighub/cub-guard/pkg/fieldpath"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
)

// DangerousCapabilities are the added capabilities reported as findings.
var DangerousCapabilities = []corev1.Capability{"SYS_ADMIN", "NET_ADMIN", "ALL"}

// IsDangerousCapability reports whether c is in DangerousCapabilities.
func IsDangerousCapability(c corev1.Capability) bool {
	for _, d := range DangerousCapabilities {
		if d == c {
			return true
		}
	}
	return false
}

// podSpecCheck flags a pod-level boolean that must not be true.
type podSpecCheck struct {
	Key         string
	Issue       string
	Severity    finding.Severity
	Description string
}

var podSpecChecks = []podSpecCheck{
	{
		Key:         "hostNetwork",
		Issue:       "Host network used",
		Severity:    finding.High,
		Description: "The pod shares the node's network stack. It can reach every host interface and localhost service, sniff traffic and bypass network policies.",
	},
	{
		Key:         "hostPID",
		Issue:       "Host PID namespace used",
		Severity:    finding.High,
		Description: "The pod shares the node's process namespace. It can see, signal and trace every process on the host and read their environment.",
	},
	{
		Key:         "hostIPC",
		Issue:       "Host IPC namespace used",
		Severity:    finding.High,
		Description: "The pod shares the node's IPC namespace. It can read and modify shared memory segments of host processes.",
	},
	{
		Key:         "automountServiceAccountToken",
		Issue:       "Service account token automatically mounted",
		Severity:    finding.Low,
		Description: "The service account token is mounted into every container. A compromised container can call the Kubernetes API with the account's permissions.",
	},
}

var capabilityDescriptions = map[corev1.Capability]string{
	"SYS_ADMIN": "SYS_ADMIN grants nearly every root privilege: mounting filesystems, changing kernel parameters and managing devices. It is a common container escape path.",
	"NET_ADMIN": "NET_ADMIN grants control over interfaces, routing and firewall rules. It can be used to intercept traffic or bypass network controls.",
	"ALL":       "ALL adds every Linux capability at once, which is close to running as root on the host.",
}

func (s *Scanner) scanPod(obj map[string]interface{}, shape manifest.Shape) []finding.Finding {
	spec, ok := shape.PodSpecOf(obj)
	if !ok {
		return nil
	}

	var findings []finding.Finding
	for _, c := range podSpecChecks {
		if isTrue(spec[c.Key]) {
			findings = append(findings, finding.Finding{
				Path:        shape.PodSpec.Child(c.Key),
				Key:         c.Key,
				Value:       true,
				Issue:       c.Issue,
				Severity:    c.Severity,
				Category:    finding.PrivilegeEscalation,
				Description: c.Description,
			})
		}
	}

	for _, c := range manifest.Containers(spec, shape.PodSpec) {
		findings = append(findings, scanContainer(c)...)
	}

	volumes, _ := spec["volumes"].([]interface{})
	for i, v := range volumes {
		vol, ok := v.(map[string]interface{})
		if !ok || !truthy(vol["hostPath"]) {
			continue
		}
		var hostPath interface{}
		if hp, ok := vol["hostPath"].(map[string]interface{}); ok {
			hostPath = hp["path"]
		}
		findings = append(findings, finding.Finding{
			Path:        shape.PodSpec.Child("volumes").At(i).Child("hostPath"),
			Key:         "hostPath",
			Value:       hostPath,
			Issue:       "Host path volume mount",
			Severity:    finding.High,
			Category:    finding.PrivilegeEscalation,
			Description: "The volume exposes the node filesystem to the pod. Writing host files, reading credentials or creating device nodes are common escape paths.",
		})
	}

	return findings
}

func scanContainer(c manifest.Container) []finding.Finding {
	sc, ok := c.Object["securityContext"].(map[string]interface{})
	if !ok {
		return nil
	}
	scPath := c.Path.Child("securityContext")

	newFinding := func(path fieldpath.Path, key string, value interface{}, issue string, sev finding.Severity, desc string) finding.Finding {
		return finding.Finding{
			Path:           path,
			Key:            key,
			Value:          value,
			Issue:          issue,
			Severity:       sev,
			Category:       finding.PrivilegeEscalation,
			Description:    desc,
			ContainerIndex: finding.Int(c.Index),
		}
	}

	var findings []finding.Finding
	if isTrue(sc["privileged"]) {
		findings = append(findings, newFinding(scPath.Child("privileged"), "privileged", true,
			"Privileged container", finding.Critical,
			"Privileged containers get every capability and access to all host devices. This is equivalent to root on the node."))
	}
	if isTrue(sc["allowPrivilegeEscalation"]) {
		findings = append(findings, newFinding(scPath.Child("allowPrivilegeEscalation"), "allowPrivilegeEscalation", true,
			"Privilege escalation allowed", finding.Low,
			"Processes may gain more privileges than their parent, for example through setuid binaries, even when the container starts as non-root."))
	}

	if caps, ok := sc["capabilities"].(map[string]interface{}); ok {
		added, _ := caps["add"].([]interface{})
		addPath := scPath.Child("capabilities").Child("add")
		for i, raw := range added {
			name, ok := raw.(string)
			if !ok || !IsDangerousCapability(corev1.Capability(name)) {
				continue
			}
			findings = append(findings, newFinding(addPath.At(i), name, name,
				"Dangerous capability: "+name, finding.High, capabilityDescriptions[corev1.Capability(name)]))
		}
	}

	if isZero(sc["runAsUser"]) {
		findings = append(findings, newFinding(scPath.Child("runAsUser"), "runAsUser", int64(0),
			"Container running as root", finding.Medium,
			"The container runs as UID 0. Combined with a kernel bug or a writable mount, root inside the container makes escape much easier."))
	}

	return findings
}

func isTrue(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func isZero(v interface{}) bool {
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

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}
