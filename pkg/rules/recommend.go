// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package rules

import (
	"strings"

	"github.com/confighub/cub-guard/pkg/finding"
)

// Recommendation is a named hardening step that addresses a finding.
type Recommendation struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var (
	recNonRoot = Recommendation{
		ID:          "nonRoot",
		Title:       "Run as Non-Root User",
		Description: "Set runAsUser to a non-zero UID and runAsNonRoot: true so a compromised process does not hold root inside the container.",
	}
	recNoEscalation = Recommendation{
		ID:          "disablePrivilegeEscalation",
		Title:       "Disable Privilege Escalation",
		Description: "Set allowPrivilegeEscalation: false so setuid binaries cannot gain more privileges than their parent.",
	}
	recDropCaps = Recommendation{
		ID:          "dropCapabilities",
		Title:       "Drop All Capabilities",
		Description: "Drop ALL capabilities and add back only the specific ones the workload needs.",
	}
	recNoHostPath = Recommendation{
		ID:          "removeHostPath",
		Title:       "Remove Host Path Mounts",
		Description: "Replace hostPath volumes with emptyDir, configMap or persistent volumes.",
	}
	recNoHostNamespaces = Recommendation{
		ID:          "disableHostNamespaces",
		Title:       "Disable Host Namespaces",
		Description: "Turn off hostNetwork, hostPID and hostIPC so the pod stays isolated from the node.",
	}
	recNoPrivileged = Recommendation{
		ID:          "disablePrivileged",
		Title:       "Disable Privileged Mode",
		Description: "Remove privileged: true; grant narrow capabilities instead.",
	}
	recNoToken = Recommendation{
		ID:          "disableServiceAccountToken",
		Title:       "Disable Service Account Token Mounting",
		Description: "Set automountServiceAccountToken: false for pods that never call the Kubernetes API.",
	}
	recLimitRBAC = Recommendation{
		ID:          "limitRBACPermissions",
		Title:       "Limit RBAC Permissions",
		Description: "Replace wildcards with explicit resources and verbs, and scope sensitive grants with resourceNames.",
	}
	recGeneric = Recommendation{
		ID:          "leastPrivilege",
		Title:       "Apply Least Privilege",
		Description: "Remove the insecure setting and grant only what the workload needs.",
	}
)

// RecommendationFor picks the catalog entry that addresses f.
func RecommendationFor(f finding.Finding) Recommendation {
	if f.Category == finding.RBAC {
		return recLimitRBAC
	}
	switch f.Key {
	case "runAsUser":
		return recNonRoot
	case "allowPrivilegeEscalation":
		return recNoEscalation
	case "SYS_ADMIN", "NET_ADMIN", "ALL", "capabilities":
		return recDropCaps
	case "hostPath":
		return recNoHostPath
	case "hostNetwork", "hostPID", "hostIPC":
		return recNoHostNamespaces
	case "privileged":
		return recNoPrivileged
	case "automountServiceAccountToken":
		return recNoToken
	}
	return recGeneric
}

// Recommend returns remediation advice for f. RBAC advice depends on severity;
// pod advice depends on the offending key.
func Recommend(f finding.Finding) string {
	if f.Category == finding.RBAC {
		switch f.Severity {
		case finding.Critical:
			if strings.Contains(strings.ToLower(f.Issue), "wildcard") {
				return "Replace wildcards (*) with the specific resources and verbs the workload uses. " +
					"Wildcard grants reach every API resource, including ones added to the cluster later."
			}
			return "Narrow this permission to specific resource types and verbs. " +
				"Scope it to a namespace or to named objects with resourceNames where possible."
		case finding.High:
			return "Review this permission and restrict it to specific resources or a smaller verb set. " +
				"Mutating verbs such as create, update, patch and delete need tight scoping."
		default:
			return "This permission may be needed for normal operation. " +
				"Grant it only to service accounts that require it, and use resourceNames to limit it to specific objects."
		}
	}

	switch f.Key {
	case "privileged":
		return "Remove privileged: true from the security context. Privileged containers bypass container isolation; grant specific capabilities instead."
	case "hostNetwork":
		return "Remove hostNetwork: true from the pod spec. It exposes every host interface and bypasses network policies."
	case "hostPID":
		return "Remove hostPID: true from the pod spec. It lets the container see and signal every process on the node."
	case "hostIPC":
		return "Remove hostIPC: true from the pod spec. It shares the node's IPC namespace and shared memory segments."
	case "allowPrivilegeEscalation":
		return "Set allowPrivilegeEscalation: false in the security context so processes cannot gain privileges through setuid binaries."
	case "runAsUser":
		return "Set runAsUser to a non-zero UID (for example 1000) and add runAsNonRoot: true."
	case "SYS_ADMIN":
		return "Remove SYS_ADMIN from capabilities.add and drop ALL. Identify the narrow capability the workload needs instead."
	case "NET_ADMIN":
		return "Remove NET_ADMIN from capabilities.add. Use NetworkPolicy or a service mesh for network control."
	case "ALL":
		return "Remove ALL from capabilities.add, set capabilities.drop: [\"ALL\"] and add back only minimal capabilities such as NET_BIND_SERVICE."
	case "hostPath":
		return "Replace the hostPath volume with emptyDir, configMap or a persistent volume. If host access is required, mount a narrow path read-only."
	case "automountServiceAccountToken":
		return "Set automountServiceAccountToken: false unless the pod calls the Kubernetes API."
	}
	return "Remove the insecure setting and follow least privilege."
}
