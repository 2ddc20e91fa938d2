// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/confighub/cub-guard/pkg/manifest"
)

// Tools that reconcile objects from a source outside the cluster.
const (
	ToolFlux      = "flux"
	ToolArgo      = "argo"
	ToolHelm      = "helm"
	ToolTerraform = "terraform"
	ToolConfigHub = "confighub"
)

// Manager names the tool that owns an object's desired state. A fix applied
// to the live object is reverted on the next reconcile, so it belongs in
// Source instead.
type Manager struct {
	Tool   string `json:"tool"`
	Source string `json:"source,omitempty"`
}

// ManagedObject is a fetched document whose state is owned by a tool.
type ManagedObject struct {
	DocumentIndex int     `json:"documentIndex"`
	Kind          string  `json:"kind"`
	Name          string  `json:"name"`
	Namespace     string  `json:"namespace,omitempty"`
	Manager       Manager `json:"manager"`
}

// DetectManager inspects labels and annotations. The zero Manager means the
// object is not managed by a known tool.
func DetectManager(labels, annotations map[string]string) Manager {
	if name, ok := labels["kustomize.toolkit.fluxcd.io/name"]; ok {
		return Manager{Tool: ToolFlux, Source: qualify(labels["kustomize.toolkit.fluxcd.io/namespace"], "kustomization/"+name)}
	}
	if name, ok := labels["helm.toolkit.fluxcd.io/name"]; ok {
		return Manager{Tool: ToolFlux, Source: qualify(labels["helm.toolkit.fluxcd.io/namespace"], "helmrelease/"+name)}
	}

	if _, ok := labels["argocd.argoproj.io/instance"]; ok {
		return Manager{Tool: ToolArgo, Source: "application/" + labels["argocd.argoproj.io/instance"]}
	}
	// Format: <app>:<group>/<kind>:<namespace>/<name>
	if tracking, ok := annotations["argocd.argoproj.io/tracking-id"]; ok {
		app, _, _ := strings.Cut(tracking, ":")
		return Manager{Tool: ToolArgo, Source: "application/" + app}
	}

	if labels["app.kubernetes.io/managed-by"] == "Helm" {
		return Manager{Tool: ToolHelm, Source: qualify(annotations["meta.helm.sh/release-namespace"], "release/"+helmRelease(labels, annotations))}
	}
	if chart, ok := labels["helm.sh/chart"]; ok {
		name := helmRelease(labels, annotations)
		if name == "" {
			name = chart
		}
		return Manager{Tool: ToolHelm, Source: "release/" + name}
	}

	if _, ok := annotations["app.terraform.io/run-id"]; ok {
		return Manager{Tool: ToolTerraform, Source: "workspace/" + annotations["app.terraform.io/workspace-name"]}
	}
	if _, ok := labels["app.terraform.io/managed"]; ok {
		return Manager{Tool: ToolTerraform}
	}

	unit := labels["confighub.com/UnitSlug"]
	if unit == "" {
		unit = annotations["confighub.com/UnitSlug"]
	}
	if unit != "" {
		space := annotations["confighub.com/SpaceName"]
		if space == "" {
			space = labels["confighub.com/SpaceName"]
		}
		return Manager{Tool: ToolConfigHub, Source: qualify(space, "unit/"+unit)}
	}

	return Manager{}
}

func helmRelease(labels, annotations map[string]string) string {
	if name := annotations["meta.helm.sh/release-name"]; name != "" {
		return name
	}
	return labels["app.kubernetes.io/instance"]
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

// ManagedBy returns the manager of a document, if any.
func ManagedBy(doc manifest.Document) (Manager, bool) {
	obj, ok := doc.Content.(map[string]interface{})
	if !ok {
		return Manager{}, false
	}
	labels, _, _ := unstructured.NestedStringMap(obj, "metadata", "labels")
	annotations, _, _ := unstructured.NestedStringMap(obj, "metadata", "annotations")
	m := DetectManager(labels, annotations)
	return m, m.Tool != ""
}

// Managed lists the documents owned by a known tool, in document order.
func Managed(docs []manifest.Document) []ManagedObject {
	var out []ManagedObject
	for i, doc := range docs {
		m, ok := ManagedBy(doc)
		if !ok {
			continue
		}
		out = append(out, ManagedObject{
			DocumentIndex: i,
			Kind:          doc.Kind(),
			Name:          doc.Name(),
			Namespace:     doc.Namespace(),
			Manager:       m,
		})
	}
	return out
}
