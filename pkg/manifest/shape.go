// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package manifest

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/confighub/cub-guard/pkg/fieldpath"
)

// ShapeKind tags how a resource nests the parts the scanner inspects.
type ShapeKind int

const (
	ShapeOther ShapeKind = iota
	ShapePod
	ShapeTemplated
	ShapeCronJob
	ShapeRBAC
)

func (k ShapeKind) String() string {
	switch k {
	case ShapePod:
		return "Pod"
	case ShapeTemplated:
		return "TemplatedWorkload"
	case ShapeCronJob:
		return "CronJob"
	case ShapeRBAC:
		return "RBAC"
	default:
		return "Other"
	}
}

var (
	podSpecPath      = fieldpath.New("spec")
	templateSpecPath = fieldpath.New("spec", "template", "spec")
	cronJobSpecPath  = fieldpath.New("spec", "jobTemplate", "spec", "template", "spec")
	rbacRulesPath    = fieldpath.New("rules")
	templatePath     = []string{"spec", "template"}
	jobTemplatePath  = []string{"spec", "jobTemplate", "spec", "template"}
	rbacKinds        = map[string]bool{"Role": true, "ClusterRole": true}
)

// Shape is the resolved layout of one document. Exactly one of PodSpec and
// Rules is set for scannable shapes; both are nil for ShapeOther.
type Shape struct {
	Kind    ShapeKind
	PodSpec fieldpath.Path
	Rules   fieldpath.Path
}

// ShapeOf selects the shape of d once, so checks never probe alternative nestings.
// Documents without a kind are never scanned.
func ShapeOf(d Document) Shape {
	obj := d.Object()
	kind := d.Kind()
	if obj == nil || kind == "" {
		return Shape{Kind: ShapeOther}
	}

	switch {
	case rbacKinds[kind]:
		return Shape{Kind: ShapeRBAC, Rules: rbacRulesPath}
	case kind == "Pod":
		return Shape{Kind: ShapePod, PodSpec: podSpecPath}
	case kind == "CronJob":
		if hasMap(obj, jobTemplatePath...) {
			return Shape{Kind: ShapeCronJob, PodSpec: cronJobSpecPath}
		}
		return Shape{Kind: ShapeOther}
	case hasMap(obj, templatePath...):
		return Shape{Kind: ShapeTemplated, PodSpec: templateSpecPath}
	}
	return Shape{Kind: ShapeOther}
}

// HasPodSpec reports whether the shape carries a pod template.
func (s Shape) HasPodSpec() bool {
	return s.PodSpec != nil
}

// PodSpecOf returns the pod spec mapping inside obj, if present.
func (s Shape) PodSpecOf(obj map[string]interface{}) (map[string]interface{}, bool) {
	if !s.HasPodSpec() {
		return nil, false
	}
	keys, _ := s.PodSpec.Keys()
	return NestedMap(obj, keys...)
}

// RulesOf returns the RBAC rule list inside obj, if present.
func (s Shape) RulesOf(obj map[string]interface{}) ([]interface{}, bool) {
	if s.Kind != ShapeRBAC {
		return nil, false
	}
	keys, _ := s.Rules.Keys()
	return NestedSlice(obj, keys...)
}

// NestedMap returns the mapping at keys without copying it.
func NestedMap(obj map[string]interface{}, keys ...string) (map[string]interface{}, bool) {
	v, found, err := unstructured.NestedFieldNoCopy(obj, keys...)
	if !found || err != nil {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}

// NestedSlice returns the sequence at keys without copying it.
func NestedSlice(obj map[string]interface{}, keys ...string) ([]interface{}, bool) {
	v, found, err := unstructured.NestedFieldNoCopy(obj, keys...)
	if !found || err != nil {
		return nil, false
	}
	s, ok := v.([]interface{})
	return s, ok
}

func hasMap(obj map[string]interface{}, keys ...string) bool {
	_, ok := NestedMap(obj, keys...)
	return ok
}

// Container is one entry of a pod spec's concatenated containers and initContainers.
type Container struct {
	// Index counts main containers first, then init containers.
	Index int
	Path  fieldpath.Path
	// Object is nil when the list entry is not a mapping.
	Object map[string]interface{}
	Init   bool
}

// Containers lists containers followed by initContainers. Init containers are
// indexed from len(containers) and located under initContainers[j].
func Containers(podSpec map[string]interface{}, specPath fieldpath.Path) []Container {
	regular, _ := podSpec["containers"].([]interface{})
	initial, _ := podSpec["initContainers"].([]interface{})

	out := make([]Container, 0, len(regular)+len(initial))
	for i, c := range regular {
		obj, _ := c.(map[string]interface{})
		out = append(out, Container{
			Index:  i,
			Path:   specPath.Child("containers").At(i),
			Object: obj,
		})
	}
	for j, c := range initial {
		obj, _ := c.(map[string]interface{})
		out = append(out, Container{
			Index:  len(regular) + j,
			Path:   specPath.Child("initContainers").At(j),
			Object: obj,
			Init:   true,
		})
	}
	return out
}
