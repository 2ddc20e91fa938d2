// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package manifest

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/confighub/cub-guard/pkg/fieldpath"
)

// ScannableKinds are the resource kinds the scanner understands.
var ScannableKinds = []string{
	"Pod",
	"Deployment",
	"DaemonSet",
	"StatefulSet",
	"ReplicaSet",
	"Job",
	"CronJob",
	"Role",
	"ClusterRole",
}

// IsScannableKind reports whether kind is in ScannableKinds.
func IsScannableKind(kind string) bool {
	for _, k := range ScannableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// DocumentInfo summarizes one document of a set.
type DocumentInfo struct {
	Index     int    `json:"index"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Scannable bool   `json:"scannable"`
}

// Describe returns one DocumentInfo per document, in order.
func Describe(docs []Document) []DocumentInfo {
	infos := make([]DocumentInfo, 0, len(docs))
	for i, d := range docs {
		infos = append(infos, DocumentInfo{
			Index:     i,
			Kind:      d.Kind(),
			Name:      d.Name(),
			Namespace: d.Namespace(),
			Scannable: isScannable(d),
		})
	}
	return infos
}

// isScannable reports whether the scanner handles d: a listed kind, or any
// kind that carries a pod template, such as an Argo Rollout.
func isScannable(d Document) bool {
	return IsScannableKind(d.Kind()) || ShapeOf(d).Kind != ShapeOther
}

// UnscannableKinds lists the distinct kinds in docs that the scanner skips,
// in first-seen order. Documents without a kind are ignored.
func UnscannableKinds(docs []Document) []string {
	seen := map[string]bool{}
	var kinds []string
	for _, d := range docs {
		kind := d.Kind()
		if kind == "" || seen[kind] || isScannable(d) {
			continue
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	return kinds
}

// Locate returns the 1-based source line of the field at p inside text.
// A document[i] prefix selects the unit; otherwise the first unit is used.
// For mapping keys the line of the key itself is returned.
func Locate(text string, p fieldpath.Path) (int, bool) {
	docIndex, rest := p.SplitDocument()
	if docIndex < 0 {
		docIndex = 0
	}

	decoder := yaml.NewDecoder(strings.NewReader(text))
	for i := 0; ; i++ {
		var node yaml.Node
		if err := decoder.Decode(&node); err != nil {
			return 0, false
		}
		if i == docIndex {
			return locateNode(&node, rest)
		}
	}
}

func locateNode(n *yaml.Node, p fieldpath.Path) (int, bool) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return 0, false
		}
		n = n.Content[0]
	}

	line := n.Line
	for _, seg := range p {
		if n.Kind == yaml.AliasNode && n.Alias != nil {
			n = n.Alias
		}
		if seg.IsIndex {
			if n.Kind != yaml.SequenceNode || seg.Index >= len(n.Content) {
				return 0, false
			}
			n = n.Content[seg.Index]
			line = n.Line
			continue
		}
		if n.Kind != yaml.MappingNode {
			return 0, false
		}
		found := false
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == seg.Key {
				line = n.Content[i].Line
				n = n.Content[i+1]
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return line, true
}
