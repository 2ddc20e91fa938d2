// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package manifest

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocumentSeparator joins serialized units in a multi-document stream.
const DocumentSeparator = "---\n"

const indent = 2

// Serialize renders d as YAML with two-space indentation and double-quoted strings.
// Mapping keys are sorted, so the same document always yields the same bytes.
func Serialize(d Document) (string, error) {
	node, err := toNode(d.Content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode YAML: %w", err)
	}
	return buf.String(), nil
}

// SerializeSet renders every document in order, separated by "---".
func SerializeSet(docs []Document) (string, error) {
	parts := make([]string, 0, len(docs))
	for i, d := range docs {
		out, err := Serialize(d)
		if err != nil {
			return "", fmt.Errorf("document %d: %w", i, err)
		}
		parts = append(parts, out)
	}
	return strings.Join(parts, DocumentSeparator), nil
}

// SerializeResult renders docs the way they were parsed: a single document
// on its own, or a joined stream when the source had several units.
func SerializeResult(docs []Document, isMultiDoc bool) (string, error) {
	if !isMultiDoc && len(docs) > 0 {
		return Serialize(docs[0])
	}
	return SerializeSet(docs)
}

func toNode(v interface{}) (*yaml.Node, error) {
	// Normalize falls back to fmt.Sprint, so every value maps to one of the cases below.
	switch t := v.(type) {
	case nil:
		return scalar("!!null", "null"), nil
	case string:
		n := scalar("!!str", t)
		n.Style = yaml.DoubleQuotedStyle
		return n, nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(t)), nil
	case int64:
		return scalar("!!int", strconv.FormatInt(t, 10)), nil
	case float64:
		return scalar("!!float", formatFloat(t)), nil
	case map[string]interface{}:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if len(t) == 0 {
			n.Style = yaml.FlowStyle
			return n, nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child, err := toNode(t[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			n.Content = append(n.Content, keyNode(k), child)
		}
		return n, nil
	case []interface{}:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(t) == 0 {
			n.Style = yaml.FlowStyle
			return n, nil
		}
		for i, item := range t {
			child, err := toNode(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	default:
		return toNode(Normalize(v))
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// keyNode emits a mapping key. A plain << would read back as a merge key.
func keyNode(k string) *yaml.Node {
	n := scalar("!!str", k)
	if k == "<<" {
		n.Style = yaml.DoubleQuotedStyle
	}
	return n
}

// formatFloat keeps a fractional part on integral values so they parse back as floats.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
