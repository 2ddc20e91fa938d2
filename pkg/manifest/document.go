// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package manifest parses Kubernetes YAML into documents and serializes them back.
//
// Document content is normalized to the JSON-compatible value set used by
// apimachinery's unstructured helpers: map[string]interface{}, []interface{},
// string, int64, float64, bool and nil.
package manifest

import (
	"fmt"
	"math"
	"time"
)

// Document is one parsed YAML unit.
type Document struct {
	Content interface{}
}

// NewDocument wraps an object, normalizing its values.
func NewDocument(obj map[string]interface{}) Document {
	return Document{Content: Normalize(obj)}
}

// Object returns the top-level mapping, or nil when the document is empty or not a mapping.
func (d Document) Object() map[string]interface{} {
	obj, _ := d.Content.(map[string]interface{})
	return obj
}

// Kind returns the resource kind, or "" when absent.
func (d Document) Kind() string {
	kind, _ := d.Object()["kind"].(string)
	return kind
}

// Name returns metadata.name, or "" when absent.
func (d Document) Name() string {
	meta, _ := d.Object()["metadata"].(map[string]interface{})
	name, _ := meta["name"].(string)
	return name
}

// Namespace returns metadata.namespace, defaulting to "default".
func (d Document) Namespace() string {
	meta, _ := d.Object()["metadata"].(map[string]interface{})
	if ns, ok := meta["namespace"].(string); ok && ns != "" {
		return ns
	}
	return "default"
}

// Clone returns a deep copy of d. The copy shares no maps or slices with d.
func Clone(d Document) Document {
	return Document{Content: Normalize(d.Content)}
}

// CloneSet deep-copies every document in docs.
func CloneSet(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Clone(d)
	}
	return out
}

// Normalize returns a deep copy of v using only JSON-compatible types.
// Integers become int64, non-string mapping keys are stringified and
// timestamps are rendered as RFC 3339 strings.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return uintValue(uint64(t))
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return uintValue(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func uintValue(u uint64) interface{} {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}
