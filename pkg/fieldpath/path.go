// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package fieldpath models the location of a field inside a parsed manifest.
//
// A Path is an ordered list of segments. Each segment is either a mapping key
// or a sequence index. The canonical string form joins keys with dots and
// renders indexes in brackets, for example
// spec.template.spec.containers[0].securityContext.privileged.
// Paths compare segment by segment, so rules[1] never matches rules[10].
package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentKey is the leading key used to address a document in a multi-document set.
const DocumentKey = "document"

// Segment is one step of a Path.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns a mapping-key segment.
func Key(k string) Segment {
	return Segment{Key: k}
}

// Index returns a sequence-index segment.
func Index(i int) Segment {
	return Segment{Index: i, IsIndex: true}
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path locates a field in a document.
type Path []Segment

// New builds a path from dotted keys. Each key becomes one segment.
func New(keys ...string) Path {
	p := make(Path, 0, len(keys))
	for _, k := range keys {
		p = append(p, Key(k))
	}
	return p
}

// Child returns a copy of p extended with key k.
func (p Path) Child(k string) Path {
	return p.append(Key(k))
}

// At returns a copy of p extended with index i.
func (p Path) At(i int) Path {
	return p.append(Index(i))
}

// Join returns a copy of p followed by all segments of q.
func (p Path) Join(q Path) Path {
	out := make(Path, 0, len(p)+len(q))
	out = append(out, p...)
	return append(out, q...)
}

func (p Path) append(s Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// String renders the canonical form.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if !s.IsIndex && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Equal reports whether both paths have identical segments.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether q is a segment-wise prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	return p[:len(q)].Equal(q)
}

// Keys returns the plain string keys of p, or false if p contains an index.
// The result feeds apimachinery's unstructured Nested* helpers.
func (p Path) Keys() ([]string, bool) {
	keys := make([]string, 0, len(p))
	for _, s := range p {
		if s.IsIndex {
			return nil, false
		}
		keys = append(keys, s.Key)
	}
	return keys, true
}

// Last returns the final segment, or false when p is empty.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// ForDocument prefixes p with document[i].
func (p Path) ForDocument(i int) Path {
	return Path{Key(DocumentKey), Index(i)}.Join(p)
}

// SplitDocument strips a leading document[i] prefix.
// It returns the index and the remaining path, or -1 and p unchanged.
func (p Path) SplitDocument() (int, Path) {
	if len(p) >= 2 && !p[0].IsIndex && p[0].Key == DocumentKey && p[1].IsIndex {
		return p[1].Index, p[2:]
	}
	return -1, p
}

// IndexAfter returns the index that directly follows key k, searching from the end.
func (p Path) IndexAfter(k string) (int, bool) {
	for i := len(p) - 2; i >= 0; i-- {
		if !p[i].IsIndex && p[i].Key == k && p[i+1].IsIndex {
			return p[i+1].Index, true
		}
	}
	return 0, false
}

// MarshalText renders the canonical string.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the canonical string.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse reads the canonical string form.
// Keys may not contain '.', '[' or ']'.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	var p Path
	i := 0
	expectKey := true
	for i < len(s) {
		switch s[i] {
		case '.':
			if expectKey || i == len(s)-1 {
				return nil, fmt.Errorf("invalid path %q: unexpected '.' at %d", s, i)
			}
			expectKey = true
			i++
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("invalid path %q: unclosed '[' at %d", s, i)
			}
			n, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid path %q: bad index %q", s, s[i+1:i+end])
			}
			if expectKey && len(p) > 0 {
				return nil, fmt.Errorf("invalid path %q: index after '.' at %d", s, i)
			}
			p = append(p, Index(n))
			expectKey = false
			i += end + 1
		default:
			if !expectKey {
				return nil, fmt.Errorf("invalid path %q: missing '.' before %d", s, i)
			}
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				if s[j] == ']' {
					return nil, fmt.Errorf("invalid path %q: unexpected ']' at %d", s, j)
				}
				j++
			}
			p = append(p, Key(s[i:j]))
			expectKey = false
			i = j
		}
	}
	return p, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}
