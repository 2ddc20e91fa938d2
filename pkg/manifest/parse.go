// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package manifest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseResult holds every unit of a YAML stream.
type ParseResult struct {
	Documents  []Document
	IsMultiDoc bool
}

// ParseError reports malformed YAML. No documents are returned alongside it.
type ParseError struct {
	// Document is the zero-based index of the unit that failed to parse.
	Document int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid YAML in document %d: %v", e.Document, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse splits text on document boundaries and decodes each unit.
// IsMultiDoc is true when more than one unit is present, empty units included.
func Parse(text string) (*ParseResult, error) {
	decoder := yaml.NewDecoder(strings.NewReader(text))

	var docs []Document
	for i := 0; ; i++ {
		var v interface{}
		err := decoder.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Document: i, Err: err}
		}
		docs = append(docs, Document{Content: Normalize(v)})
	}

	return &ParseResult{
		Documents:  docs,
		IsMultiDoc: len(docs) > 1,
	}, nil
}

// ParseDocument parses text that must contain at most one unit.
func ParseDocument(text string) (Document, error) {
	res, err := Parse(text)
	if err != nil {
		return Document{}, err
	}
	switch len(res.Documents) {
	case 0:
		return Document{}, nil
	case 1:
		return res.Documents[0], nil
	default:
		return Document{}, fmt.Errorf("expected a single YAML document, got %d", len(res.Documents))
	}
}
