// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package clierr classifies the errors cub-guard can hit and renders them
// with a short hint for the user.
package clierr

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/confighub/cub-guard/pkg/manifest"
)

// Error types returned by ClassifyError.
const (
	TypeParse      = "parse"      // Malformed YAML input
	TypeNotFound   = "not_found"  // Missing file or cluster resource
	TypeForbidden  = "forbidden"  // RBAC access denied
	TypeNetwork    = "network"    // Cluster unreachable
	TypeInternal   = "internal"   // Anything else
	TypeValidation = "validation" // Bad flags, config values or rule files
)

// ValidationError reports bad flags, config values or rule files.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Validation returns a ValidationError with a formatted message.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsParseError reports whether err came from parsing manifest YAML.
func IsParseError(err error) bool {
	var pe *manifest.ParseError
	return err != nil && errors.As(err, &pe)
}

// Substrings matched when an error carries no typed cause, such as errors
// returned through exec'd plugins or wrapped by client-go transports.
var (
	forbiddenMarkers = []string{"forbidden", "access denied", "unauthorized"}
	notFoundMarkers  = []string{"not found", "no such file", "the server could not find"}
	networkMarkers   = []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"dial tcp",
		"i/o timeout",
		"context deadline exceeded",
	}
)

func mentions(err error, markers []string) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsForbidden reports an RBAC denial from the API server.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}
	return apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err) || mentions(err, forbiddenMarkers)
}

// IsNotFound reports a missing manifest file or cluster resource.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return apierrors.IsNotFound(err) || errors.Is(err, fs.ErrNotExist) || mentions(err, notFoundMarkers)
}

func IsNetworkError(err error) bool {
	return err != nil && mentions(err, networkMarkers)
}

// classifiers are tried in order; the first match wins. Parse and validation
// errors come first since their messages may quote user input.
var classifiers = []struct {
	typ   string
	match func(error) bool
}{
	{TypeParse, IsParseError},
	{TypeValidation, IsValidation},
	{TypeForbidden, IsForbidden},
	{TypeNotFound, IsNotFound},
	{TypeNetwork, IsNetworkError},
}

// ClassifyError returns one of the Type constants, or "" for a nil error.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classifiers {
		if c.match(err) {
			return c.typ
		}
	}
	return TypeInternal
}

type message struct {
	title string
	hint  []string
}

var messages = map[string]message{
	TypeParse: {
		title: "Invalid YAML",
		hint: []string{
			"Check indentation and quoting near the reported line.",
			"  - Documents in one file are separated by a line containing only ---",
			"  - Tabs are not allowed for indentation",
		},
	},
	TypeValidation: {
		title: "Invalid input",
		hint:  []string{"Run with --help to see accepted values."},
	},
	TypeForbidden: {
		title: "Access denied",
		hint: []string{
			"Check your RBAC permissions. Pulling needs list on:",
			"  - pods, deployments, daemonsets, statefulsets, replicasets, jobs and cronjobs",
			"  - roles and clusterroles",
			"Verify with: kubectl auth can-i list <resource>",
		},
	},
	TypeNotFound: {
		title: "Not found",
	},
	TypeNetwork: {
		title: "Connection error",
		hint: []string{
			"Check your cluster connectivity:",
			"  - kubectl cluster-info to verify connection",
			"  - Ensure --kubeconfig or KUBECONFIG points at the right cluster",
		},
	},
	TypeInternal: {
		title: "Error",
	},
}

var missingFile = message{
	title: "File not found",
	hint:  []string{"Pass a manifest path, or - to read from stdin."},
}

// Pretty renders err as "Title: message" followed by a hint, if one applies.
func Pretty(err error) string {
	typ := ClassifyError(err)
	if typ == "" {
		return ""
	}

	m := messages[typ]
	if typ == TypeNotFound && (errors.Is(err, fs.ErrNotExist) || mentions(err, []string{"no such file"})) {
		m = missingFile
	}

	out := m.title + ": " + err.Error()
	if len(m.hint) > 0 {
		out += "\n\nHint: " + strings.Join(m.hint, "\n")
	}
	return out
}

// WrapWithHint appends a hint to err, keeping it unwrappable.
func WrapWithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\n\nHint: %s", err, hint)
}

// NothingFound is the message for an input with nothing to scan. It is a
// valid result, not an error.
func NothingFound(what string) string {
	return fmt.Sprintf("No %s found.\n\n"+
		"This might mean:\n"+
		"  - The input contains no Pods, workloads, Roles or ClusterRoles\n"+
		"  - The namespace is empty or you may not list its objects", what)
}

// Unwrap returns the innermost error of a wrap chain.
func Unwrap(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
