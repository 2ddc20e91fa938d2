// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package demo ships sample manifests for trying the scanner without a cluster.
package demo

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed manifests/*.yaml
var manifests embed.FS

// Demo is one bundled manifest.
type Demo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = []Demo{
	{Name: "secure", Description: "Hardened Deployment that passes every check"},
	{Name: "insecure", Description: "Node agent Deployment with host namespaces, privileged containers and a hostPath mount"},
	{Name: "rbac", Description: "ClusterRole with wildcard and secret-reading rules, plus its binding"},
}

// List returns the bundled demos in display order.
func List() []Demo {
	return append([]Demo(nil), catalog...)
}

// Names returns the demo names in display order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, d := range catalog {
		names[i] = d.Name
	}
	return names
}

// Get returns the YAML text of the named demo.
func Get(name string) (string, error) {
	for _, d := range catalog {
		if d.Name != name {
			continue
		}
		data, err := manifests.ReadFile("manifests/" + name + ".yaml")
		if err != nil {
			return "", fmt.Errorf("read demo %s: %w", name, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unknown demo %q (available: %s)", name, strings.Join(Names(), ", "))
}
