// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package rules

import (
	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/confighub/cub-guard/pkg/finding"
)

func rs(resource string, sev finding.Severity) ResourceSeverity {
	return ResourceSeverity{Resource: resource, Severity: sev}
}

var defaultVerbs = []VerbRule{
	{Verb: "create", Resources: []ResourceSeverity{
		rs(rbacv1.ResourceAll, finding.Critical),
		rs("pods", finding.Critical),
		rs("deployments", finding.Critical),
		rs("daemonsets", finding.Critical),
		rs("statefulsets", finding.Critical),
		rs("jobs", finding.Critical),
		rs("cronjobs", finding.Critical),
	}},
	{Verb: "patch", Resources: []ResourceSeverity{
		rs(rbacv1.ResourceAll, finding.Critical),
		rs("pods", finding.Critical),
		rs("deployments", finding.Critical),
		rs("daemonsets", finding.Critical),
		rs("statefulsets", finding.Critical),
		rs("roles", finding.Critical),
		rs("clusterroles", finding.Critical),
		rs("rolebindings", finding.Critical),
		rs("clusterrolebindings", finding.Critical),
	}},
	{Verb: "update", Resources: []ResourceSeverity{
		rs(rbacv1.ResourceAll, finding.Critical),
		rs("roles", finding.Critical),
		rs("clusterroles", finding.Critical),
		rs("rolebindings", finding.Critical),
		rs("clusterrolebindings", finding.Critical),
	}},
	{Verb: "bind", Resources: []ResourceSeverity{rs(rbacv1.ResourceAll, finding.Critical)}},
	{Verb: "escalate", Resources: []ResourceSeverity{rs(rbacv1.ResourceAll, finding.Critical)}},
	{Verb: "impersonate", Resources: []ResourceSeverity{rs(rbacv1.ResourceAll, finding.Critical)}},
	{Verb: "delete", Resources: []ResourceSeverity{
		rs(rbacv1.ResourceAll, finding.High),
		rs("pods", finding.High),
		rs("deployments", finding.High),
		rs("daemonsets", finding.High),
		rs("statefulsets", finding.High),
	}},
	{Verb: "get", Resources: []ResourceSeverity{
		rs("secrets", finding.Medium),
		rs("configmaps", finding.Low),
	}},
	{Verb: "list", Resources: []ResourceSeverity{
		rs("secrets", finding.Medium),
		rs("configmaps", finding.Low),
	}},
	{Verb: "watch", Resources: []ResourceSeverity{
		rs("secrets", finding.Medium),
	}},
}

var defaultCriticalWildcard = []string{
	rbacv1.ResourceAll,
	"pods",
	"deployments",
	"daemonsets",
	"statefulsets",
	"jobs",
	"cronjobs",
	"secrets",
	"roles",
	"clusterroles",
	"rolebindings",
	"clusterrolebindings",
}

var defaultTable = mustNew(defaultVerbs, defaultCriticalWildcard)

func mustNew(verbs []VerbRule, critical []string) *Table {
	t, err := New(verbs, critical)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the shared built-in table.
func Default() *Table {
	return defaultTable
}
