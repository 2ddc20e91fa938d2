// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package scanner

import (
	"fmt"
	"strings"

	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/confighub/cub-guard/pkg/fieldpath"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
)

// policyRule is the string view of one rules[] entry. Non-string list items
// become "" so element indices still line up with the document.
type policyRule struct {
	path            fieldpath.Path
	apiGroups       []string
	resources       []string
	verbs           []string
	nonResourceURLs []string
}

func (r policyRule) verbPath(i int) fieldpath.Path {
	return r.path.Child("verbs").At(i)
}

func (r policyRule) resourcePath(i int) fieldpath.Path {
	return r.path.Child("resources").At(i)
}

func (s *Scanner) scanRBAC(obj map[string]interface{}, shape manifest.Shape) []finding.Finding {
	rules, ok := shape.RulesOf(obj)
	if !ok {
		return nil
	}

	var findings []finding.Finding
	for i, raw := range rules {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		rule := policyRule{
			path:            shape.Rules.At(i),
			apiGroups:       stringList(m["apiGroups"]),
			resources:       stringList(m["resources"]),
			verbs:           stringList(m["verbs"]),
			nonResourceURLs: stringList(m["nonResourceURLs"]),
		}
		findings = append(findings, s.scanRule(rule)...)
	}
	return findings
}

func (s *Scanner) scanRule(rule policyRule) []finding.Finding {
	var findings []finding.Finding
	add := func(path fieldpath.Path, key, value, issue string, sev finding.Severity, desc string) {
		findings = append(findings, finding.Finding{
			Path:        path,
			Key:         key,
			Value:       value,
			Issue:       issue,
			Severity:    sev,
			Category:    finding.RBAC,
			Description: desc,
		})
	}

	wildResource := indexOf(rule.resources, rbacv1.ResourceAll)
	wildVerb := indexOf(rule.verbs, rbacv1.VerbAll)
	wildGroup := indexOf(rule.apiGroups, rbacv1.APIGroupAll)

	if wildResource >= 0 {
		add(rule.path, "rules", "*", "Wildcard resources RBAC permissions", finding.Critical,
			"The rule applies to every resource type, including ones installed later.")
		add(rule.resourcePath(wildResource), "resources", "*", "Wildcard resources access", finding.Critical,
			"Wildcard resource grants access to every resource type in the selected API groups.")
	}

	if wildVerb >= 0 {
		add(rule.verbPath(wildVerb), "verbs", "*", "Wildcard verb access", finding.Critical,
			"Wildcard verb allows every operation, including delete and escalate.")
	}

	if wildGroup >= 0 && wildResource >= 0 && wildVerb >= 0 {
		add(rule.path, "rules", "*", "Full wildcard RBAC permissions", finding.Critical,
			"Every verb on every resource in every API group. This is cluster-admin level access.")
		add(rule.verbPath(wildVerb), "verbs", "*", "Wildcard verb with full permissions", finding.Critical,
			"Wildcard verb combined with wildcard API groups and resources grants full control.")
		return findings
	}

	if indexOf(rule.nonResourceURLs, rbacv1.NonResourceAll) >= 0 {
		add(rule.path.Child("nonResourceURLs"), "nonResourceURLs", "*", "Wildcard non-resource URL access", finding.High,
			"Access to every non-resource endpoint, such as /metrics, /debug and /logs.")
	}

	if wildVerb >= 0 {
		for _, res := range rule.resources {
			base := baseResource(res)
			if !s.table.IsCriticalWildcard(base) {
				continue
			}
			sev := finding.High
			if res == rbacv1.ResourceAll {
				sev = finding.Critical
			}
			add(rule.path, "rules", "* "+res, "Dangerous RBAC permission: all verbs on "+res, sev,
				fmt.Sprintf("Every verb on %s, including create, delete and escalate.", res))
			add(rule.verbPath(wildVerb), "verbs", "*", "Dangerous wildcard verb: * on "+res, sev,
				fmt.Sprintf("Wildcard verb on %s allows every operation on it.", res))
		}
		return findings
	}

	for vi, verb := range rule.verbs {
		if !s.table.HasVerb(verb) {
			continue
		}

		if wildResource >= 0 {
			if sev, ok := s.table.AnyResource(verb); ok {
				add(rule.path, "rules", verb+" *", "Dangerous RBAC permission: "+verb+" on all resources", sev,
					fmt.Sprintf("The %s verb is dangerous on any resource and is granted on every resource type.", verb))
				add(rule.verbPath(vi), "verbs", verb, "Dangerous verb: "+verb+" on all resources", sev,
					fmt.Sprintf("%s on all resources.", verb))
				continue
			}
			for _, rs := range s.table.Resources(verb) {
				if rs.Resource == rbacv1.ResourceAll {
					continue
				}
				add(rule.path, "rules", verb+" *."+rs.Resource, "Dangerous RBAC permission: "+verb+" "+rs.Resource, rs.Severity,
					fmt.Sprintf("Wildcard resources include %s, which is sensitive for %s.", rs.Resource, verb))
				add(rule.verbPath(vi), "verbs", verb, "Dangerous verb: "+verb+" on "+rs.Resource, rs.Severity,
					fmt.Sprintf("%s reaches %s through the wildcard resource.", verb, rs.Resource))
			}
			continue
		}

		for ri, res := range rule.resources {
			if res == "" {
				continue
			}
			base := baseResource(res)
			if sev, ok := s.table.Lookup(verb, base); ok {
				add(rule.path, "rules", verb+" "+res, "Sensitive RBAC permission: "+verb+" "+res, sev,
					fmt.Sprintf("%s on %s is a known privilege escalation or data exposure path.", verb, res))
				add(rule.verbPath(vi), "verbs", verb, "Dangerous verb: "+verb+" on "+res, sev,
					fmt.Sprintf("The %s verb is sensitive on %s.", verb, res))
				add(rule.resourcePath(ri), "resources", res, "Sensitive resource: "+res+" with "+verb, sev,
					fmt.Sprintf("%s is sensitive when combined with %s.", res, verb))
			} else if sev, ok := s.table.AnyResource(verb); ok {
				add(rule.path, "rules", verb+" "+res, "Dangerous RBAC permission: "+verb+" "+res, sev,
					fmt.Sprintf("The %s verb is dangerous on any resource.", verb))
				add(rule.verbPath(vi), "verbs", verb, "Dangerous verb: "+verb+" on "+res, sev,
					fmt.Sprintf("The %s verb is dangerous on any resource.", verb))
			}
		}
	}

	return findings
}

// baseResource strips a subresource suffix: "pods/exec" becomes "pods".
func baseResource(res string) string {
	base, _, _ := strings.Cut(res, "/")
	return base
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = item.(string)
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
