// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/confighub/cub-guard/pkg/cluster"
)

const (
	namespaceTTL     = 3 * time.Second
	namespaceTimeout = 2 * time.Second
)

// namespaceCache keeps the last namespace listing so repeated tab presses
// don't each hit the API server.
type namespaceCache struct {
	mu         sync.Mutex
	kubeconfig string
	names      []string
	expires    time.Time
}

var namespaces namespaceCache

func (c *namespaceCache) get(kubeconfig string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kubeconfig == kubeconfig && time.Now().Before(c.expires) {
		return c.names, nil
	}

	cfg, err := cluster.BuildConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	f, err := cluster.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), namespaceTimeout)
	defer cancel()
	names, err := f.Namespaces(ctx)
	if err != nil {
		return nil, err
	}

	c.kubeconfig, c.names, c.expires = kubeconfig, names, time.Now().Add(namespaceTTL)
	return names, nil
}

func completeNamespaces(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	kubeconfig, _ := cmd.Flags().GetString("kubeconfig")
	names, err := namespaces.get(kubeconfig)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// filterPrefix keeps the items starting with prefix, ignoring case.
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var out []string
	for _, item := range items {
		if len(item) >= len(prefix) && strings.EqualFold(item[:len(prefix)], prefix) {
			out = append(out, item)
		}
	}
	return out
}
