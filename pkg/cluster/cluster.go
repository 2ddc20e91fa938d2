// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package cluster pulls the scannable workload and RBAC objects from a live
// cluster and turns them into manifest documents.
package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/pkg/manifest"
)

// Kind is one resource type the fetcher lists.
type Kind struct {
	GVR        schema.GroupVersionResource
	Kind       string
	Namespaced bool
}

// APIVersion returns the group/version string used in manifests.
func (k Kind) APIVersion() string {
	return k.GVR.GroupVersion().String()
}

// Kinds are listed in this order, which is also the order of the output.
var Kinds = []Kind{
	{GVR: schema.GroupVersionResource{Version: "v1", Resource: "pods"}, Kind: "Pod", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}, Kind: "Deployment", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "daemonsets"}, Kind: "DaemonSet", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "statefulsets"}, Kind: "StatefulSet", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "replicasets"}, Kind: "ReplicaSet", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "batch", Version: "v1", Resource: "jobs"}, Kind: "Job", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "batch", Version: "v1", Resource: "cronjobs"}, Kind: "CronJob", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "roles"}, Kind: "Role", Namespaced: true},
	{GVR: schema.GroupVersionResource{Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "clusterroles"}, Kind: "ClusterRole"},
}

// Fetcher lists scannable objects through a dynamic client.
type Fetcher struct {
	client       dynamic.Interface
	logger       *zap.SugaredLogger
	includeOwned bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithOwned keeps objects that have an owner reference, such as the pods of a
// Deployment. They are skipped by default since the owner is scanned instead.
func WithOwned(include bool) Option {
	return func(f *Fetcher) { f.includeOwned = include }
}

// NewFetcher creates a fetcher with an existing client.
func NewFetcher(client dynamic.Interface, opts ...Option) *Fetcher {
	f := &Fetcher{client: client}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop().Sugar()
	}
	return f
}

// NewForConfig creates a fetcher for the cluster described by cfg.
func NewForConfig(cfg *rest.Config, opts ...Option) (*Fetcher, error) {
	client, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	return NewFetcher(client, opts...), nil
}

// BuildConfig loads a client config from kubeconfig, falling back to
// $KUBECONFIG, ~/.kube/config and finally the in-cluster config.
func BuildConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	if kubeconfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path := filepath.Join(home, ".kube", "config")
			if _, err := os.Stat(path); err == nil {
				kubeconfig = path
			}
		}
	}
	if kubeconfig == "" {
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, clierr.WrapWithHint(fmt.Errorf("no kubeconfig found: %w", err), "Pass --kubeconfig or set KUBECONFIG")
		}
		return cfg, nil
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig %s: %w", kubeconfig, err)
	}
	return cfg, nil
}

// Fetch lists every scannable kind and returns the objects as documents,
// ordered by kind, then namespace, then name. An empty namespace means all
// namespaces; cluster-scoped kinds are skipped when a namespace is given.
// A kind the caller may not list is logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, namespace string) ([]manifest.Document, error) {
	perKind := make([][]manifest.Document, len(Kinds))

	g, ctx := errgroup.WithContext(ctx)
	for i, k := range Kinds {
		if namespace != "" && !k.Namespaced {
			continue
		}
		g.Go(func() error {
			docs, err := f.list(ctx, k, namespace)
			if err != nil {
				if clierr.IsForbidden(err) || clierr.IsNotFound(err) {
					f.logger.Warnw("skipping kind", "kind", k.Kind, "error", err)
					return nil
				}
				return fmt.Errorf("list %s: %w", k.GVR.Resource, err)
			}
			perKind[i] = docs
			f.logger.Debugw("listed kind", "kind", k.Kind, "namespace", namespace, "count", len(docs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []manifest.Document
	for _, docs := range perKind {
		out = append(out, docs...)
	}
	f.logger.Infow("fetched cluster objects", "documents", len(out), "managed", len(Managed(out)))
	return out, nil
}

var namespacesGVR = schema.GroupVersionResource{Version: "v1", Resource: "namespaces"}

// Namespaces returns the sorted names of the namespaces the caller can list.
func (f *Fetcher) Namespaces(ctx context.Context) ([]string, error) {
	list, err := f.client.Resource(namespacesGVR).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.GetName())
	}
	sort.Strings(names)
	return names, nil
}

func (f *Fetcher) list(ctx context.Context, k Kind, namespace string) ([]manifest.Document, error) {
	var ri dynamic.ResourceInterface = f.client.Resource(k.GVR)
	if k.Namespaced {
		ri = f.client.Resource(k.GVR).Namespace(namespace)
	}
	list, err := ri.List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}

	items := list.Items
	sort.Slice(items, func(a, b int) bool {
		if items[a].GetNamespace() != items[b].GetNamespace() {
			return items[a].GetNamespace() < items[b].GetNamespace()
		}
		return items[a].GetName() < items[b].GetName()
	})

	docs := make([]manifest.Document, 0, len(items))
	for i := range items {
		if !f.includeOwned && len(items[i].GetOwnerReferences()) > 0 {
			continue
		}
		docs = append(docs, ToDocument(&items[i], k))
	}
	return docs, nil
}

// ToDocument strips server-populated fields from obj and returns it as a
// manifest document.
func ToDocument(obj *unstructured.Unstructured, k Kind) manifest.Document {
	u := obj.DeepCopy()
	u.SetAPIVersion(k.APIVersion())
	u.SetKind(k.Kind)
	u.SetManagedFields(nil)
	u.SetResourceVersion("")
	u.SetUID("")
	u.SetCreationTimestamp(metav1.Time{})
	u.SetOwnerReferences(nil)

	annotations := u.GetAnnotations()
	delete(annotations, "kubectl.kubernetes.io/last-applied-configuration")
	if len(annotations) == 0 {
		annotations = nil
	}
	u.SetAnnotations(annotations)

	unstructured.RemoveNestedField(u.Object, "status")
	unstructured.RemoveNestedField(u.Object, "metadata", "generation")
	return manifest.NewDocument(u.Object)
}
