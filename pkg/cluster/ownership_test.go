// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confighub/cub-guard/pkg/manifest"
)

func TestDetectManager(t *testing.T) {
	tests := []struct {
		name        string
		labels      map[string]string
		annotations map[string]string
		want        Manager
	}{
		{
			name:   "flux kustomization",
			labels: map[string]string{"kustomize.toolkit.fluxcd.io/name": "apps", "kustomize.toolkit.fluxcd.io/namespace": "flux-system"},
			want:   Manager{Tool: ToolFlux, Source: "flux-system/kustomization/apps"},
		},
		{
			name:   "flux helmrelease",
			labels: map[string]string{"helm.toolkit.fluxcd.io/name": "redis"},
			want:   Manager{Tool: ToolFlux, Source: "helmrelease/redis"},
		},
		{
			name:   "argo instance label",
			labels: map[string]string{"argocd.argoproj.io/instance": "storefront"},
			want:   Manager{Tool: ToolArgo, Source: "application/storefront"},
		},
		{
			name:        "argo tracking id",
			annotations: map[string]string{"argocd.argoproj.io/tracking-id": "storefront:apps/Deployment:shop/web"},
			want:        Manager{Tool: ToolArgo, Source: "application/storefront"},
		},
		{
			name:        "helm managed-by",
			labels:      map[string]string{"app.kubernetes.io/managed-by": "Helm", "app.kubernetes.io/instance": "ignored"},
			annotations: map[string]string{"meta.helm.sh/release-name": "ingress", "meta.helm.sh/release-namespace": "edge"},
			want:        Manager{Tool: ToolHelm, Source: "edge/release/ingress"},
		},
		{
			name:   "legacy helm chart label",
			labels: map[string]string{"helm.sh/chart": "nginx-1.2.3"},
			want:   Manager{Tool: ToolHelm, Source: "release/nginx-1.2.3"},
		},
		{
			name:        "terraform",
			annotations: map[string]string{"app.terraform.io/run-id": "run-1", "app.terraform.io/workspace-name": "prod"},
			want:        Manager{Tool: ToolTerraform, Source: "workspace/prod"},
		},
		{
			name:        "confighub unit",
			labels:      map[string]string{"confighub.com/UnitSlug": "web"},
			annotations: map[string]string{"confighub.com/SpaceName": "shop-prod"},
			want:        Manager{Tool: ToolConfigHub, Source: "shop-prod/unit/web"},
		},
		{
			name:   "flux wins over helm",
			labels: map[string]string{"helm.toolkit.fluxcd.io/name": "redis", "app.kubernetes.io/managed-by": "Helm"},
			want:   Manager{Tool: ToolFlux, Source: "helmrelease/redis"},
		},
		{
			name:   "unmanaged",
			labels: map[string]string{"app": "web", "app.kubernetes.io/managed-by": "kubectl"},
			want:   Manager{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectManager(tt.labels, tt.annotations))
		})
	}
}

func TestManaged(t *testing.T) {
	res, err := manifest.Parse(`apiVersion: v1
kind: Pod
metadata:
  name: debug
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: shop
  labels:
    argocd.argoproj.io/instance: storefront
`)
	require.NoError(t, err)

	got := Managed(res.Documents)
	require.Len(t, got, 1)
	assert.Equal(t, ManagedObject{
		DocumentIndex: 1,
		Kind:          "Deployment",
		Name:          "web",
		Namespace:     "shop",
		Manager:       Manager{Tool: ToolArgo, Source: "application/storefront"},
	}, got[0])

	_, ok := ManagedBy(manifest.Document{})
	assert.False(t, ok)
}

func TestFetchKeepsManagerLabels(t *testing.T) {
	client := newFakeDynamicClient(object(t, `apiVersion: apps/v1
kind: Deployment
metadata:
  name: api
  namespace: shop
  labels:
    kustomize.toolkit.fluxcd.io/name: apps
    kustomize.toolkit.fluxcd.io/namespace: flux-system
spec:
  template:
    spec:
      containers:
        - name: api
          image: api:1
`))

	docs, err := NewFetcher(client).Fetch(context.Background(), "shop")
	require.NoError(t, err)

	got := Managed(docs)
	require.Len(t, got, 1)
	assert.Equal(t, "flux-system/kustomization/apps", got[0].Manager.Source)
}
