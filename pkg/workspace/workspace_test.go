// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package workspace

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/confighub/cub-guard/internal/logging"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
)

const privilegedPod = `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  containers:
    - name: app
      image: nginx
      securityContext:
        privileged: true
`

const mixedSet = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  template:
    spec:
      hostNetwork: true
      containers:
        - name: app
          image: nginx
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: admin
rules:
  - apiGroups: ["*"]
    resources: ["*"]
    verbs: ["*"]
`

func TestFixOneAndUndo(t *testing.T) {
	w := New()
	require.NoError(t, w.Load(privilegedPod))
	assert.Equal(t, StatusIssues, w.Status())
	assert.Equal(t, 1, w.FixableCount())
	assert.False(t, w.CanUndo())
	assert.Empty(t, w.Diff())

	findings := w.Findings()
	require.Len(t, findings, 1)

	line, ok := w.Line(findings[0].Path)
	require.True(t, ok)
	assert.Equal(t, 10, line)

	fixed, err := w.FixOne(findings[0])
	require.NoError(t, err)
	assert.True(t, fixed)
	assert.Empty(t, w.Findings())
	assert.Equal(t, StatusClean, w.Status())
	assert.True(t, w.CanUndo())
	assert.True(t, w.Modified())
	assert.Contains(t, w.Text(), "privileged: false")
	assert.Contains(t, w.Diff(), "+        privileged: false")
	assert.Contains(t, w.Diff(), "-        privileged: true")

	fixed, err = w.FixOne(findings[0])
	require.NoError(t, err)
	assert.False(t, fixed, "stale finding is a no-op")

	require.True(t, w.Undo())
	assert.Equal(t, privilegedPod, w.Text())
	assert.Len(t, w.Findings(), 1)
	assert.False(t, w.CanUndo())
	assert.False(t, w.Undo())
}

func TestLoadParseErrorKeepsState(t *testing.T) {
	w := New()
	require.NoError(t, w.Load(privilegedPod))
	_, err := w.FixOne(w.Findings()[0])
	require.NoError(t, err)
	text := w.Text()

	err = w.Load("kind: Pod\nspec: [unclosed\n")
	var pe *manifest.ParseError
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, text, w.Text())
	assert.Equal(t, privilegedPod, w.Original())
	assert.True(t, w.CanUndo(), "failed load keeps history")
}

func TestLoadResetsHistory(t *testing.T) {
	w := New()
	require.NoError(t, w.Load(privilegedPod))
	_, err := w.FixAll()
	require.NoError(t, err)
	require.True(t, w.CanUndo())

	require.NoError(t, w.Load(privilegedPod))
	assert.False(t, w.CanUndo())

	w.Clear()
	assert.Equal(t, StatusEmpty, w.Status())
	assert.False(t, w.Loaded())
	assert.Empty(t, w.Findings())
}

func TestFixAllMultiDocument(t *testing.T) {
	w := New()
	require.NoError(t, w.Load(mixedSet))
	assert.True(t, w.IsMultiDoc())
	assert.Len(t, w.Findings(), 6)
	assert.Equal(t, 1, w.FixableCount())

	resolved, err := w.FixAll()
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	remaining := w.Findings()
	assert.Len(t, remaining, 5)
	for _, f := range remaining {
		assert.Equal(t, finding.RBAC, f.Category)
		require.NotNil(t, f.DocumentIndex)
		assert.Equal(t, 1, *f.DocumentIndex)
	}
	assert.Equal(t, 0, w.FixableCount())
	assert.Equal(t, StatusIssues, w.Status())
	assert.Contains(t, w.Text(), "hostNetwork: false")
	assert.Equal(t, 1, strings.Count(w.Text(), "---\n"))

	resolved, err = w.FixAll()
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
}

func TestRBACFindingIsNotFixed(t *testing.T) {
	w := New()
	require.NoError(t, w.Load(mixedSet))

	for _, f := range w.Findings() {
		if f.Category != finding.RBAC {
			continue
		}
		assert.False(t, w.IsFixable(f))
		fixed, err := w.FixOne(f)
		require.NoError(t, err)
		assert.False(t, fixed)
	}
	assert.False(t, w.CanUndo())
	assert.Equal(t, mixedSet, w.Text())
}

func TestStatusAndWarnings(t *testing.T) {
	w := New()
	assert.Equal(t, StatusEmpty, w.Status())

	_, err := w.FixOne(finding.Finding{Key: "hostPID"})
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, w.Load("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cfg\n"))
	assert.Equal(t, StatusUnscannable, w.Status())
	assert.Equal(t, []string{"ConfigMap"}, w.Warnings())

	require.NoError(t, w.Load("kind: Deployment\nspec:\n  template:\n    spec:\n      containers:\n        - name: app\n"))
	assert.Equal(t, StatusClean, w.Status())
	assert.Empty(t, w.Warnings())

	infos := w.Describe()
	require.Len(t, infos, 1)
	assert.Equal(t, "Deployment", infos[0].Kind)
	assert.True(t, infos[0].Scannable)
}

func TestSummaryAndPlan(t *testing.T) {
	w := New()
	require.NoError(t, w.Load(mixedSet))

	s := w.Summary()
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, finding.Critical, s.Worst)
	assert.Equal(t, 5, s.ByCategory[finding.RBAC])

	plan := w.Plan()
	require.Len(t, plan, 6)
	assert.True(t, plan[0].Fixable)
	assert.False(t, plan[1].Fixable)
}

func TestLogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := New(WithLogger(zap.New(core).Sugar()))

	require.NoError(t, w.Load(privilegedPod))
	_, err := w.FixOne(w.Findings()[0])
	require.NoError(t, err)
	w.Undo()

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
		assert.Equal(t, w.ID(), e.ContextMap()["workspace"])
	}
	assert.Equal(t, []string{"loaded manifest", "fixed finding", "undo"}, msgs)
}

func TestAuditLogRecordsFixes(t *testing.T) {
	audit, err := logging.NewAuditLog(t.TempDir(), "view")
	require.NoError(t, err)

	w := New(WithAuditLog(audit), WithHistoryLimit(5))
	require.NoError(t, w.Load(privilegedPod))
	_, err = w.FixOne(w.Findings()[0])
	require.NoError(t, err)
	w.Undo()

	path := audit.Close()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"fix"`)
	assert.Contains(t, string(data), `"msg":"undo"`)
	assert.Contains(t, string(data), `"key":"privileged"`)
}
