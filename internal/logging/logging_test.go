// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confighub/cub-guard/pkg/fieldpath"
	"github.com/confighub/cub-guard/pkg/finding"
)

func TestNew(t *testing.T) {
	logger, err := New(Options{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(-1))

	logger, err = New(Options{})
	require.NoError(t, err)
	assert.False(t, logger.Desugar().Core().Enabled(0), "info is below the default warn level")

	_, err = New(Options{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestAuditLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	a, err := NewAuditLog(dir, "fix")
	require.NoError(t, err)

	_, err = uuid.Parse(a.Session())
	require.NoError(t, err)

	a.Section("pod.yaml")
	a.Fix(finding.Finding{
		Path:           fieldpath.MustParse("spec.containers[1].securityContext.privileged"),
		Key:            "privileged",
		Severity:       finding.Critical,
		Issue:          "Privileged container",
		ContainerIndex: finding.Int(1),
	})
	a.FixAll(5, 0)
	a.Undo()
	path := a.Close()
	assert.Equal(t, "", a.Close(), "second Close is a no-op")

	assert.Equal(t, dir, filepath.Dir(path))
	lines := readLines(t, path)
	require.Len(t, lines, 6)

	msgs := make([]string, len(lines))
	for i, l := range lines {
		msgs[i], _ = l["msg"].(string)
		assert.Equal(t, a.Session(), l["session"])
		assert.Equal(t, "fix", l["command"])
	}
	assert.Equal(t, []string{"session started", "section", "fix", "fix all", "undo", "session completed"}, msgs)

	assert.Equal(t, "spec.containers[1].securityContext.privileged", lines[2]["path"])
	assert.Equal(t, float64(1), lines[2]["containerIndex"])
	assert.Equal(t, float64(5), lines[3]["findingsBefore"])
	assert.Equal(t, float64(2), lines[5]["fixes"])
	assert.Equal(t, float64(1), lines[5]["undos"])
}

func TestNilAuditLogIsSafe(t *testing.T) {
	var a *AuditLog
	a.Section("x")
	a.Fix(finding.Finding{})
	a.FixAll(1, 0)
	a.Undo()
	assert.Equal(t, "", a.Session())
	assert.Equal(t, "", a.Close())
}
