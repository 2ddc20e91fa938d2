// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
)

func snapshot(text string) Snapshot {
	return Snapshot{
		Documents: []manifest.Document{manifest.NewDocument(map[string]interface{}{"kind": "Pod", "text": text})},
		Text:      text,
		Findings:  []finding.Finding{{Key: "hostPID", Issue: text}},
	}
}

func TestPushPopIsLIFO(t *testing.T) {
	m := New(0)
	assert.Equal(t, DefaultLimit, m.Limit())
	assert.False(t, m.CanUndo())

	m.Push(snapshot("one"))
	m.Push(snapshot("two"))
	assert.Equal(t, 2, m.Len())

	s, ok := m.Pop()
	require.True(t, ok)
	assert.Equal(t, "two", s.Text)

	s, ok = m.Pop()
	require.True(t, ok)
	assert.Equal(t, "one", s.Text)
	assert.False(t, m.CanUndo())
}

func TestPopEmptyIsNoop(t *testing.T) {
	m := New(3)
	s, ok := m.Pop()
	assert.False(t, ok)
	assert.Empty(t, s.Text)
	assert.Equal(t, 0, m.Len())
}

func TestLimitDropsOldest(t *testing.T) {
	m := New(3)
	for i := 0; i < 5; i++ {
		m.Push(snapshot(fmt.Sprint(i)))
	}
	assert.Equal(t, 3, m.Len())

	var got []string
	for m.CanUndo() {
		s, _ := m.Pop()
		got = append(got, s.Text)
	}
	assert.Equal(t, []string{"4", "3", "2"}, got)
}

func TestPushCopies(t *testing.T) {
	m := New(5)
	s := snapshot("orig")
	m.Push(s)

	s.Documents[0].Object()["text"] = "mutated"
	s.Findings[0].Issue = "mutated"

	got, ok := m.Pop()
	require.True(t, ok)
	assert.Equal(t, "orig", got.Documents[0].Object()["text"])
	assert.Equal(t, "orig", got.Findings[0].Issue)
}

func TestReset(t *testing.T) {
	m := New(5)
	m.Push(snapshot("a"))
	m.Push(snapshot("b"))
	m.Reset()
	assert.False(t, m.CanUndo())
	_, ok := m.Pop()
	assert.False(t, ok)
}
