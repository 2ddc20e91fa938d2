// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package history keeps undo snapshots of a manifest being edited.
package history

import (
	"sync"

	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
)

// DefaultLimit is the number of snapshots kept when no limit is configured.
const DefaultLimit = 50

// Snapshot is the editor state captured before a fix.
type Snapshot struct {
	Documents  []manifest.Document
	IsMultiDoc bool
	Text       string
	Findings   []finding.Finding
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Documents:  manifest.CloneSet(s.Documents),
		IsMultiDoc: s.IsMultiDoc,
		Text:       s.Text,
	}
	if s.Findings != nil {
		out.Findings = append([]finding.Finding(nil), s.Findings...)
	}
	return out
}

// Manager is a bounded LIFO of snapshots. When full, the oldest snapshot is dropped.
type Manager struct {
	mu    sync.Mutex
	limit int
	stack []Snapshot
}

// New creates a manager holding at most limit snapshots.
func New(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Push stores a copy of s.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stack = append(m.stack, s.clone())
	if over := len(m.stack) - m.limit; over > 0 {
		m.stack = append([]Snapshot(nil), m.stack[over:]...)
	}
}

// Pop removes and returns the most recent snapshot. It returns false on an empty stack.
func (m *Manager) Pop() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stack) == 0 {
		return Snapshot{}, false
	}
	last := m.stack[len(m.stack)-1]
	m.stack[len(m.stack)-1] = Snapshot{}
	m.stack = m.stack[:len(m.stack)-1]
	return last, true
}

// CanUndo reports whether Pop would return a snapshot.
func (m *Manager) CanUndo() bool {
	return m.Len() > 0
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

func (m *Manager) Limit() int {
	return m.limit
}

// Reset drops every snapshot.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = nil
}
