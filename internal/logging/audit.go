// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/confighub/cub-guard/pkg/finding"
)

// DefaultAuditDir is where audit logs go when no directory is configured.
const DefaultAuditDir = ".cub-guard/logs"

// AuditLog records the fixes applied in one session as JSON lines.
// A nil *AuditLog is valid and records nothing.
type AuditLog struct {
	file      *os.File
	logger    *zap.Logger
	session   string
	startTime time.Time
	fixes     int
	undos     int
}

// NewAuditLog creates dir if needed and opens <command>-<timestamp>.jsonl inside it.
func NewAuditLog(dir, command string) (*AuditLog, error) {
	if dir == "" {
		dir = DefaultAuditDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	start := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", command, start.Format("2006-01-02-150405.000")))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	session := uuid.NewString()
	a := &AuditLog{
		file:      file,
		session:   session,
		startTime: start,
		logger:    zap.New(core).With(zap.String("session", session), zap.String("command", command)),
	}
	a.logger.Info("session started")
	return a, nil
}

// Session returns the session id, or "" for a nil log.
func (a *AuditLog) Session() string {
	if a == nil {
		return ""
	}
	return a.session
}

// Section marks the start of a named phase, such as the file being fixed.
func (a *AuditLog) Section(title string, fields ...zap.Field) {
	if a == nil {
		return
	}
	a.logger.Info("section", append([]zap.Field{zap.String("title", title)}, fields...)...)
}

// Fix records one applied fix.
func (a *AuditLog) Fix(f finding.Finding) {
	if a == nil {
		return
	}
	a.fixes++
	fields := []zap.Field{
		zap.String("path", f.Path.String()),
		zap.String("key", f.Key),
		zap.String("severity", string(f.Severity)),
		zap.String("issue", f.Issue),
	}
	if f.ContainerIndex != nil {
		fields = append(fields, zap.Int("containerIndex", *f.ContainerIndex))
	}
	a.logger.Info("fix", fields...)
}

// FixAll records a bulk fix and how many findings it resolved.
func (a *AuditLog) FixAll(before, after int) {
	if a == nil {
		return
	}
	a.fixes++
	a.logger.Info("fix all", zap.Int("findingsBefore", before), zap.Int("findingsAfter", after))
}

// Undo records an undo.
func (a *AuditLog) Undo() {
	if a == nil {
		return
	}
	a.undos++
	a.logger.Info("undo")
}

// Close writes a summary, closes the file and returns its path.
func (a *AuditLog) Close() string {
	if a == nil || a.file == nil {
		return ""
	}
	a.logger.Info("session completed",
		zap.Int("fixes", a.fixes),
		zap.Int("undos", a.undos),
		zap.Duration("duration", time.Since(a.startTime).Round(time.Millisecond)),
	)
	_ = a.logger.Sync()

	path := a.file.Name()
	a.file.Close()
	a.file = nil
	return path
}
