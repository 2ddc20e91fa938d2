// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/pkg/finding"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyConfig, "", "")
	fs.String(KeyRules, "", "")
	fs.String(KeyLogLevel, "warn", "")
	fs.Bool(KeyLogDev, false, "")
	fs.Int(KeyHistoryLimit, 50, "")
	fs.Bool(KeyAudit, false, "")
	fs.String(KeyAuditDir, ".cub-guard/logs", "")
	fs.String(KeyMinSeverity, "low", "")
	fs.String(KeyKubeconfig, "", "")
	return fs
}

// isolate keeps a developer's ~/.cub-guard.yaml and CUB_GUARD_* variables out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"CUB_GUARD_MIN_SEVERITY", "CUB_GUARD_LOG_LEVEL", "CUB_GUARD_HISTORY_LIMIT", "CUB_GUARD_CONFIG"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(newFlags())
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, finding.Low, cfg.MinSeverity)
	assert.Equal(t, ".cub-guard/logs", cfg.AuditDir)
	assert.False(t, cfg.Audit)
	assert.Empty(t, cfg.File)

	cfg, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.HistoryLimit)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "guard.yaml")
	require.NoError(t, os.WriteFile(file, []byte("min-severity: medium\nhistory-limit: 10\nlog-level: info\naudit: true\n"), 0o644))

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--config", file, "--log-level", "debug"}))
	t.Setenv("CUB_GUARD_HISTORY_LIMIT", "20")

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, file, cfg.File)
	assert.Equal(t, finding.Medium, cfg.MinSeverity, "config file beats default")
	assert.Equal(t, 20, cfg.HistoryLimit, "env beats config file")
	assert.Equal(t, "debug", cfg.LogLevel, "flag beats config file")
	assert.True(t, cfg.Audit)
	assert.Equal(t, "debug", cfg.LoggingOptions().Level)
}

func TestLoadFindsDotFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".cub-guard.yaml", []byte("rules: custom-rules.yaml\n"), 0o644))

	cfg, err := Load(newFlags())
	require.NoError(t, err)
	assert.Equal(t, "custom-rules.yaml", cfg.Rules)
	assert.NotEmpty(t, cfg.File)
}

func TestLoadValidates(t *testing.T) {
	isolate(t)

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--min-severity", "severe"}))
	_, err := Load(fs)
	require.Error(t, err)
	assert.True(t, clierr.IsValidation(err))

	fs = newFlags()
	require.NoError(t, fs.Parse([]string{"--history-limit", "0"}))
	_, err = Load(fs)
	assert.True(t, clierr.IsValidation(err))

	fs = newFlags()
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))
	_, err = Load(fs)
	assert.Error(t, err)
}
