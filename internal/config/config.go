// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package config resolves CLI settings from flags, CUB_GUARD_* environment
// variables and an optional .cub-guard.yaml file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/internal/logging"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/history"
)

// EnvPrefix is prepended to upper-cased keys: log-level becomes CUB_GUARD_LOG_LEVEL.
const EnvPrefix = "CUB_GUARD"

// Keys understood in flags, env and the config file.
const (
	KeyConfig       = "config"
	KeyRules        = "rules"
	KeyLogLevel     = "log-level"
	KeyLogDev       = "log-dev"
	KeyHistoryLimit = "history-limit"
	KeyAudit        = "audit"
	KeyAuditDir     = "audit-dir"
	KeyMinSeverity  = "min-severity"
	KeyKubeconfig   = "kubeconfig"
)

// Config is the resolved configuration.
type Config struct {
	Rules        string
	LogLevel     string
	LogDev       bool
	HistoryLimit int
	Audit        bool
	AuditDir     string
	MinSeverity  finding.Severity
	Kubeconfig   string
	// File is the config file that was read, if any.
	File string
}

// LoggingOptions returns the logger settings.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Development: c.LogDev}
}

// Load resolves the configuration. flags may be nil; flags that are not
// defined in it are simply not bound.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyHistoryLimit, history.DefaultLimit)
	v.SetDefault(KeyAuditDir, logging.DefaultAuditDir)
	v.SetDefault(KeyMinSeverity, string(finding.Low))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(".cub-guard")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	sev, err := finding.ParseSeverity(v.GetString(KeyMinSeverity))
	if err != nil {
		return nil, clierr.Validation("%s: %v", KeyMinSeverity, err)
	}
	limit := v.GetInt(KeyHistoryLimit)
	if limit <= 0 {
		return nil, clierr.Validation("%s must be positive, got %d", KeyHistoryLimit, limit)
	}

	return &Config{
		Rules:        v.GetString(KeyRules),
		LogLevel:     v.GetString(KeyLogLevel),
		LogDev:       v.GetBool(KeyLogDev),
		HistoryLimit: limit,
		Audit:        v.GetBool(KeyAudit),
		AuditDir:     v.GetString(KeyAuditDir),
		MinSeverity:  sev,
		Kubeconfig:   v.GetString(KeyKubeconfig),
		File:         v.ConfigFileUsed(),
	}, nil
}
