// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Command cub-guard finds privilege escalation and RBAC risks in Kubernetes
// manifests and rewrites the fixable ones.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/confighub/cub-guard/internal/clierr"
	"github.com/confighub/cub-guard/internal/config"
	"github.com/confighub/cub-guard/internal/logging"
	"github.com/confighub/cub-guard/pkg/history"
)

var (
	// BuildTag is set during build
	BuildTag = "dev"
	// BuildDate is set during build
	BuildDate = "unknown"
)

var (
	settings *config.Config
	logger   = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "cub-guard",
	Short: "Find and fix risky security settings in Kubernetes manifests",
	Long: `cub-guard - find and fix risky security settings in Kubernetes manifests

cub-guard reads Pods, workloads, Roles and ClusterRoles and reports:

  - Privileged containers, host namespaces and hostPath mounts
  - Dangerous capabilities, root users and privilege escalation
  - Wildcard and sensitive RBAC permissions

Most workload findings can be fixed automatically. RBAC findings are reported
for manual review.

Configuration is read from flags, CUB_GUARD_* environment variables and
~/.cub-guard.yaml or ./.cub-guard.yaml, in that order.
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, clierr.Pretty(err))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyConfig, "", "Config file (default: ~/.cub-guard.yaml or ./.cub-guard.yaml)")
	pf.String(config.KeyRules, "", "Rule table file replacing the built-in RBAC rules")
	pf.String(config.KeyLogLevel, "warn", "Log level (debug, info, warn, error)")
	pf.Bool(config.KeyLogDev, false, "Human-readable development logging")
	pf.Int(config.KeyHistoryLimit, history.DefaultLimit, "Undo steps kept by the interactive viewer")
	pf.Bool(config.KeyAudit, false, "Record applied fixes in a JSON-lines audit log")
	pf.String(config.KeyAuditDir, logging.DefaultAuditDir, "Directory for audit logs")
	pf.String(config.KeyKubeconfig, "", "Path to kubeconfig (default: $KUBECONFIG or ~/.kube/config)")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cub-guard version %s (built %s)\n", BuildTag, BuildDate)
		},
	})

	// Add completion command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for cub-guard.

Bash:
  $ source <(cub-guard completion bash)
  # Or add to ~/.bashrc:
  $ cub-guard completion bash >> ~/.bashrc

Zsh:
  $ source <(cub-guard completion zsh)
  # Or install to fpath:
  $ cub-guard completion zsh > "${fpath[1]}/_cub-guard"

Fish:
  $ cub-guard completion fish | source
  # Or install:
  $ cub-guard completion fish > ~/.config/fish/completions/cub-guard.fish

PowerShell:
  PS> cub-guard completion powershell | Out-String | Invoke-Expression
`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	})
}

// loadSettings resolves configuration and builds the logger before any command runs.
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	l, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return clierr.Validation("%v", err)
	}
	settings = cfg
	logger = l.With(zap.String("command", cmd.Name()))
	if cfg.File != "" {
		logger.Debugw("using config file", "path", cfg.File)
	}
	return nil
}
