package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/rulesmgr/pkg/config"
	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "rulesmgr",
	Short: "Manage AI coding assistant rule files",
	Long: `rulesmgr manages the rule files AI coding assistants read from a project
(.clinerules, .cursor/rules, .github and the project root) and keeps a personal
library of global rules that can be copied into any project.

Run "rulesmgr panel" for the interactive view.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.Init(); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}
		if err := initTracing(cmd.Context(), cfg.Tracing); err != nil {
			return err
		}
		loadedConfig = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		flushTracing(cmd.Context())
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

// loadedConfig is resolved once per invocation before any subcommand runs.
var loadedConfig config.Config

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("project-root", "", "Project directory holding the rule folders (default: current directory)")
	flags.String("editor-type", "", "Default editor type: Cline, Cursor, VSCodeCopilot or Windsurf (default: detected)")
	flags.String("editor", "", "Command used to edit rule files (default: git core.editor, $VISUAL, $EDITOR, vim)")
	flags.String("settings-backend", "", "Where global rules are stored: file or sqlite")
	flags.String("log-level", "", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "", "Log format: fmt or json")
	flags.Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	flags.Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	if err := bindFlags(flags, map[string]string{
		"project_root":     "project-root",
		"editor_type":      "editor-type",
		"editor":           "editor",
		"settings.backend": "settings-backend",
		"log_level":        "log-level",
		"log_format":       "log-format",
		"tracing.enabled":  "tracing-enabled",
		"tracing.sampler":  "tracing-sampler",
		"tracing.ratio":    "tracing-ratio",
	}); err != nil {
		panic(err)
	}
}

// bindFlags binds each config key to the named flag so flags override config
// files and environment variables.
func bindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return errors.Errorf("flag %s is not defined", name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "failed to bind flag %s", name)
		}
	}
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := withTracing(rootCmd).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		flushTracing(ctx)
		cancel()
		os.Exit(1)
	}
}
