package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rivetrun/rivet/pkg/telemetry"
)

var (
	// Persistent flags
	logLevel    string
	logFormat   string
	journalPath string
	extraVars   map[string]string
	policyPaths []string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rivet",
		Short: "Rivet - declarative task playbook runner",
		Long: `Rivet executes YAML playbooks: ordered tasks that run local commands
and converge cloud stacks, sharing state through lazily resolved
expressions. Runs are sequential and fail-fast; each task's output is
addressable by every later task.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "SQLite run journal path (empty disables journaling)")
	rootCmd.PersistentFlags().StringToStringVarP(&extraVars, "vars", "e", nil, "extra playbook variables (key=value)")
	rootCmd.PersistentFlags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// telemetryConfig folds the persistent flags into the telemetry defaults
// and validates the result.
func telemetryConfig() (*telemetry.Config, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the persistent flags.
func newLogger() (zerolog.Logger, error) {
	cfg, err := telemetryConfig()
	if err != nil {
		return zerolog.Nop(), err
	}
	return telemetry.NewLogger(cfg.Logging)
}
