package cmd

import (
	"fmt"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "HARNESS"

// NewRootCommand assembles the harness CLI.
func NewRootCommand(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "virtwho-harness",
		Short:         "Remote test harness for the virt-who agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupLogging(opts.LogLevel); err != nil {
				return err
			}

			viper.AutomaticEnv()
			viper.SetEnvPrefix(envPrefix)
			viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			cobraflags.PresetRequiredFlags(envPrefix, make(map[*pflag.Flag]bool), cmd)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.Settings, "settings", opts.Settings, "Path to the harness settings file (YAML)")

	root.AddCommand(NewRunCommand(opts))
	root.AddCommand(NewAnalyzeCommand(opts))
	root.AddCommand(NewReportCommand(opts))
	return root
}

// Execute runs the CLI.
func Execute() error {
	opts := NewOptions()
	return NewRootCommand(opts).Execute()
}

func setupLogging(level string) error {
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = parsed
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}
