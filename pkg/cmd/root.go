package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/agentpkg/snapcheck/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagLogLevel string
	flagConfig   string

	// Cfg holds the resolved configuration and Logger the logger built from
	// it, both available to all subcommands after PersistentPreRunE
	// completes.
	Cfg    *config.Config
	Logger *logrus.Logger
)

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"output":        "output",
	"jobs":          "jobs",
	"timeout":       "timeout",
	"max-icon-size": "max_icon_size",
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "snapcheck",
		Short: "Snap package validator",
		Long:  "snapcheck checks that an npm snap package is complete, well-formed and internally consistent before it is trusted.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig, flagOverrides(cmd))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			Cfg = cfg
			Logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file to use instead of ./"+config.FileName)

	root.AddCommand(newValidateCmd())
	root.AddCommand(newManifestCmd())
	root.AddCommand(newInitCmd())

	return root
}

// flagOverrides collects the flags the user set explicitly, keyed by config
// key.
func flagOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		overrides[key] = f.Value.String()
	}
	return overrides
}

func newLogger(out io.Writer, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
