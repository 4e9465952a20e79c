// Package cli defines the talk2video command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/talk2video/internal/logging"
)

const defaultConfigPath = "config.yaml"

// Options stores the global flags shared between commands.
type Options struct {
	ConfigPath string
	Logger     *slog.Logger
}

// Execute builds the root command and runs it with the given args.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.New(os.Stderr, slog.LevelInfo)
	}
	opts := &Options{ConfigPath: defaultConfigPath, Logger: logger}

	root := newRootCommand(opts)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "talk2video",
		Short:         "talk2video renders narrated slide videos from audio takes and a PDF",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := logging.ParseLevel(cmd.Flag("log-level").Value.String())
			opts.Logger = logging.New(os.Stderr, level)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath, "Path to the project config")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newInitCommand(opts),
		newMakeCommand(opts),
		newPreviewCommand(opts),
	)
	return cmd
}

func newMakeCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "make",
		Short: "Generate project artifacts",
	}
	cmd.AddCommand(
		newMakeTimelineCommand(opts),
		newMakeVideoCommand(opts),
	)
	return cmd
}
