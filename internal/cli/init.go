package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/talk2video/internal/config"
)

func newInitCommand(opts *Options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project skeleton in the current directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.ConfigPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", opts.ConfigPath)
			}
			for _, d := range []string{"audio", "outputs", "assets"} {
				if err := os.MkdirAll(d, 0o755); err != nil {
					return err
				}
			}
			if err := config.Default().Save(opts.ConfigPath); err != nil {
				return err
			}
			fmt.Printf("[*] Wrote %s\n", opts.ConfigPath)
			fmt.Println("[*] Put numbered takes (001_speaker.wav + 001_speaker.txt) into audio/")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}
