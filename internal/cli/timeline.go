package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/talk2video/internal/audio"
	"github.com/ivlev/talk2video/internal/config"
	"github.com/ivlev/talk2video/internal/timeline"
)

func newMakeTimelineCommand(opts *Options) *cobra.Command {
	var maxLine int
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Generate or refresh the dialogue timeline from the audio takes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}

			// Keep hand edits of an existing timeline.
			var prev []timeline.Entry
			if _, err := os.Stat(cfg.Timeline); err == nil {
				prev, err = timeline.ReadFile(cfg.Timeline)
				if err != nil {
					return err
				}
				opts.Logger.Debug("loaded previous timeline", "rows", len(prev))
			}

			probe := func(path string) (float64, error) {
				return audio.Duration(cmd.Context(), path)
			}
			entries, err := timeline.Generate(cfg.Audio.Dir, probe, timeline.GenerateOptions{
				MaxLineRunes: maxLine,
				Previous:     prev,
			})
			if err != nil {
				return err
			}
			if err := timeline.WriteFile(cfg.Timeline, entries); err != nil {
				return err
			}
			fmt.Printf("[*] Wrote %s: %d rows, %.1fs total\n",
				cfg.Timeline, len(entries), timeline.Duration(entries))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxLine, "max-line", 25, "Wrap dialogue text at this many characters (0 disables)")
	return cmd
}
