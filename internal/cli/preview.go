package cli

import (
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/talk2video/internal/config"
	"github.com/ivlev/talk2video/internal/render"
	"github.com/ivlev/talk2video/internal/timeline"
)

func newPreviewCommand(opts *Options) *cobra.Command {
	var (
		at  float64
		out string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a single frame to a PNG for checking the layout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			entries, err := timeline.ReadFile(cfg.Timeline)
			if err != nil {
				return err
			}
			scene, err := timeline.BuildScene(cfg, entries)
			if err != nil {
				return err
			}

			frame, err := render.New(nil).RenderFrame(scene, at)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := png.Encode(f, frame); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("[*] Wrote %s (t=%.2fs)\n", out, at)
			return nil
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "Time of the frame in seconds")
	cmd.Flags().StringVar(&out, "out", "preview.png", "Output PNG path")
	return cmd
}
