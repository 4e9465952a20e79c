package cli

import (
	"fmt"
	"hash/fnv"
	"image"
	"os"
	"sort"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"github.com/ivlev/talk2video/internal/audio"
	"github.com/ivlev/talk2video/internal/cache"
	"github.com/ivlev/talk2video/internal/config"
	"github.com/ivlev/talk2video/internal/render"
	"github.com/ivlev/talk2video/internal/subtitle"
	"github.com/ivlev/talk2video/internal/system"
	"github.com/ivlev/talk2video/internal/timeline"
	"github.com/ivlev/talk2video/internal/video"
)

func newMakeVideoCommand(opts *Options) *cobra.Command {
	var (
		workers int
		encoder string
		quality int
		noBGM   bool
	)
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Render the final video: mix audio, build subtitles, composite and encode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			system.InitResourceLimits()

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			entries, err := timeline.ReadFile(cfg.Timeline)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("timeline %s is empty, run 'talk2video make timeline' first", cfg.Timeline)
			}
			duration := timeline.Duration(entries)
			ctx := cmd.Context()

			fmt.Printf("[*] Mixing audio: %d takes", len(entries))
			if cfg.Audio.BGMPath != "" && !noBGM {
				fmt.Printf(" + bgm at %.0fdB", cfg.Audio.BGMVolumeDB)
			}
			fmt.Println()
			wavs, err := audio.DialogueFiles(cfg.Audio.Dir)
			if err != nil {
				return err
			}
			mixOpts := audio.MixOptions{}
			if !noBGM {
				mixOpts = audio.MixOptions{
					BGMPath:     cfg.Audio.BGMPath,
					BGMVolumeDB: cfg.Audio.BGMVolumeDB,
					FadeIn:      cfg.Audio.FadeInDuration,
					FadeOut:     cfg.Audio.FadeOutDuration,
				}
			}
			if err := audio.Mix(ctx, wavs, cfg.Audio.Output, mixOpts); err != nil {
				return err
			}

			fmt.Printf("[*] Writing subtitles: %s\n", cfg.Video.SubtitlePath)
			styles := speakerStyles(entries, cfg.Font)
			err = subtitle.WriteASSFile(cfg.Video.SubtitlePath, timeline.Subtitles(entries),
				cfg.Video.Width, cfg.Video.Height, styles...)
			if err != nil {
				return err
			}

			scene, err := timeline.BuildScene(cfg, entries)
			if err != nil {
				return err
			}

			if workers <= 0 {
				workers = system.RenderWorkers()
			}
			frameBytes := cfg.Video.Width * cfg.Video.Height * 4
			budget := system.CacheBudget(frameBytes, 16, 512)
			fc := cache.New(budget, budget/4)
			opts.Logger.Debug("render setup", "workers", workers, "cache_entries", budget)

			if encoder == "" {
				encoder = video.BestH264Encoder()
			}
			session, err := video.Start(ctx, cfg.Video.TempPath, video.EncodeOptions{
				Width:        cfg.Video.Width,
				Height:       cfg.Video.Height,
				FPS:          cfg.Video.FPS,
				AudioPath:    cfg.Audio.Output,
				SubtitlePath: cfg.Video.SubtitlePath,
				Encoder:      encoder,
				Quality:      quality,
			})
			if err != nil {
				return err
			}

			total := render.FrameCount(cfg.Video.FPS, duration)
			fmt.Printf("[*] Rendering %d frames at %dx%d, %d workers, encoder %s\n",
				total, cfg.Video.Width, cfg.Video.Height, workers, encoder)
			startedAt := time.Now()

			compositor := render.New(fc)
			err = compositor.RenderSequence(ctx, scene, cfg.Video.FPS, duration, workers,
				func(i int, frame *image.RGBA) error {
					if err := session.WriteFrame(frame); err != nil {
						return err
					}
					if (i+1)%100 == 0 || i+1 == total {
						fmt.Printf("[*] %d/%d frames\n", i+1, total)
					}
					return nil
				})
			if err != nil {
				session.Abort()
				return err
			}
			if err := session.Close(); err != nil {
				return err
			}

			// The encoder already muxed audio and burned subtitles, the
			// temp file only needs its final name.
			if cfg.Video.TempPath != cfg.Output {
				if err := os.Rename(cfg.Video.TempPath, cfg.Output); err != nil {
					return err
				}
			}

			hits, misses := fc.Stats()
			opts.Logger.Debug("cache stats", "hits", hits, "misses", misses)
			fmt.Printf("[+++] Done in %s: %s\n", time.Since(startedAt).Round(time.Second), cfg.Output)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Render workers (0 = physical cores)")
	cmd.Flags().StringVar(&encoder, "encoder", "", "ffmpeg video encoder (default: best available H.264)")
	cmd.Flags().IntVar(&quality, "quality", 0, "Encoder quality, CRF-like (0 = default)")
	cmd.Flags().BoolVar(&noBGM, "no-bgm", false, "Skip background music")
	return cmd
}

// speakerStyles builds one ASS style per speaker, each with a stable
// outline color derived from the name so reruns look identical.
func speakerStyles(entries []timeline.Entry, font string) []subtitle.Style {
	def := subtitle.DefaultStyle()
	if font != "" {
		def.FontName = font
	}
	styles := []subtitle.Style{def}

	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if e.Character != "" && !seen[e.Character] {
			seen[e.Character] = true
			names = append(names, e.Character)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		s := def
		s.Name = name
		s.Outline = 5
		s.Shadow = 3
		s.OutlineColor = subtitle.ASSColor(speakerColor(name))
		s.BackColor = "&HA0000000"
		styles = append(styles, s)
	}
	return styles
}

func speakerColor(name string) colorful.Color {
	h := fnv.New32a()
	h.Write([]byte(name))
	hue := float64(h.Sum32() % 360)
	return colorful.Hsv(hue, 0.55, 0.65)
}
