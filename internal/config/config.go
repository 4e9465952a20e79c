// Package config loads and writes the project file (config.yaml) that
// describes a talk video: audio inputs, output geometry and the layer
// stack the scene is built from.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Audio    Audio  `yaml:"audio"`
	Video    Video  `yaml:"video"`
	Timeline string `yaml:"timeline_path"`
	Output   string `yaml:"dst_video_path"`
	Font     string `yaml:"font,omitempty"`
}

type Audio struct {
	Dir             string  `yaml:"audio_dir"`
	BGMPath         string  `yaml:"bgm_path,omitempty"`
	BGMVolumeDB     float64 `yaml:"bgm_volume"`
	FadeInDuration  float64 `yaml:"fadein_duration"`
	FadeOutDuration float64 `yaml:"fadeout_duration"`
	Output          string  `yaml:"dst_audio_path"`
}

type Video struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	FPS          float64 `yaml:"fps"`
	SubtitlePath string  `yaml:"subtitle_path"`
	TempPath     string  `yaml:"dst_tmp_video_path"`
	Layers       []Layer `yaml:"layers"`
}

// Layer is one entry of the scene stack, bottom first. Which fields
// apply depends on Type.
type Layer struct {
	Type     string     `yaml:"type"`
	Name     string     `yaml:"name"`
	Position [2]float64 `yaml:"position"`
	Anchor   [2]float64 `yaml:"anchor_point"`
	Scale    float64    `yaml:"scale"`
	Opacity  *float64   `yaml:"opacity,omitempty"`

	// type: image
	ImagePath string `yaml:"img_path,omitempty"`

	// type: slide
	SlidePath string  `yaml:"slide_path,omitempty"`
	SlideDPI  float64 `yaml:"slide_dpi,omitempty"`

	// type: character
	CharacterDir   string  `yaml:"character_dir,omitempty"`
	CharacterName  string  `yaml:"character_name,omitempty"`
	InitialStatus  string  `yaml:"initial_status,omitempty"`
	BlinkPerMinute float64 `yaml:"blink_per_minute,omitempty"`
	BlinkDuration  float64 `yaml:"blink_duration,omitempty"`

	// type: solid
	Color    string `yaml:"color,omitempty"`
	Gradient string `yaml:"gradient_to,omitempty"`

	// type: text
	Text     string  `yaml:"text,omitempty"`
	FontPath string  `yaml:"font_path,omitempty"`
	FontSize float64 `yaml:"font_size,omitempty"`

	// type: qr
	QRContent string `yaml:"qr_content,omitempty"`
	QRSize    int    `yaml:"qr_size,omitempty"`

	// type: composition. Children render onto their own canvas
	// (defaulting to the video size) which is then placed like any
	// other layer.
	Width  int     `yaml:"width,omitempty"`
	Height int     `yaml:"height,omitempty"`
	Layers []Layer `yaml:"layers,omitempty"`
}

var layerTypes = map[string]bool{
	"image":       true,
	"slide":       true,
	"character":   true,
	"solid":       true,
	"text":        true,
	"qr":          true,
	"composition": true,
}

// Default returns the config written by "talk2video init".
func Default() *Config {
	return &Config{
		Audio: Audio{
			Dir:             "audio",
			BGMVolumeDB:     -20,
			FadeOutDuration: 5,
			Output:          "outputs/dialogue.wav",
		},
		Video: Video{
			Width:        1920,
			Height:       1080,
			FPS:          30,
			SubtitlePath: "outputs/subtitle.ass",
			TempPath:     "outputs/video_noaudio.mp4",
			Layers: []Layer{
				{
					Type:      "image",
					Name:      "bg",
					ImagePath: "assets/bg.png",
					Position:  [2]float64{960, 540},
					Scale:     1.0,
				},
				{
					Type:      "slide",
					Name:      "slide",
					SlidePath: "slide.pdf",
					Position:  [2]float64{960, 421},
					Scale:     0.71,
				},
				{
					Type:           "character",
					Name:           "zunda",
					CharacterDir:   "assets/character/zunda",
					CharacterName:  "zunda",
					InitialStatus:  "n",
					BlinkPerMinute: 3,
					BlinkDuration:  0.2,
					Position:       [2]float64{1779, 878},
					Scale:          0.7,
				},
			},
		},
		Timeline: "outputs/timeline.csv",
		Output:   "outputs/video.mp4",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("invalid video size %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("invalid fps %v", c.Video.FPS)
	}
	if c.Timeline == "" {
		return fmt.Errorf("timeline_path is required")
	}
	if c.Output == "" {
		return fmt.Errorf("dst_video_path is required")
	}
	return validateLayers(c.Video.Layers)
}

func validateLayers(layers []Layer) error {
	seen := map[string]bool{}
	for i, l := range layers {
		if !layerTypes[l.Type] {
			return fmt.Errorf("layer %d: unknown type %q", i, l.Type)
		}
		if l.Name == "" {
			return fmt.Errorf("layer %d: name is required", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("layer %d: duplicate name %q", i, l.Name)
		}
		seen[l.Name] = true
		if l.Type == "composition" {
			if len(l.Layers) == 0 {
				return fmt.Errorf("layer %d: composition %q has no children", i, l.Name)
			}
			if err := validateLayers(l.Layers); err != nil {
				return fmt.Errorf("layer %q: %w", l.Name, err)
			}
		}
	}
	return nil
}
