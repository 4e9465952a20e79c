package source

import (
	"image"
	"image/color"
	"math"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/talk2video/internal/compose"
)

// SolidProducer fills its canvas with a single color or a vertical
// gradient, used for backgrounds behind slides and characters. Gradients
// blend in Luv so the midpoints stay perceptually even.
type SolidProducer struct {
	top    colorful.Color
	bottom colorful.Color
	width  int
	height int

	once sync.Once
	img  *image.RGBA
}

// NewSolidProducer creates a flat fill.
func NewSolidProducer(c colorful.Color, width, height int) *SolidProducer {
	return &SolidProducer{top: c, bottom: c, width: width, height: height}
}

// NewGradientProducer creates a vertical top→bottom gradient fill.
func NewGradientProducer(top, bottom colorful.Color, width, height int) *SolidProducer {
	return &SolidProducer{top: top, bottom: bottom, width: width, height: height}
}

// ParseHexColor resolves a "#rrggbb" scene-description color.
func ParseHexColor(s string) (colorful.Color, error) {
	return colorful.Hex(s)
}

func (p *SolidProducer) render() {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	flat := p.top == p.bottom
	for y := 0; y < p.height; y++ {
		c := p.top
		if !flat && p.height > 1 {
			c = p.top.BlendLuv(p.bottom, float64(y)/float64(p.height-1)).Clamped()
		}
		r, g, b := c.RGB255()
		row := color.RGBA{R: r, G: g, B: b, A: 255}
		for x := 0; x < p.width; x++ {
			img.SetRGBA(x, y, row)
		}
	}
	p.img = img
}

// Frame returns the fill at its configured size.
func (p *SolidProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}
	p.once.Do(p.render)
	return p.img, nil
}

// Fingerprint hashes the gradient endpoints and canvas size.
func (p *SolidProducer) Fingerprint(t float64) uint64 {
	return compose.NewFingerprinter().Str("solid").
		U64(math.Float64bits(p.top.R)).U64(math.Float64bits(p.top.G)).U64(math.Float64bits(p.top.B)).
		U64(math.Float64bits(p.bottom.R)).U64(math.Float64bits(p.bottom.G)).U64(math.Float64bits(p.bottom.B)).
		U64(uint64(p.width)).U64(uint64(p.height)).
		Sum()
}
