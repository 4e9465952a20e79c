package source

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/talk2video/internal/compose"
)

// TextAlignment positions lines inside the rendered text block.
type TextAlignment int

const (
	AlignLeft TextAlignment = iota
	AlignCenter
	AlignRight
)

// ParseTextAlignment resolves an alignment name from a scene description.
func ParseTextAlignment(s string) (TextAlignment, error) {
	switch s {
	case "left":
		return AlignLeft, nil
	case "center":
		return AlignCenter, nil
	case "right":
		return AlignRight, nil
	}
	return 0, fmt.Errorf("unknown text alignment: %q", s)
}

// TextStyle configures a text layer. Styling is static per layer; animated
// properties live on the layer's attribute timelines.
type TextStyle struct {
	FontPath    string
	Size        float64 // points at 72 dpi
	Color       color.RGBA
	Alignment   TextAlignment
	LineSpacing float64 // multiple of the face height, 0 means 1.0
}

// TextProducer rasterizes a static multi-line string once and serves the
// same buffer for every frame.
type TextProducer struct {
	text  string
	style TextStyle

	once sync.Once
	img  *image.RGBA
	err  error
}

// NewTextProducer creates a producer rendering text with the given style.
func NewTextProducer(text string, style TextStyle) *TextProducer {
	if style.LineSpacing <= 0 {
		style.LineSpacing = 1.0
	}
	return &TextProducer{text: text, style: style}
}

func (p *TextProducer) render() {
	data, err := os.ReadFile(p.style.FontPath)
	if err != nil {
		p.err = fmt.Errorf("%w: reading font: %v", compose.ErrContentUnavailable, err)
		return
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		p.err = fmt.Errorf("%w: parsing font %s: %v", compose.ErrContentUnavailable, p.style.FontPath, err)
		return
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    p.style.Size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		p.err = fmt.Errorf("%w: sizing font: %v", compose.ErrContentUnavailable, err)
		return
	}
	defer face.Close()

	lines := strings.Split(p.text, "\n")
	metrics := face.Metrics()
	lineHeight := int(float64(metrics.Height.Ceil()) * p.style.LineSpacing)

	widths := make([]int, len(lines))
	maxWidth := 1
	for i, line := range lines {
		widths[i] = font.MeasureString(face, line).Ceil()
		if widths[i] > maxWidth {
			maxWidth = widths[i]
		}
	}
	height := lineHeight * len(lines)
	if height < 1 {
		height = 1
	}

	// Glyphs are drawn into an NRGBA buffer so the antialiased edge
	// coverage ends up as straight alpha, matching the compositor's
	// convention. An RGBA destination would premultiply the edges.
	img := image.NewNRGBA(image.Rect(0, 0, maxWidth, height))
	c := p.style.Color
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}),
		Face: face,
	}
	for i, line := range lines {
		x := 0
		switch p.style.Alignment {
		case AlignCenter:
			x = (maxWidth - widths[i]) / 2
		case AlignRight:
			x = maxWidth - widths[i]
		}
		d.Dot = fixed.P(x, i*lineHeight+metrics.Ascent.Ceil())
		d.DrawString(line)
	}
	p.img = &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
}

// Frame returns the rasterized text block.
func (p *TextProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}
	p.once.Do(p.render)
	if p.err != nil {
		return nil, p.err
	}
	return p.img, nil
}

// Fingerprint hashes the text and its style; it does not depend on t.
func (p *TextProducer) Fingerprint(t float64) uint64 {
	c := p.style.Color
	return compose.NewFingerprinter().
		Str("text").Str(p.text).Str(p.style.FontPath).
		F64(p.style.Size).F64(p.style.LineSpacing).
		U64(uint64(p.style.Alignment)).
		U64(uint64(c.R)<<24 | uint64(c.G)<<16 | uint64(c.B)<<8 | uint64(c.A)).
		Sum()
}
