// Package source implements the content producers feeding leaf layers:
// static images, rasterized slide pages, character sprites, styled text,
// QR overlays and solid fills. Producers complete synchronously and
// report missing content as compose.ErrContentUnavailable.
package source

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/ivlev/talk2video/internal/compose"
)

// toRGBA returns img as *image.RGBA with a zero origin, holding straight
// (un-premultiplied) channel values. An *image.RGBA input already carries
// the pipeline's straight convention and is reused when its layout
// matches; everything else is converted through NRGBA, since drawing a
// decoded NRGBA straight into an RGBA buffer would premultiply its
// semi-transparent pixels.
func toRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok &&
		rgba.Stride == bounds.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	n := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(n, n.Bounds(), img, bounds.Min, draw.Src)
	// NRGBA and RGBA share the byte layout, only the alpha convention
	// differs; the pipeline reads these bytes as straight values.
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}

// checkTime rejects times a producer cannot represent.
func checkTime(t float64) error {
	if t < 0 {
		return fmt.Errorf("%w: negative time %v", compose.ErrContentUnavailable, t)
	}
	return nil
}
