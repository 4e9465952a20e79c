// Package render walks a composition tree and produces pixel frames.
// Rendering is a pure function of (scene graph, time) aside from the
// frame cache, which only short-circuits work and never changes results.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/talk2video/internal/cache"
	"github.com/ivlev/talk2video/internal/compose"
	"github.com/ivlev/talk2video/internal/system"
)

// Compositor renders composition trees. It is the sole writer into its
// FrameCache; a nil cache disables caching without changing output.
type Compositor struct {
	cache *cache.FrameCache
}

// New creates a compositor using the given cache (nil for none).
func New(c *cache.FrameCache) *Compositor {
	return &Compositor{cache: c}
}

// Invalidate drops every cached result of a node, used after structural
// or keyframe edits when fingerprint-based reuse is not wanted to linger.
func (r *Compositor) Invalidate(node compose.NodeID) {
	r.cache.Invalidate(node)
}

// RenderFrame renders the root composition at time t into a fresh RGBA
// buffer of its canvas size.
func (r *Compositor) RenderFrame(root *compose.Composition, t float64) (*image.RGBA, error) {
	return r.renderComposition(root, t)
}

// renderComposition returns the composited subtree at local time t,
// probing the composition-scope cache first so an unchanged subtree skips
// visiting children entirely.
func (r *Compositor) renderComposition(c *compose.Composition, t float64) (*image.RGBA, error) {
	fp := c.Fingerprint(t)
	return r.cache.Render(cache.ScopeComposition, c.ID(), t, fp, func() (*image.RGBA, error) {
		return r.composite(c, t)
	})
}

func (r *Compositor) composite(c *compose.Composition, t float64) (*image.RGBA, error) {
	size := c.Size()
	canvas := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))

	// A layer consumed as a matte source is not painted directly.
	matteSources := map[compose.NodeID]bool{}
	for _, l := range c.Layers() {
		if l.Matte() == compose.MatteNone {
			continue
		}
		if src := c.MatteSourceFor(l); src != nil {
			matteSources[src.ID()] = true
		}
	}

	for _, l := range c.Layers() {
		if matteSources[l.ID()] {
			continue
		}
		a := l.AppearanceAt(t)
		if !a.Visible {
			continue
		}
		src, err := r.layerContent(c, l, t)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Name(), err)
		}

		scratch := system.GetImage(canvas.Rect)
		drawTransformed(scratch, src, a)

		if l.Matte() != compose.MatteNone {
			ok, err := r.applyMatte(c, l, t, scratch)
			if err != nil {
				system.PutImage(scratch)
				return nil, fmt.Errorf("layer %q matte: %w", l.Name(), err)
			}
			if !ok {
				// Matte source missing or invisible: the matte
				// contributes full transparency.
				system.PutImage(scratch)
				continue
			}
		}

		blendInto(canvas, scratch, l.Blend(), a.Opacity)
		system.PutImage(scratch)
	}
	return canvas, nil
}

// layerContent returns the layer's own buffer at its natural size: the
// producer's frame for leaves, the composited canvas for nested
// compositions. Leaf results are cached in the layer scope keyed by the
// producer's content fingerprint.
func (r *Compositor) layerContent(c *compose.Composition, l *compose.Layer, t float64) (*image.RGBA, error) {
	lt := l.LocalTime(t)
	if l.IsComposition() {
		return r.renderComposition(l.Composition(), lt)
	}
	p := l.Producer()
	if p == nil {
		return nil, fmt.Errorf("%w: layer has no content producer", compose.ErrContentUnavailable)
	}
	return r.cache.Render(cache.ScopeLayer, l.ID(), t, p.Fingerprint(lt), func() (*image.RGBA, error) {
		return p.Frame(lt, c.Size())
	})
}

// applyMatte multiplies scratch's alpha by the matte source's channel,
// rendered in composition space. Returns false when the source is absent
// or invisible at t, in which case the layer contributes nothing.
func (r *Compositor) applyMatte(c *compose.Composition, l *compose.Layer, t float64, scratch *image.RGBA) (bool, error) {
	ms := c.MatteSourceFor(l)
	if ms == nil {
		return false, nil
	}
	msa := ms.AppearanceAt(t)
	if !msa.Visible {
		return false, nil
	}
	src, err := r.layerContent(c, ms, t)
	if err != nil {
		return false, err
	}
	matte := system.GetImage(scratch.Rect)
	defer system.PutImage(matte)
	drawTransformed(matte, src, msa)

	mode := l.Matte()
	b := scratch.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := matte.RGBAAt(x, y)
			var g float64
			switch mode {
			case compose.MatteAlpha:
				g = float64(m.A) / 255
			case compose.MatteLuminance:
				// BT.601 luma of the straight color, gated by the
				// matte's own coverage.
				luma := (0.299*float64(m.R) + 0.587*float64(m.G) + 0.114*float64(m.B)) / 255
				g = luma * float64(m.A) / 255
			}
			g *= msa.Opacity
			if g >= 1 {
				continue
			}
			p := scratch.RGBAAt(x, y)
			p.A = uint8(float64(p.A)*g + 0.5)
			scratch.SetRGBA(x, y, p)
		}
	}
	return true, nil
}

// drawTransformed maps src into dst space: the source center offset by
// the anchor lands on the position, after scale and rotation. dst must be
// transparent on entry.
func drawTransformed(dst, src *image.RGBA, a compose.Appearance) {
	sw := float64(src.Bounds().Dx())
	sh := float64(src.Bounds().Dy())
	cx := sw/2 + a.Anchor[0]
	cy := sh/2 + a.Anchor[1]

	if a.Rotation == 0 && a.Scale == [2]float64{1, 1} && isIntegral(a.Position[0]-cx) && isIntegral(a.Position[1]-cy) {
		// Axis-aligned unscaled placement copies pixels exactly; resampling
		// would soften content that never moved off the pixel grid.
		off := image.Pt(int(math.Round(a.Position[0]-cx)), int(math.Round(a.Position[1]-cy)))
		rect := src.Bounds().Sub(src.Bounds().Min).Add(off)
		xdraw.Draw(dst, rect, src, src.Bounds().Min, xdraw.Src)
		return
	}

	sin, cos := math.Sincos(a.Rotation * math.Pi / 180)
	m00 := cos * a.Scale[0]
	m01 := -sin * a.Scale[1]
	m10 := sin * a.Scale[0]
	m11 := cos * a.Scale[1]
	tx := a.Position[0] - (m00*cx + m01*cy)
	ty := a.Position[1] - (m10*cx + m11*cy)
	// Both buffers hold straight alpha, so the resampler must see them
	// as NRGBA; x/image's RGBA fast paths would read the bytes as
	// premultiplied. The layouts are identical, only the view changes.
	srcN := &image.NRGBA{Pix: src.Pix, Stride: src.Stride, Rect: src.Rect}
	dstN := &image.NRGBA{Pix: dst.Pix, Stride: dst.Stride, Rect: dst.Rect}
	xdraw.BiLinear.Transform(dstN, f64.Aff3{m00, m01, tx, m10, m11, ty}, srcN, srcN.Bounds(), xdraw.Over, nil)
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v)
}

// blendInto composites src over dst with the given blend mode and layer
// opacity. Both buffers hold straight (un-premultiplied) alpha; that
// convention holds across the whole pipeline.
func blendInto(dst, src *image.RGBA, mode compose.BlendMode, opacity float64) {
	b := dst.Rect.Intersect(src.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s := src.RGBAAt(x, y)
			sa := float64(s.A) / 255 * opacity
			if sa <= 0 {
				continue
			}
			d := dst.RGBAAt(x, y)
			ba := float64(d.A) / 255
			ao := sa + ba*(1-sa)
			if ao <= 0 {
				continue
			}
			var out color.RGBA
			sc := [3]float64{float64(s.R) / 255, float64(s.G) / 255, float64(s.B) / 255}
			bc := [3]float64{float64(d.R) / 255, float64(d.G) / 255, float64(d.B) / 255}
			var co [3]float64
			for i := 0; i < 3; i++ {
				// Source color graded toward the blend result by how much
				// backdrop exists underneath (W3C compositing model).
				csp := (1-ba)*sc[i] + ba*mode.Apply(bc[i], sc[i])
				co[i] = (sa*csp + ba*(1-sa)*bc[i]) / ao
			}
			out.R = clampByte(co[0])
			out.G = clampByte(co[1])
			out.B = clampByte(co[2])
			out.A = clampByte(ao)
			dst.SetRGBA(x, y, out)
		}
	}
}

func clampByte(v float64) uint8 {
	v = v*255 + 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
