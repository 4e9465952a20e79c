package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/ivlev/talk2video/internal/cache"
	"github.com/ivlev/talk2video/internal/compose"
	"github.com/ivlev/talk2video/internal/motion"
)

// imgProducer serves a fixed buffer; the fingerprint is the buffer hash.
type imgProducer struct {
	img *image.RGBA
}

func (p *imgProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	if t < 0 {
		return nil, fmt.Errorf("%w: t=%v", compose.ErrContentUnavailable, t)
	}
	return p.img, nil
}

func (p *imgProducer) Fingerprint(t float64) uint64 {
	return compose.HashBytes(p.img.Pix)
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// patternImage varies per pixel so transform mistakes show up.
func patternImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 7 % 256),
				G: uint8(y * 13 % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func centerLayer(t *testing.T, name string, img *image.RGBA, w, h int) *compose.Layer {
	t.Helper()
	l := compose.NewLayer(name, &imgProducer{img: img})
	err := l.Position().Insert(motion.Keyframe{Time: 0, Value: []float64{float64(w) / 2, float64(h) / 2}})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestFullFrameChildIsPixelIdentical(t *testing.T) {
	const w, h = 1920, 1080
	src := patternImage(w, h)
	comp := compose.NewComposition(w, h, 30)
	if err := comp.AddLayer(centerLayer(t, "full", src, w, h)); err != nil {
		t.Fatal(err)
	}

	out, err := New(nil).RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Error("composited frame differs from the child's own buffer")
	}
}

func TestOpacityKeyframeMidpoint(t *testing.T) {
	const w, h = 8, 8
	comp := compose.NewComposition(w, h, 30)
	l := centerLayer(t, "fade", solidImage(w, h, color.RGBA{255, 255, 255, 255}), w, h)
	for _, k := range []motion.Keyframe{
		{Time: 0, Value: []float64{0}, Curve: motion.Linear},
		{Time: 1, Value: []float64{1}, Curve: motion.Linear},
	} {
		if err := l.Opacity().Insert(k); err != nil {
			t.Fatal(err)
		}
	}
	if err := comp.AddLayer(l); err != nil {
		t.Fatal(err)
	}

	r := New(nil)
	out, err := r.RenderFrame(comp, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(4, 4).A; got != 128 {
		t.Errorf("alpha at opacity midpoint = %d, want 128", got)
	}

	// At t=0 the layer is invisible and skipped entirely.
	out, err = r.RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(4, 4).A; got != 0 {
		t.Errorf("alpha at zero opacity = %d, want 0", got)
	}
}

func TestMultiplyBlend(t *testing.T) {
	const w, h = 4, 4
	comp := compose.NewComposition(w, h, 30)
	back := centerLayer(t, "back", solidImage(w, h, color.RGBA{128, 128, 128, 255}), w, h)
	top := centerLayer(t, "top", solidImage(w, h, color.RGBA{128, 128, 128, 255}), w, h)
	top.SetBlend(compose.BlendMultiply)
	for _, l := range []*compose.Layer{back, top} {
		if err := comp.AddLayer(l); err != nil {
			t.Fatal(err)
		}
	}

	out, err := New(nil).RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := out.RGBAAt(1, 1)
	if got.R != 64 || got.G != 64 || got.B != 64 || got.A != 255 {
		t.Errorf("multiply blend = %v, want {64 64 64 255}", got)
	}
}

func TestAlphaMatteGatesChild(t *testing.T) {
	const w, h = 4, 4
	// Matte: opaque left half, transparent right half.
	matteImg := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			matteImg.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	comp := compose.NewComposition(w, h, 30)
	matteLayer := centerLayer(t, "matte", matteImg, w, h)
	red := centerLayer(t, "red", solidImage(w, h, color.RGBA{255, 0, 0, 255}), w, h)
	red.SetMatte(compose.MatteAlpha, 0)
	if err := comp.AddLayer(matteLayer); err != nil {
		t.Fatal(err)
	}
	if err := comp.AddLayer(red); err != nil {
		t.Fatal(err)
	}

	out, err := New(nil).RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(0, 0); got.R != 255 || got.A != 255 {
		t.Errorf("inside matte = %v, want opaque red", got)
	}
	if got := out.RGBAAt(3, 0); got.A != 0 {
		// The matte source itself must not paint either.
		t.Errorf("outside matte = %v, want transparent", got)
	}
}

func TestZeroOpacityMatteSourceMeansTransparent(t *testing.T) {
	// Assumption under test: a matte source at zero opacity contributes
	// full transparency rather than passing the child through.
	const w, h = 4, 4
	comp := compose.NewComposition(w, h, 30)
	matteLayer := centerLayer(t, "matte", solidImage(w, h, color.RGBA{255, 255, 255, 255}), w, h)
	if err := matteLayer.Opacity().Insert(motion.Keyframe{Time: 0, Value: []float64{0}}); err != nil {
		t.Fatal(err)
	}
	red := centerLayer(t, "red", solidImage(w, h, color.RGBA{255, 0, 0, 255}), w, h)
	red.SetMatte(compose.MatteAlpha, 0)
	if err := comp.AddLayer(matteLayer); err != nil {
		t.Fatal(err)
	}
	if err := comp.AddLayer(red); err != nil {
		t.Fatal(err)
	}

	out, err := New(nil).RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < w; x++ {
		if got := out.RGBAAt(x, 0).A; got != 0 {
			t.Fatalf("pixel %d alpha = %d, want fully transparent frame", x, got)
		}
	}
}

func TestLuminanceMatte(t *testing.T) {
	const w, h = 2, 2
	comp := compose.NewComposition(w, h, 30)
	// White matte passes everything, black matte nothing.
	white := centerLayer(t, "matte", solidImage(w, h, color.RGBA{255, 255, 255, 255}), w, h)
	red := centerLayer(t, "red", solidImage(w, h, color.RGBA{255, 0, 0, 255}), w, h)
	red.SetMatte(compose.MatteLuminance, 0)
	if err := comp.AddLayer(white); err != nil {
		t.Fatal(err)
	}
	if err := comp.AddLayer(red); err != nil {
		t.Fatal(err)
	}
	out, err := New(nil).RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(0, 0); got.R != 255 || got.A != 255 {
		t.Errorf("white luminance matte = %v, want opaque red", got)
	}
}

func TestSemiTransparentSourceKeepsStraightColor(t *testing.T) {
	const w, h = 4, 4
	comp := compose.NewComposition(w, h, 30)
	back := centerLayer(t, "back", solidImage(w, h, color.RGBA{0, 0, 0, 255}), w, h)
	// Straight half-coverage red; premultiplied handling would land
	// near R=64 instead of 128.
	top := centerLayer(t, "top", solidImage(w, h, color.RGBA{255, 0, 0, 128}), w, h)
	for _, l := range []*compose.Layer{back, top} {
		if err := comp.AddLayer(l); err != nil {
			t.Fatal(err)
		}
	}

	out, err := New(nil).RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := out.RGBAAt(2, 2)
	if got.R != 128 || got.G != 0 || got.B != 0 || got.A != 255 {
		t.Errorf("half-coverage red over black = %v, want {128 0 0 255}", got)
	}
}

func TestPartialAlphaMatteOverBackdrop(t *testing.T) {
	const w, h = 4, 4
	comp := compose.NewComposition(w, h, 30)
	back := centerLayer(t, "back", solidImage(w, h, color.RGBA{0, 0, 255, 255}), w, h)
	matteLayer := centerLayer(t, "matte", solidImage(w, h, color.RGBA{255, 255, 255, 128}), w, h)
	red := centerLayer(t, "red", solidImage(w, h, color.RGBA{255, 0, 0, 255}), w, h)
	red.SetMatte(compose.MatteAlpha, 0)
	for _, l := range []*compose.Layer{back, matteLayer, red} {
		if err := comp.AddLayer(l); err != nil {
			t.Fatal(err)
		}
	}

	out, err := New(nil).RenderFrame(comp, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Half-alpha matte halves the red's coverage over the blue backdrop.
	got := out.RGBAAt(1, 1)
	if got.R != 128 || got.G != 0 || got.B != 127 || got.A != 255 {
		t.Errorf("half-alpha matte over blue = %v, want {128 0 127 255}", got)
	}
}

type brokenProducer struct{}

func (brokenProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	return nil, fmt.Errorf("%w: source detached", compose.ErrContentUnavailable)
}

func (brokenProducer) Fingerprint(t float64) uint64 { return 0 }

func TestContentUnavailablePropagates(t *testing.T) {
	const w, h = 2, 2
	comp := compose.NewComposition(w, h, 30)
	if err := comp.AddLayer(compose.NewLayer("broken", brokenProducer{})); err != nil {
		t.Fatal(err)
	}
	_, err := New(nil).RenderFrame(comp, 0.5)
	if !errors.Is(err, compose.ErrContentUnavailable) {
		t.Fatalf("got %v, want ErrContentUnavailable", err)
	}
}

func TestCacheTransparency(t *testing.T) {
	const w, h = 32, 18
	build := func() *compose.Composition {
		comp := compose.NewComposition(w, h, 30)
		bg := centerLayer(t, "bg", patternImage(w, h), w, h)
		mover := compose.NewLayer("mover", &imgProducer{img: solidImage(8, 8, color.RGBA{0, 200, 0, 255})})
		for _, k := range []motion.Keyframe{
			{Time: 0, Value: []float64{4, 9}, Curve: motion.MustCurve("ease_in_out3")},
			{Time: 1, Value: []float64{28, 9}, Curve: motion.MustCurve("ease_in_out3")},
		} {
			if err := mover.Position().Insert(k); err != nil {
				t.Fatal(err)
			}
		}
		mover.SetBlend(compose.BlendScreen)
		for _, l := range []*compose.Layer{bg, mover} {
			if err := comp.AddLayer(l); err != nil {
				t.Fatal(err)
			}
		}
		return comp
	}

	comp := build()
	cached := New(cache.New(64, 64))
	plain := New(nil)

	// Out-of-order times, each queried twice so the second pass hits the
	// cache.
	times := []float64{0.5, 0.1, 0.9, 0.5, 0.1, 0.9, 0.30001, 0}
	for _, tt := range times {
		want, err := plain.RenderFrame(comp, tt)
		if err != nil {
			t.Fatal(err)
		}
		got, err := cached.RenderFrame(comp, tt)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(want.Pix, got.Pix) {
			t.Fatalf("cached render differs from uncached at t=%v", tt)
		}
	}
}

func TestInvalidationPropagatesToAncestorsOnly(t *testing.T) {
	const w, h = 8, 8
	leafImg := solidImage(w, h, color.RGBA{0, 0, 255, 255})

	inner := compose.NewComposition(w, h, 30)
	leaf := centerLayer(t, "leaf", leafImg, w, h)
	if err := inner.AddLayer(leaf); err != nil {
		t.Fatal(err)
	}

	sibling := compose.NewComposition(w, h, 30)
	sibLeaf := compose.NewLayer("sibleaf", &imgProducer{img: solidImage(2, 2, color.RGBA{255, 255, 0, 255})})
	if err := sibLeaf.Position().Insert(motion.Keyframe{Time: 0, Value: []float64{7, 7}}); err != nil {
		t.Fatal(err)
	}
	if err := sibling.AddLayer(sibLeaf); err != nil {
		t.Fatal(err)
	}

	root := compose.NewComposition(w, h, 30)
	innerLayer := compose.NewCompositionLayer("inner", inner)
	siblingLayer := compose.NewCompositionLayer("sibling", sibling)
	for _, l := range []*compose.Layer{innerLayer, siblingLayer} {
		if err := l.Position().Insert(motion.Keyframe{Time: 0, Value: []float64{w / 2, h / 2}}); err != nil {
			t.Fatal(err)
		}
		if err := root.AddLayer(l); err != nil {
			t.Fatal(err)
		}
	}

	fc := cache.New(64, 64)
	r := New(fc)
	if _, err := r.RenderFrame(root, 0); err != nil {
		t.Fatal(err)
	}

	// All three composition entries and the sibling's leaf entry exist.
	if !fc.Contains(cache.ScopeComposition, root.ID(), 0, root.Fingerprint(0)) {
		t.Fatal("root entry missing after render")
	}
	if !fc.Contains(cache.ScopeComposition, sibling.ID(), 0, sibling.Fingerprint(0)) {
		t.Fatal("sibling entry missing after render")
	}

	// Edit a keyframe on the deep leaf, then invalidate it.
	if err := leaf.Opacity().Insert(motion.Keyframe{Time: 0, Value: []float64{0.5}}); err != nil {
		t.Fatal(err)
	}
	r.Invalidate(leaf.ID())

	if fc.Contains(cache.ScopeLayer, leaf.ID(), 0, (&imgProducer{img: leafImg}).Fingerprint(0)) {
		t.Error("leaf entry survived invalidation")
	}
	if fc.Contains(cache.ScopeComposition, inner.ID(), 0, inner.Fingerprint(0)) {
		t.Error("parent composition entry still valid after leaf edit")
	}
	if fc.Contains(cache.ScopeComposition, root.ID(), 0, root.Fingerprint(0)) {
		t.Error("root composition entry still valid after leaf edit")
	}
	if !fc.Contains(cache.ScopeComposition, sibling.ID(), 0, sibling.Fingerprint(0)) {
		t.Error("sibling subtree entry was invalidated by an unrelated edit")
	}

	// Rendering again repopulates and reflects the edit.
	out, err := r.RenderFrame(root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(1, 1).A; got != 128 {
		t.Errorf("alpha after leaf edit = %d, want 128", got)
	}
}

func TestSubtreeCacheHitSkipsChildren(t *testing.T) {
	const w, h = 8, 8
	comp := compose.NewComposition(w, h, 30)
	if err := comp.AddLayer(centerLayer(t, "bg", patternImage(w, h), w, h)); err != nil {
		t.Fatal(err)
	}
	fc := cache.New(16, 16)
	r := New(fc)
	if _, err := r.RenderFrame(comp, 0.25); err != nil {
		t.Fatal(err)
	}
	h0, m0 := fc.Stats()
	if _, err := r.RenderFrame(comp, 0.25); err != nil {
		t.Fatal(err)
	}
	h1, m1 := fc.Stats()
	if h1 != h0+1 {
		t.Errorf("second render recorded %d hits, want exactly one composition hit", h1-h0)
	}
	if m1 != m0 {
		t.Errorf("second render recorded %d misses, want none", m1-m0)
	}
}
