package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/ivlev/talk2video/internal/compose"
	"github.com/ivlev/talk2video/internal/motion"
)

func TestFrameCount(t *testing.T) {
	cases := []struct {
		fps, duration float64
		want          int
	}{
		{30, 1, 30},
		{30, 0.5, 15},
		{24, 2.5, 60},
		{29.97, 10, 300},
		{30, 0, 0},
	}
	for _, c := range cases {
		if got := FrameCount(c.fps, c.duration); got != c.want {
			t.Errorf("FrameCount(%v, %v) = %d, want %d", c.fps, c.duration, got, c.want)
		}
	}
}

func TestRenderSequenceOrderAndContent(t *testing.T) {
	const w, h = 16, 9
	comp := compose.NewComposition(w, h, 30)
	mover := compose.NewLayer("mover", &imgProducer{img: solidImage(4, 4, color.RGBA{255, 0, 0, 255})})
	for _, k := range []motion.Keyframe{
		{Time: 0, Value: []float64{2, 4}, Curve: motion.Linear},
		{Time: 1, Value: []float64{14, 4}, Curve: motion.Linear},
	} {
		if err := mover.Position().Insert(k); err != nil {
			t.Fatal(err)
		}
	}
	if err := comp.AddLayer(mover); err != nil {
		t.Fatal(err)
	}

	r := New(nil)
	const fps, duration = 30.0, 0.5
	n := FrameCount(fps, duration)

	var mu sync.Mutex
	frames := make([]*image.RGBA, 0, n)
	err := r.RenderSequence(context.Background(), comp, fps, duration, 4, func(i int, frame *image.RGBA) error {
		mu.Lock()
		defer mu.Unlock()
		if i != len(frames) {
			t.Errorf("frame %d delivered out of order (have %d)", i, len(frames))
		}
		frames = append(frames, frame)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != n {
		t.Fatalf("delivered %d frames, want %d", len(frames), n)
	}

	// Each delivered frame matches a direct single-frame render.
	for _, i := range []int{0, n / 2, n - 1} {
		want, err := r.RenderFrame(comp, float64(i)/fps)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(frames[i].Pix, want.Pix) {
			t.Errorf("frame %d differs from a direct render at the same time", i)
		}
	}
}

func TestRenderSequenceEmitErrorStops(t *testing.T) {
	const w, h = 8, 8
	comp := compose.NewComposition(w, h, 30)
	if err := comp.AddLayer(centerLayer(t, "bg", patternImage(w, h), w, h)); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("sink full")
	delivered := 0
	err := New(nil).RenderSequence(context.Background(), comp, 30, 2, 4, func(i int, frame *image.RGBA) error {
		delivered++
		if i == 3 {
			return wantErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want the emit error", err)
	}
	if delivered != 4 {
		t.Errorf("emit called %d times, want 4 (stops after the failing frame)", delivered)
	}
}

func TestRenderSequenceContextCancel(t *testing.T) {
	const w, h = 8, 8
	comp := compose.NewComposition(w, h, 30)
	if err := comp.AddLayer(centerLayer(t, "bg", patternImage(w, h), w, h)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	err := New(nil).RenderSequence(ctx, comp, 30, 10, 2, func(i int, frame *image.RGBA) error {
		if i == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestRenderSequenceRenderErrorPropagates(t *testing.T) {
	const w, h = 4, 4
	comp := compose.NewComposition(w, h, 30)
	if err := comp.AddLayer(compose.NewLayer("broken", brokenProducer{})); err != nil {
		t.Fatal(err)
	}
	err := New(nil).RenderSequence(context.Background(), comp, 30, 1, 4, func(i int, frame *image.RGBA) error {
		t.Error("emit called for a frame that failed to render")
		return nil
	})
	if !errors.Is(err, compose.ErrContentUnavailable) {
		t.Fatalf("got %v, want ErrContentUnavailable", err)
	}
}
