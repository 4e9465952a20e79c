package render

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/talk2video/internal/compose"
)

// FrameCount returns the number of frames a sequence of the given length
// holds, rounding to whole frames the way segment durations are aligned
// for encoding.
func FrameCount(fps, duration float64) int {
	if fps <= 0 || duration <= 0 {
		return 0
	}
	return int(math.Round(duration * fps))
}

type frameResult struct {
	img *image.RGBA
	err error
}

// RenderSequence renders frames at t = 0, 1/fps, 2/fps, … and hands them
// to emit in presentation order. Frames are computed in parallel across
// the given number of workers; no frame depends on its predecessor, so
// the sequence is restartable at any index. Cancel via ctx or by
// returning an error from emit.
func (r *Compositor) RenderSequence(ctx context.Context, root *compose.Composition, fps, duration float64, workers int, emit func(index int, frame *image.RGBA) error) error {
	n := FrameCount(fps, duration)
	if n == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// Ordered hand-off: the feeder publishes one buffered result channel
	// per frame, workers fill them, the consumer drains them in order.
	order := make(chan chan frameResult, workers)
	go func() {
		defer close(order)
		for i := 0; i < n; i++ {
			ch := make(chan frameResult, 1)
			select {
			case order <- ch:
			case <-gctx.Done():
				return
			}
			t := float64(i) / fps
			g.Go(func() error {
				img, err := r.RenderFrame(root, t)
				ch <- frameResult{img: img, err: err}
				return err
			})
		}
	}()

	var emitErr error
	i := 0
	for ch := range order {
		res := <-ch
		if emitErr != nil {
			continue // draining after failure
		}
		if res.err != nil {
			emitErr = fmt.Errorf("frame %d: %w", i, res.err)
			cancel()
		} else if err := emit(i, res.img); err != nil {
			emitErr = err
			cancel()
		}
		i++
	}

	if err := g.Wait(); err != nil && emitErr == nil {
		emitErr = err
	}
	if emitErr != nil {
		return emitErr
	}
	return ctx.Err()
}
