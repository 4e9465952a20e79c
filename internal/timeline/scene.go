package timeline

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"sort"

	"github.com/ivlev/talk2video/internal/compose"
	"github.com/ivlev/talk2video/internal/config"
	"github.com/ivlev/talk2video/internal/motion"
	"github.com/ivlev/talk2video/internal/source"
	"github.com/ivlev/talk2video/internal/subtitle"
)

const actionDuration = 1.0

// BuildScene assembles the composition described by the project config,
// driven by the dialogue timeline: slide flips, character statuses,
// blinks and per-line actions all become keyframes on the layer stack.
func BuildScene(cfg *config.Config, entries []Entry) (*compose.Composition, error) {
	comp := compose.NewComposition(cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS)
	if err := addLayers(comp, cfg, cfg.Video.Layers, entries); err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Action == "" {
			continue
		}
		l := findLayer(comp, e.Character)
		if l == nil {
			return nil, fmt.Errorf("timeline: action %q targets unknown layer %q", e.Action, e.Character)
		}
		if err := applyAction(l, e.Action, e.Start); err != nil {
			return nil, err
		}
	}
	return comp, nil
}

func addLayers(comp *compose.Composition, cfg *config.Config, specs []config.Layer, entries []Entry) error {
	duration := Duration(entries)
	for i := range specs {
		spec := &specs[i]
		var l *compose.Layer

		if spec.Type == "composition" {
			w, h := spec.Width, spec.Height
			if w == 0 || h == 0 {
				w, h = cfg.Video.Width, cfg.Video.Height
			}
			sub := compose.NewComposition(w, h, cfg.Video.FPS)
			if err := addLayers(sub, cfg, spec.Layers, entries); err != nil {
				return err
			}
			l = compose.NewCompositionLayer(spec.Name, sub)
		} else {
			producer, err := buildProducer(cfg, spec, entries, duration)
			if err != nil {
				return fmt.Errorf("timeline: layer %q: %w", spec.Name, err)
			}
			l = compose.NewLayer(spec.Name, producer)
		}

		if err := applyPlacement(l, spec); err != nil {
			return fmt.Errorf("timeline: layer %q: %w", spec.Name, err)
		}
		if err := comp.AddLayer(l); err != nil {
			return fmt.Errorf("timeline: layer %q: %w", spec.Name, err)
		}
	}
	return nil
}

// findLayer searches the whole tree, depth first, since action targets
// may sit inside nested compositions.
func findLayer(comp *compose.Composition, name string) *compose.Layer {
	for _, l := range comp.Layers() {
		if l.Name() == name {
			return l
		}
		if l.IsComposition() {
			if found := findLayer(l.Composition(), name); found != nil {
				return found
			}
		}
	}
	return nil
}

func buildProducer(cfg *config.Config, spec *config.Layer, entries []Entry, duration float64) (compose.Producer, error) {
	switch spec.Type {
	case "image":
		return source.NewImageProducer(spec.ImagePath), nil

	case "slide":
		dpi := spec.SlideDPI
		if dpi == 0 {
			dpi = 150
		}
		return source.NewSlideProducer(spec.SlidePath, dpi, slidePageFunc(entries))

	case "character":
		status, err := characterStatus(spec, entries, duration)
		if err != nil {
			return nil, err
		}
		return source.NewCharacterProducer(spec.CharacterDir, status), nil

	case "solid":
		c, err := source.ParseHexColor(spec.Color)
		if err != nil {
			return nil, err
		}
		if spec.Gradient != "" {
			bottom, err := source.ParseHexColor(spec.Gradient)
			if err != nil {
				return nil, err
			}
			return source.NewGradientProducer(c, bottom, cfg.Video.Width, cfg.Video.Height), nil
		}
		return source.NewSolidProducer(c, cfg.Video.Width, cfg.Video.Height), nil

	case "text":
		style := source.TextStyle{
			FontPath: spec.FontPath,
			Size:     spec.FontSize,
			Color:    color.RGBA{255, 255, 255, 255},
		}
		if spec.Color != "" {
			c, err := source.ParseHexColor(spec.Color)
			if err != nil {
				return nil, err
			}
			r, g, b := c.RGB255()
			style.Color = color.RGBA{r, g, b, 255}
		}
		return source.NewTextProducer(spec.Text, style), nil

	case "qr":
		size := spec.QRSize
		if size == 0 {
			size = 256
		}
		return source.NewQRProducer(spec.QRContent, size), nil

	default:
		return nil, fmt.Errorf("unknown layer type %q", spec.Type)
	}
}

// slidePageFunc folds the per-row slide increments into a page lookup:
// the page shown at time t is the sum of flips on rows that started at
// or before t.
func slidePageFunc(entries []Entry) func(t float64) int {
	type flip struct {
		time float64
		page int
	}
	var flips []flip
	page := 0
	for _, e := range entries {
		if e.Slide == 0 {
			continue
		}
		page += e.Slide
		flips = append(flips, flip{time: e.Start, page: page})
	}
	return func(t float64) int {
		i := sort.Search(len(flips), func(i int) bool { return flips[i].time > t })
		if i == 0 {
			return 0
		}
		return flips[i-1].page
	}
}

func characterStatus(spec *config.Layer, entries []Entry, duration float64) (*motion.StatusTimeline, error) {
	initial := spec.InitialStatus
	if initial == "" {
		initial = "n"
	}
	st := motion.NewStatusTimeline(initial)
	for _, e := range entries {
		if e.Character != spec.CharacterName || e.Status == "" {
			continue
		}
		if st.StatusAt(e.Start) == e.Status {
			continue
		}
		if err := st.Insert(motion.StatusKeyframe{Time: e.Start, Status: e.Status}); err != nil {
			return nil, err
		}
	}
	if spec.BlinkPerMinute > 0 {
		seed := blinkSeed(spec.Name)
		err := motion.GenerateBlinks(st, duration, spec.BlinkPerMinute, spec.BlinkDuration, "", "blink", seed)
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

// blinkSeed derives a stable per-layer seed so each character blinks on
// its own schedule but identically across re-renders.
func blinkSeed(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

func applyPlacement(l *compose.Layer, spec *config.Layer) error {
	if spec.Anchor != [2]float64{} {
		if err := l.Anchor().Insert(motion.Keyframe{Time: 0, Value: spec.Anchor[:]}); err != nil {
			return err
		}
	}
	if err := l.Position().Insert(motion.Keyframe{Time: 0, Value: spec.Position[:]}); err != nil {
		return err
	}
	if spec.Scale != 0 && spec.Scale != 1 {
		if err := l.Scale().Insert(motion.Keyframe{Time: 0, Value: []float64{spec.Scale, spec.Scale}}); err != nil {
			return err
		}
	}
	if spec.Opacity != nil {
		if err := l.Opacity().Insert(motion.Keyframe{Time: 0, Value: []float64{*spec.Opacity}}); err != nil {
			return err
		}
	}
	return nil
}

// applyAction lays the keyframes for one dialogue action on the target
// layer, starting when its line starts.
func applyAction(l *compose.Layer, action string, start float64) error {
	easeOut := motion.MustCurve("ease_out3")
	switch action {
	case "fade_in":
		return insertAll(l.Opacity(),
			motion.Keyframe{Time: start, Value: []float64{0}, Curve: easeOut},
			motion.Keyframe{Time: start + actionDuration, Value: []float64{1}})

	case "fade_out":
		return insertAll(l.Opacity(),
			motion.Keyframe{Time: start, Value: []float64{1}, Curve: easeOut},
			motion.Keyframe{Time: start + actionDuration, Value: []float64{0}})

	case "slide_in":
		base := l.Position().ValueAt(start + actionDuration)
		return insertAll(l.Position(),
			motion.Keyframe{Time: start, Value: []float64{base[0] + 500, base[1]}, Curve: easeOut},
			motion.Keyframe{Time: start + actionDuration, Value: base})

	case "slide_out":
		base := l.Position().ValueAt(start)
		return insertAll(l.Position(),
			motion.Keyframe{Time: start, Value: base, Curve: easeOut},
			motion.Keyframe{Time: start + actionDuration, Value: []float64{base[0] + 500, base[1]}})

	default:
		return fmt.Errorf("timeline: unknown action %q", action)
	}
}

func insertAll(tl *motion.Timeline, keys ...motion.Keyframe) error {
	for _, k := range keys {
		if err := tl.Insert(k); err != nil {
			return err
		}
	}
	return nil
}

// Subtitles converts timeline rows into subtitle entries, styled by
// speaker so each character keeps their outline color.
func Subtitles(entries []Entry) []subtitle.Entry {
	subs := make([]subtitle.Entry, 0, len(entries))
	for _, e := range entries {
		subs = append(subs, subtitle.Entry{
			Start: e.Start,
			End:   e.End,
			Text:  e.Text,
			Style: e.Character,
		})
	}
	return subs
}
