package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ivlev/talk2video/internal/compose"
	"github.com/ivlev/talk2video/internal/motion"
)

// CharacterProducer serves a narration character: a directory of status
// sprites ("n.png", "blink.png", "happy.png", ...) keyed by a step-valued
// status timeline that carries both dialogue expressions and generated
// blinks.
type CharacterProducer struct {
	dir    string
	status *motion.StatusTimeline

	once    sync.Once
	sprites map[string]*image.RGBA
	base    uint64
	err     error
}

// NewCharacterProducer creates a producer reading status sprites from
// dir. The status timeline stays owned by the caller, which edits it
// between renders.
func NewCharacterProducer(dir string, status *motion.StatusTimeline) *CharacterProducer {
	return &CharacterProducer{dir: dir, status: status}
}

func (p *CharacterProducer) load() {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.err = fmt.Errorf("%w: %v", compose.ErrContentUnavailable, err)
		return
	}
	p.sprites = make(map[string]*image.RGBA)
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	f := compose.NewFingerprinter().Str("character").Str(p.dir)
	for _, name := range names {
		img, err := decodeFile(filepath.Join(p.dir, name))
		if err != nil {
			p.err = err
			return
		}
		key := strings.TrimSuffix(name, ".png")
		p.sprites[key] = img
		f.Str(key).U64(compose.HashBytes(img.Pix))
	}
	if len(p.sprites) == 0 {
		p.err = fmt.Errorf("%w: no status sprites in %s", compose.ErrContentUnavailable, p.dir)
		return
	}
	p.base = f.Sum()
}

func decodeFile(path string) (*image.RGBA, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", compose.ErrContentUnavailable, err)
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", compose.ErrContentUnavailable, path, err)
	}
	return toRGBA(img), nil
}

// Statuses returns the sprite names available, sorted.
func (p *CharacterProducer) Statuses() []string {
	p.once.Do(p.load)
	names := make([]string, 0, len(p.sprites))
	for name := range p.sprites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Frame returns the sprite for the status holding at time t.
func (p *CharacterProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}
	p.once.Do(p.load)
	if p.err != nil {
		return nil, p.err
	}
	status := p.status.StatusAt(t)
	img, ok := p.sprites[status]
	if !ok {
		return nil, fmt.Errorf("%w: character %s has no sprite for status %q", compose.ErrContentUnavailable, p.dir, status)
	}
	return img, nil
}

// Fingerprint keys on the sprite set and the status holding at t, so a
// blink invalidates exactly the frames it covers.
func (p *CharacterProducer) Fingerprint(t float64) uint64 {
	p.once.Do(p.load)
	return compose.NewFingerprinter().U64(p.base).Str(p.status.StatusAt(t)).Sum()
}
