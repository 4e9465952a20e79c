package source

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/talk2video/internal/compose"
)

// SlideProducer rasterizes pages of a PDF slide deck. The visible page at
// time t is computed externally (from the dialogue timeline) and supplied
// as PageAt. Rendered pages are kept so repeated frames on the same slide
// rasterize once.
type SlideProducer struct {
	path   string
	dpi    float64
	pageAt func(t float64) int

	mu    sync.Mutex
	count int
	pages map[int]*image.RGBA
}

// NewSlideProducer opens the deck to validate it and count pages, then
// closes it again; rasterization opens a fresh document per page, which
// keeps the producer safe under parallel frame rendering.
func NewSlideProducer(path string, dpi float64, pageAt func(t float64) int) (*SlideProducer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening slide deck %s: %w", path, err)
	}
	count := doc.NumPage()
	doc.Close()
	if count == 0 {
		return nil, fmt.Errorf("slide deck %s has no pages", path)
	}
	return &SlideProducer{
		path:   path,
		dpi:    dpi,
		pageAt: pageAt,
		count:  count,
		pages:  make(map[int]*image.RGBA),
	}, nil
}

// PageCount reports the number of pages in the deck.
func (p *SlideProducer) PageCount() int { return p.count }

func (p *SlideProducer) page(t float64) (int, error) {
	idx := 0
	if p.pageAt != nil {
		idx = p.pageAt(t)
	}
	if idx < 0 || idx >= p.count {
		return 0, fmt.Errorf("%w: slide %d of %d at t=%v", compose.ErrContentUnavailable, idx, p.count, t)
	}
	return idx, nil
}

// Frame returns the rasterized page visible at time t.
func (p *SlideProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}
	idx, err := p.page(t)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if img, ok := p.pages[idx]; ok {
		p.mu.Unlock()
		return img, nil
	}
	p.mu.Unlock()

	// Rasterize outside the lock; a duplicate render of the same page is
	// wasted work, not a bug.
	doc, err := fitz.New(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reopening %s: %v", compose.ErrContentUnavailable, p.path, err)
	}
	defer doc.Close()
	raw, err := doc.ImageDPI(idx, p.dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: rasterizing page %d: %v", compose.ErrContentUnavailable, idx, err)
	}
	img := toRGBA(raw)

	p.mu.Lock()
	p.pages[idx] = img
	p.mu.Unlock()
	return img, nil
}

// Fingerprint keys on the deck path and the visible page index, so frames
// on the same slide share cached renders.
func (p *SlideProducer) Fingerprint(t float64) uint64 {
	f := compose.NewFingerprinter().Str("slide").Str(p.path).F64(p.dpi)
	if idx, err := p.page(t); err == nil {
		f.U64(uint64(idx))
	} else {
		f.Str("out-of-range")
	}
	return f.Sum()
}
