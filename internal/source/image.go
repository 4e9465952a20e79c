package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/ivlev/talk2video/internal/compose"
)

// ImageProducer serves one static image, decoded lazily on first use and
// shared by every frame thereafter.
type ImageProducer struct {
	path string

	once sync.Once
	img  *image.RGBA
	fp   uint64
	err  error
}

// NewImageProducer creates a producer for a PNG or JPEG file. The file is
// not touched until the first frame request.
func NewImageProducer(path string) *ImageProducer {
	return &ImageProducer{path: path}
}

func (p *ImageProducer) load() {
	f, err := os.Open(p.path)
	if err != nil {
		p.err = fmt.Errorf("%w: %v", compose.ErrContentUnavailable, err)
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		p.err = fmt.Errorf("%w: decoding %s: %v", compose.ErrContentUnavailable, p.path, err)
		return
	}
	p.img = toRGBA(img)
	p.fp = compose.HashBytes(p.img.Pix)
}

// Frame returns the decoded image at its natural size; the compositor
// applies the layer transform.
func (p *ImageProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}
	p.once.Do(p.load)
	if p.err != nil {
		return nil, p.err
	}
	return p.img, nil
}

// Fingerprint is the hash of the decoded pixels; it does not depend on t.
func (p *ImageProducer) Fingerprint(t float64) uint64 {
	p.once.Do(p.load)
	if p.err != nil {
		return compose.NewFingerprinter().Str("image-error").Str(p.path).Sum()
	}
	return p.fp
}
