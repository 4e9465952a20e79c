package source

import (
	"fmt"
	"image"
	"sync"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ivlev/talk2video/internal/compose"
)

// QRProducer renders a QR code overlay, typically a link shown in a video
// corner. The code is generated once at its configured pixel size.
type QRProducer struct {
	content string
	size    int

	once sync.Once
	img  *image.RGBA
	err  error
}

// NewQRProducer creates a producer encoding content into a size×size
// pixel QR code.
func NewQRProducer(content string, size int) *QRProducer {
	if size <= 0 {
		size = 256
	}
	return &QRProducer{content: content, size: size}
}

func (p *QRProducer) render() {
	q, err := qrcode.New(p.content, qrcode.Medium)
	if err != nil {
		p.err = fmt.Errorf("%w: encoding qr: %v", compose.ErrContentUnavailable, err)
		return
	}
	p.img = toRGBA(q.Image(p.size))
}

// Frame returns the rendered code.
func (p *QRProducer) Frame(t float64, size image.Point) (*image.RGBA, error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}
	p.once.Do(p.render)
	if p.err != nil {
		return nil, p.err
	}
	return p.img, nil
}

// Fingerprint hashes the encoded content and size.
func (p *QRProducer) Fingerprint(t float64) uint64 {
	return compose.NewFingerprinter().Str("qr").Str(p.content).U64(uint64(p.size)).Sum()
}
