package compose

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
)

// Fingerprinter accumulates everything that can affect a rendered result
// into a 64-bit FNV-1a content key.
type Fingerprinter struct {
	buf [8]byte
	h   hash.Hash64
}

// NewFingerprinter starts a fresh fingerprint.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{h: fnv.New64a()}
}

// U64 mixes a raw 64-bit word.
func (f *Fingerprinter) U64(v uint64) *Fingerprinter {
	binary.LittleEndian.PutUint64(f.buf[:], v)
	f.h.Write(f.buf[:])
	return f
}

// F64 mixes a float by bit pattern.
func (f *Fingerprinter) F64(v float64) *Fingerprinter {
	return f.U64(math.Float64bits(v))
}

// Str mixes a string.
func (f *Fingerprinter) Str(s string) *Fingerprinter {
	f.h.Write([]byte(s))
	return f
}

// Sum returns the accumulated key.
func (f *Fingerprinter) Sum() uint64 { return f.h.Sum64() }

// HashBytes fingerprints a raw byte slice; producers use it for static
// content such as decoded images.
func HashBytes(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

// Fingerprint summarizes everything affecting the layer's appearance at
// composition time t: its resolved attributes, blend and matte state, and
// the content fingerprint of its producer or nested composition. Two equal
// fingerprints mean the rendered buffers are interchangeable.
func (l *Layer) Fingerprint(t float64) uint64 {
	f := NewFingerprinter()
	f.U64(uint64(l.id))
	a := l.AppearanceAt(t)
	if !a.Visible {
		return f.Str("off").Sum()
	}
	f.U64(uint64(l.blend)).U64(uint64(l.matte)).U64(uint64(l.matteSrc))
	f.F64(a.Anchor[0]).F64(a.Anchor[1])
	f.F64(a.Position[0]).F64(a.Position[1])
	f.F64(a.Scale[0]).F64(a.Scale[1])
	f.F64(a.Rotation).F64(a.Opacity)
	lt := l.LocalTime(t)
	if l.comp != nil {
		f.U64(l.comp.Fingerprint(lt))
	} else if l.producer != nil {
		f.U64(l.producer.Fingerprint(lt))
	}
	return f.Sum()
}

// Fingerprint summarizes the composition subtree at time t: canvas,
// structure revision, and the fingerprints of all visible children in
// paint order. Invisible children contribute only their identity, so
// toggling one off still changes the key.
func (c *Composition) Fingerprint(t float64) uint64 {
	f := NewFingerprinter()
	f.U64(uint64(c.id))
	f.U64(uint64(c.width)).U64(uint64(c.height))
	f.U64(c.structRev)
	for _, l := range c.layers {
		f.U64(l.Fingerprint(t))
	}
	return f.Sum()
}
