package compose

import (
	"errors"
	"image"
	"math"
	"sync/atomic"

	"github.com/ivlev/talk2video/internal/motion"
)

// ErrContentUnavailable is wrapped by content producers that cannot supply
// pixels at the requested time. Compositions propagate it instead of
// rendering blank, since silent blanks mask authoring errors.
var ErrContentUnavailable = errors.New("content unavailable")

// NodeID identifies a layer or composition for the lifetime of a render
// session. IDs are stable and never reused; 0 is reserved as "no node".
type NodeID uint32

var lastNodeID atomic.Uint32

func newNodeID() NodeID {
	return NodeID(lastNodeID.Add(1))
}

// Producer supplies a layer's source pixels. Implementations are expected
// to complete synchronously; any I/O asynchrony stays behind this
// interface.
type Producer interface {
	// Frame returns the content at layer-local time t. size is the
	// requested canvas as a hint; producers may return their natural
	// size and let the compositor transform it.
	Frame(t float64, size image.Point) (*image.RGBA, error)

	// Fingerprint summarizes everything that affects Frame's output at
	// t, so cached renders can be reused across identical requests.
	Fingerprint(t float64) uint64
}

// Appearance is a layer's own state resolved from its attribute timelines
// at one instant. Visible is false outside the layer's time bounds or at
// zero opacity; callers skip rendering entirely in that case.
type Appearance struct {
	Visible  bool
	Anchor   [2]float64
	Position [2]float64
	Scale    [2]float64
	Rotation float64 // degrees, clockwise
	Opacity  float64
}

// Layer is one node of the scene tree: either leaf content driven by a
// Producer, or a nested Composition. Exactly one of producer/comp is set.
type Layer struct {
	id   NodeID
	name string

	blend    BlendMode
	matte    MatteMode
	matteSrc NodeID // 0 = the layer immediately behind in paint order

	start, end float64 // contributes nothing outside [start, end)

	anchor   *motion.Timeline
	position *motion.Timeline
	scale    *motion.Timeline
	rotation *motion.Timeline
	opacity  *motion.Timeline

	producer Producer
	comp     *Composition
}

func newLayer(name string) *Layer {
	return &Layer{
		id:       newNodeID(),
		name:     name,
		start:    0,
		end:      math.Inf(1),
		anchor:   motion.NewTimeline(motion.KindVector2D, 0, 0),
		position: motion.NewTimeline(motion.KindVector2D, 0, 0),
		scale:    motion.NewTimeline(motion.KindVector2D, 1, 1),
		rotation: motion.NewTimeline(motion.KindAngle, 0),
		opacity:  motion.NewTimeline(motion.KindScalar, 1),
	}
}

// NewLayer creates a leaf layer fed by the given content producer.
func NewLayer(name string, p Producer) *Layer {
	l := newLayer(name)
	l.producer = p
	return l
}

// NewCompositionLayer wraps a composition so it can be nested as a layer
// inside a parent composition.
func NewCompositionLayer(name string, c *Composition) *Layer {
	l := newLayer(name)
	l.comp = c
	return l
}

func (l *Layer) ID() NodeID       { return l.id }
func (l *Layer) Name() string     { return l.name }
func (l *Layer) Blend() BlendMode { return l.blend }

// IsComposition reports whether the layer's content is a nested
// composition rather than leaf content.
func (l *Layer) IsComposition() bool { return l.comp != nil }

// Composition returns the nested composition, or nil for leaf layers.
func (l *Layer) Composition() *Composition { return l.comp }

// Producer returns the content producer, or nil for composition layers.
func (l *Layer) Producer() Producer { return l.producer }

func (l *Layer) SetBlend(m BlendMode) { l.blend = m }

// SetMatte configures the matte. src 0 means the matte source resolves to
// the layer immediately behind this one in paint order.
func (l *Layer) SetMatte(m MatteMode, src NodeID) {
	l.matte = m
	l.matteSrc = src
}

func (l *Layer) Matte() MatteMode    { return l.matte }
func (l *Layer) MatteSource() NodeID { return l.matteSrc }

// SetBounds limits the layer to [start, end). end <= start disables the
// layer entirely.
func (l *Layer) SetBounds(start, end float64) {
	l.start = start
	l.end = end
}

func (l *Layer) Bounds() (start, end float64) { return l.start, l.end }

// LocalTime converts composition time into the layer's own timebase.
func (l *Layer) LocalTime(t float64) float64 { return t - l.start }

// Attribute timelines. Callers edit keyframes through these between
// renders.
func (l *Layer) Anchor() *motion.Timeline   { return l.anchor }
func (l *Layer) Position() *motion.Timeline { return l.position }
func (l *Layer) Scale() *motion.Timeline    { return l.scale }
func (l *Layer) Rotation() *motion.Timeline { return l.rotation }
func (l *Layer) Opacity() *motion.Timeline  { return l.opacity }

// AppearanceAt resolves the layer's transform and opacity at composition
// time t.
func (l *Layer) AppearanceAt(t float64) Appearance {
	if t < l.start || t >= l.end {
		return Appearance{}
	}
	op := l.opacity.ValueAt(t)[0]
	if op <= 0 {
		return Appearance{}
	}
	if op > 1 {
		op = 1
	}
	a := Appearance{Visible: true, Opacity: op}
	v := l.anchor.ValueAt(t)
	a.Anchor = [2]float64{v[0], v[1]}
	v = l.position.ValueAt(t)
	a.Position = [2]float64{v[0], v[1]}
	v = l.scale.ValueAt(t)
	a.Scale = [2]float64{v[0], v[1]}
	a.Rotation = l.rotation.ValueAt(t)[0]
	return a
}
