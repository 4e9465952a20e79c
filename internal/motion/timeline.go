package motion

import (
	"fmt"
	"math"
	"sort"
)

// ErrDuplicateKeyframeTime is returned when an insert collides with an
// existing keyframe time.
var ErrDuplicateKeyframeTime = fmt.Errorf("duplicate keyframe time")

// ErrKeyframeNotFound is returned by Remove and MoveTime when no keyframe
// exists at the given time.
var ErrKeyframeNotFound = fmt.Errorf("keyframe not found")

// Kind declares the numeric semantics of an animated attribute.
type Kind int

const (
	KindScalar Kind = iota
	KindVector2D
	KindVector3D
	KindAngle // degrees, interpolated along the shorter arc
	KindColor // RGBA, 0-255 per channel, blended per channel
)

// components returns the expected value width for the kind.
func (k Kind) components() int {
	switch k {
	case KindVector2D:
		return 2
	case KindVector3D:
		return 3
	case KindColor:
		return 4
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector2D:
		return "vector2d"
	case KindVector3D:
		return "vector3d"
	case KindAngle:
		return "angle"
	case KindColor:
		return "color"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves an attribute kind name from a scene description.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "scalar":
		return KindScalar, nil
	case "vector2d":
		return KindVector2D, nil
	case "vector3d":
		return KindVector3D, nil
	case "angle":
		return KindAngle, nil
	case "color":
		return KindColor, nil
	}
	return 0, fmt.Errorf("unknown attribute kind: %q", s)
}

// Keyframe anchors an attribute value at one instant. The curve shapes the
// progress toward the next keyframe.
type Keyframe struct {
	Time  float64
	Value []float64
	Curve Curve
}

// Timeline is the ordered keyframe sequence for exactly one attribute of
// one layer. Keyframe times are unique and kept ascending. A Timeline is
// not safe for concurrent mutation; edits happen between renders.
type Timeline struct {
	kind Kind
	def  []float64
	keys []Keyframe
	rev  uint64
}

// NewTimeline creates an empty timeline of the given kind. The default
// value is returned by ValueAt until keyframes exist; it is padded or
// truncated to the kind's component count.
func NewTimeline(kind Kind, def ...float64) *Timeline {
	n := kind.components()
	d := make([]float64, n)
	copy(d, def)
	return &Timeline{kind: kind, def: d}
}

// Kind reports the attribute kind the timeline was declared with.
func (tl *Timeline) Kind() Kind { return tl.kind }

// Len reports the number of keyframes.
func (tl *Timeline) Len() int { return len(tl.keys) }

// Revision increases on every mutation. Owners fold it into cache
// fingerprints so stale rendered results can never be returned.
func (tl *Timeline) Revision() uint64 { return tl.rev }

// Keyframes returns the keyframes in ascending time order. The slice is
// shared; callers must not mutate it.
func (tl *Timeline) Keyframes() []Keyframe { return tl.keys }

// search returns the index of the first keyframe with time >= t.
func (tl *Timeline) search(t float64) int {
	return sort.Search(len(tl.keys), func(i int) bool {
		return tl.keys[i].Time >= t
	})
}

// Insert adds a keyframe, keeping times ascending and unique. Inserting at
// an occupied time fails with ErrDuplicateKeyframeTime.
func (tl *Timeline) Insert(k Keyframe) error {
	if len(k.Value) != tl.kind.components() {
		return fmt.Errorf("keyframe value has %d components, %s needs %d",
			len(k.Value), tl.kind, tl.kind.components())
	}
	i := tl.search(k.Time)
	if i < len(tl.keys) && tl.keys[i].Time == k.Time {
		return fmt.Errorf("%w: t=%v", ErrDuplicateKeyframeTime, k.Time)
	}
	tl.keys = append(tl.keys, Keyframe{})
	copy(tl.keys[i+1:], tl.keys[i:])
	tl.keys[i] = k
	tl.rev++
	return nil
}

// Remove deletes the keyframe at exactly time t.
func (tl *Timeline) Remove(t float64) error {
	i := tl.search(t)
	if i >= len(tl.keys) || tl.keys[i].Time != t {
		return fmt.Errorf("%w: t=%v", ErrKeyframeNotFound, t)
	}
	tl.keys = append(tl.keys[:i], tl.keys[i+1:]...)
	tl.rev++
	return nil
}

// MoveTime relocates the keyframe at oldT to newT, preserving its value
// and curve. Moving onto an occupied time fails and leaves the timeline
// unchanged.
func (tl *Timeline) MoveTime(oldT, newT float64) error {
	if oldT == newT {
		return nil
	}
	i := tl.search(oldT)
	if i >= len(tl.keys) || tl.keys[i].Time != oldT {
		return fmt.Errorf("%w: t=%v", ErrKeyframeNotFound, oldT)
	}
	j := tl.search(newT)
	if j < len(tl.keys) && tl.keys[j].Time == newT {
		return fmt.Errorf("%w: t=%v", ErrDuplicateKeyframeTime, newT)
	}
	k := tl.keys[i]
	k.Time = newT
	tl.keys = append(tl.keys[:i], tl.keys[i+1:]...)
	j = tl.search(newT)
	tl.keys = append(tl.keys, Keyframe{})
	copy(tl.keys[j+1:], tl.keys[j:])
	tl.keys[j] = k
	tl.rev++
	return nil
}

// ValueAt returns the interpolated attribute value at time t.
//
// With no keyframes the declared default is returned. Outside the keyed
// range the boundary keyframe's value is returned unchanged (clamp, no
// extrapolation). Between keyframes the left keyframe's curve eases the
// linear progress and the blend follows the kind's semantics.
func (tl *Timeline) ValueAt(t float64) []float64 {
	if len(tl.keys) == 0 {
		return append([]float64(nil), tl.def...)
	}
	if t <= tl.keys[0].Time {
		return append([]float64(nil), tl.keys[0].Value...)
	}
	last := tl.keys[len(tl.keys)-1]
	if t >= last.Time {
		return append([]float64(nil), last.Value...)
	}
	// i is the first keyframe with time >= t; the bracket is [i-1, i].
	i := tl.search(t)
	k0, k1 := tl.keys[i-1], tl.keys[i]
	if k1.Time == t {
		return append([]float64(nil), k1.Value...)
	}
	u := (t - k0.Time) / (k1.Time - k0.Time)
	u = k0.Curve.Ease(u)
	out := make([]float64, len(k0.Value))
	if tl.kind == KindAngle {
		out[0] = lerpAngle(k0.Value[0], k1.Value[0], u)
		return out
	}
	for c := range out {
		out[c] = k0.Value[c] + u*(k1.Value[c]-k0.Value[c])
	}
	return out
}

// lerpAngle blends two angles in degrees along the shorter arc, so a
// 350° → 10° tween travels 20° and never spins the long way around.
func lerpAngle(a0, a1, u float64) float64 {
	delta := math.Mod(a1-a0, 360)
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	out := math.Mod(a0+u*delta, 360)
	if out < 0 {
		out += 360
	}
	return out
}
