package compose

import (
	"fmt"
	"math"
)

// BlendMode selects the per-channel math combining a layer's pixels with
// the pixels already composited beneath it. The set is closed; every mode
// maps to a pure channel function.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendLinearDodge
	BlendLinearBurn
	BlendHardLight
	BlendSoftLight
	BlendVividLight
	BlendLinearLight
	BlendPinLight
	BlendDifference
	BlendExclusion
	BlendSubtract
)

var blendNames = map[string]BlendMode{
	"normal":       BlendNormal,
	"multiply":     BlendMultiply,
	"screen":       BlendScreen,
	"overlay":      BlendOverlay,
	"darken":       BlendDarken,
	"lighten":      BlendLighten,
	"color_dodge":  BlendColorDodge,
	"color_burn":   BlendColorBurn,
	"linear_dodge": BlendLinearDodge,
	"linear_burn":  BlendLinearBurn,
	"hard_light":   BlendHardLight,
	"soft_light":   BlendSoftLight,
	"vivid_light":  BlendVividLight,
	"linear_light": BlendLinearLight,
	"pin_light":    BlendPinLight,
	"difference":   BlendDifference,
	"exclusion":    BlendExclusion,
	"subtract":     BlendSubtract,
}

// ParseBlendMode resolves a blend mode name from a scene description.
func ParseBlendMode(s string) (BlendMode, error) {
	m, ok := blendNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown blending mode: %q", s)
	}
	return m, nil
}

func (m BlendMode) String() string {
	for name, mode := range blendNames {
		if mode == m {
			return name
		}
	}
	return fmt.Sprintf("blend(%d)", int(m))
}

// Apply combines one normalized channel: b is the backdrop value, s the
// source value, both in [0,1]. Alpha handling happens in the compositor;
// this is color math only.
func (m BlendMode) Apply(b, s float64) float64 {
	switch m {
	case BlendNormal:
		return s
	case BlendMultiply:
		return b * s
	case BlendScreen:
		return b + s - b*s
	case BlendOverlay:
		return hardLight(s, b)
	case BlendDarken:
		return math.Min(b, s)
	case BlendLighten:
		return math.Max(b, s)
	case BlendColorDodge:
		return colorDodge(b, s)
	case BlendColorBurn:
		return colorBurn(b, s)
	case BlendLinearDodge:
		return math.Min(1, b+s)
	case BlendLinearBurn:
		return math.Max(0, b+s-1)
	case BlendHardLight:
		return hardLight(b, s)
	case BlendSoftLight:
		return softLight(b, s)
	case BlendVividLight:
		if s <= 0.5 {
			return colorBurn(b, 2*s)
		}
		return colorDodge(b, 2*s-1)
	case BlendLinearLight:
		return clamp01(b + 2*s - 1)
	case BlendPinLight:
		if s <= 0.5 {
			return math.Min(b, 2*s)
		}
		return math.Max(b, 2*s-1)
	case BlendDifference:
		return math.Abs(b - s)
	case BlendExclusion:
		return b + s - 2*b*s
	case BlendSubtract:
		return math.Max(0, b-s)
	}
	return s
}

// hardLight applies s as a hard light over b; overlay is the same formula
// with the operands swapped.
func hardLight(b, s float64) float64 {
	if s <= 0.5 {
		return 2 * b * s
	}
	return 1 - 2*(1-b)*(1-s)
}

func colorDodge(b, s float64) float64 {
	if b <= 0 {
		return 0
	}
	if s >= 1 {
		return 1
	}
	return math.Min(1, b/(1-s))
}

func colorBurn(b, s float64) float64 {
	if b >= 1 {
		return 1
	}
	if s <= 0 {
		return 0
	}
	return 1 - math.Min(1, (1-b)/s)
}

// softLight follows the W3C compositing spec formulation.
func softLight(b, s float64) float64 {
	if s <= 0.5 {
		return b - (1-2*s)*b*(1-b)
	}
	var d float64
	if b <= 0.25 {
		d = ((16*b-12)*b + 4) * b
	} else {
		d = math.Sqrt(b)
	}
	return b + (2*s-1)*(d-b)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MatteMode selects which channel of the matte source gates a layer's
// visibility.
type MatteMode int

const (
	MatteNone MatteMode = iota
	MatteAlpha
	MatteLuminance
)

// ParseMatteMode resolves a matte mode name from a scene description.
func ParseMatteMode(s string) (MatteMode, error) {
	switch s {
	case "none":
		return MatteNone, nil
	case "alpha":
		return MatteAlpha, nil
	case "luminance":
		return MatteLuminance, nil
	}
	return 0, fmt.Errorf("unknown matte mode: %q", s)
}

func (m MatteMode) String() string {
	switch m {
	case MatteNone:
		return "none"
	case MatteAlpha:
		return "alpha"
	case MatteLuminance:
		return "luminance"
	}
	return fmt.Sprintf("matte(%d)", int(m))
}
