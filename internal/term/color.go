package term

import "fmt"

// ColorKind identifies which variant of Color is populated.
type ColorKind int

const (
	// ColorDefault means no color is set; the renderer uses its own default.
	ColorDefault ColorKind = iota
	ColorStandard
	ColorBright
	ColorIndexed
	ColorRGB
)

// colorNames maps the eight standard SGR color slots to their wire names, in
// ascending parameter order (30-37 / 90-97 minus the base).
var colorNames = [8]string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}

// Color is a tagged union over the four forms the wire protocol and the SGR
// handler recognize. Equality is structural: two Colors are equal iff Kind
// and the field relevant to that Kind match.
type Color struct {
	Kind  ColorKind
	Value uint8 // standard/bright: 0-7 palette slot. indexed: 0-255.
	R, G, B uint8 // only meaningful when Kind == ColorRGB
}

// StandardColor builds a Color for one of the eight standard SGR slots (0-7).
func StandardColor(slot uint8) Color { return Color{Kind: ColorStandard, Value: slot % 8} }

// BrightColor builds a Color for one of the eight bright SGR slots (0-7).
func BrightColor(slot uint8) Color { return Color{Kind: ColorBright, Value: slot % 8} }

// IndexedColor builds a Color addressing the 256-color palette directly.
func IndexedColor(index uint8) Color { return Color{Kind: ColorIndexed, Value: index} }

// RGBColor builds a true-color Color.
func RGBColor(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

// Equal reports structural equality, matching the data model's "Equality is
// structural" invariant.
func (c Color) Equal(o Color) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ColorStandard, ColorBright, ColorIndexed:
		return c.Value == o.Value
	case ColorRGB:
		return c.R == o.R && c.G == o.G && c.B == o.B
	default:
		return true
	}
}

// MarshalJSON encodes a Color per §6 of the wire protocol: standard/bright as
// a bare string name, indexed as {"index":N}, rgb as {"rgb":"#RRGGBB"}.
func (c Color) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ColorStandard:
		return []byte(fmt.Sprintf("%q", colorNames[c.Value%8])), nil
	case ColorBright:
		return []byte(fmt.Sprintf("%q", "bright_"+colorNames[c.Value%8])), nil
	case ColorIndexed:
		return []byte(fmt.Sprintf(`{"index":%d}`, c.Value)), nil
	case ColorRGB:
		return []byte(fmt.Sprintf(`{"rgb":"#%02X%02X%02X"}`, c.R, c.G, c.B)), nil
	default:
		return []byte("null"), nil
	}
}

// TextStyle is the optional foreground/background plus the eight boolean SGR
// attributes carried by every Cell and StyledSegment.
type TextStyle struct {
	Fg            *Color
	Bg            *Color
	Bold          bool
	Dim           bool
	Italic        bool
	Underline     bool
	Blink         bool
	Reverse       bool
	Hidden        bool
	Strikethrough bool
}

// DefaultStyle is the zero-value style: no colors, every attribute false.
var DefaultStyle = TextStyle{}

// Reset returns the style to DefaultStyle, per the data model's reset() operation.
func (s *TextStyle) Reset() { *s = DefaultStyle }

// Equal reports whether two styles are identical, including color identity.
func (s TextStyle) Equal(o TextStyle) bool {
	if s.Bold != o.Bold || s.Dim != o.Dim || s.Italic != o.Italic ||
		s.Underline != o.Underline || s.Blink != o.Blink || s.Reverse != o.Reverse ||
		s.Hidden != o.Hidden || s.Strikethrough != o.Strikethrough {
		return false
	}
	if (s.Fg == nil) != (o.Fg == nil) || (s.Bg == nil) != (o.Bg == nil) {
		return false
	}
	if s.Fg != nil && !s.Fg.Equal(*o.Fg) {
		return false
	}
	if s.Bg != nil && !s.Bg.Equal(*o.Bg) {
		return false
	}
	return true
}

// IsDefault reports whether the style equals DefaultStyle, used by
// getRowSegments to trim trailing default-styled blank runs.
func (s TextStyle) IsDefault() bool { return s.Equal(DefaultStyle) }
