package element

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB triple.
type Color struct {
	R, G, B uint8
}

var (
	// Orange is the default line colour.
	Orange = Color{R: 0xFF, G: 0xA5, B: 0x00}
	// Sky is the colour of the brightness bar in the multi-element preset.
	Sky = Color{R: 0x00, G: 0xCC, B: 0xFF}
	// Black is used for every line in debug mode.
	Black = Color{}
)

// ParseColor parses "RRGGBB" with an optional leading '#'.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Floats returns the channels scaled to 0.0-1.0.
func (c Color) Floats() (r, g, b float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}

// Hex returns the colour as a 24-bit integer.
func (c Color) Hex() int32 {
	return int32(c.R)<<16 | int32(c.G)<<8 | int32(c.B)
}

func (c Color) String() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
