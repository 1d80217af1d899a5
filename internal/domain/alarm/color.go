package alarm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a display color packed as 0xAARRGGBB.
type Color uint32

const (
	// DefaultColor is the color of newly created alarms (opaque blue).
	DefaultColor Color = 0xFF2196F3
	// Black is opaque black.
	Black Color = 0xFF000000
	// White is opaque white.
	White Color = 0xFFFFFFFF

	// contrastThreshold decides when a background is light enough for dark text.
	contrastThreshold = 0.15
)

// errInvalidColor is returned when a color string cannot be parsed.
var errInvalidColor = errors.New("invalid color")

// Alpha returns the alpha channel.
func (c Color) Alpha() uint8 { return uint8(c >> 24) }

// Red returns the red channel.
func (c Color) Red() uint8 { return uint8(c >> 16) }

// Green returns the green channel.
func (c Color) Green() uint8 { return uint8(c >> 8) }

// Blue returns the blue channel.
func (c Color) Blue() uint8 { return uint8(c) }

// Luminance returns the relative luminance of the color in [0, 1], ignoring alpha.
func (c Color) Luminance() float64 {
	return 0.2126*linearize(c.Red()) + 0.7152*linearize(c.Green()) + 0.0722*linearize(c.Blue())
}

// ContrastText picks black or white, whichever reads better on top of c.
func (c Color) ContrastText() Color {
	l := c.Luminance()
	if (l+0.05)*(l+0.05) > contrastThreshold {
		return Black
	}

	return White
}

// Hex renders the color as #AARRGGBB.
func (c Color) Hex() string {
	return fmt.Sprintf("#%08X", uint32(c))
}

// ParseColor parses #AARRGGBB or #RRGGBB (the latter opaque). The leading # is optional.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(hex) {
	case 6:
		hex = "FF" + hex
	case 8:
	default:
		return 0, fmt.Errorf("%w: %q", errInvalidColor, s)
	}

	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidColor, s)
	}

	return Color(value), nil
}

// linearize converts an sRGB channel to linear light.
func linearize(channel uint8) float64 {
	v := float64(channel) / 255
	if v <= 0.03928 {
		return v / 12.92
	}

	return math.Pow((v+0.055)/1.055, 2.4)
}
