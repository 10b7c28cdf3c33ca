package palette

import (
	"fmt"
	"strconv"
	"strings"
)

type RGB [3]uint8

func (c RGB) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]) }

func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("bad color %q", s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("bad color %q: %w", s, err)
	}
	return RGB{uint8(n >> 16), uint8(n >> 8), uint8(n)}, nil
}

// Pair is the (inactive, active) color of one wire net.
type Pair struct {
	Inactive RGB
	Active   RGB
}

func (p Pair) For(active bool) RGB {
	if active {
		return p.Active
	}
	return p.Inactive
}

// Palette is the ordered list of wire colors. A wire's palette index is
// also its electrical net: wires only conduct to wires of the same index.
type Palette []Pair

func (p Palette) Valid(i int) bool { return i >= 0 && i < len(p) }

// IndexOf finds the pair whose inactive or active color is c.
func (p Palette) IndexOf(c RGB) (int, bool) {
	for i, pair := range p {
		if pair.Inactive == c || pair.Active == c {
			return i, true
		}
	}
	return 0, false
}

func (p Palette) Clone() Palette { return append(Palette(nil), p...) }

// Fixed colors.
var (
	ObjectColor = RGB{82, 82, 82}
	NodeColor   = RGB{214, 214, 214}

	SwitchOn  = RGB{66, 251, 85}
	SwitchOff = RGB{237, 66, 18}

	LedLit  = RGB{190, 224, 31}
	LedDark = RGB{80, 100, 15}

	ClockHigh = RGB{92, 173, 154}
	ClockLow  = RGB{38, 70, 62}

	GateHigh = RGB{234, 181, 45}
)

func Default() Palette {
	return Palette{
		{Inactive: RGB{196, 196, 190}, Active: RGB{145, 145, 134}},
		{Inactive: RGB{207, 175, 157}, Active: RGB{173, 119, 88}},
		{Inactive: RGB{240, 183, 142}, Active: RGB{228, 123, 47}},
		{Inactive: RGB{244, 216, 146}, Active: RGB{234, 181, 45}},
		{Inactive: RGB{161, 208, 197}, Active: RGB{92, 173, 154}},
		{Inactive: RGB{148, 193, 229}, Active: RGB{63, 143, 209}},
		{Inactive: RGB{184, 156, 225}, Active: RGB{125, 76, 200}},
		{Inactive: RGB{230, 147, 193}, Active: RGB{210, 62, 143}},
		{Inactive: RGB{243, 143, 149}, Active: RGB{233, 46, 58}},
	}
}
