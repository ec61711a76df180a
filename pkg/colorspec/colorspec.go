// Package colorspec parses the color strings accepted by the CLI and the
// HTTP API into image colors.
//
// Accepted forms, case-insensitive and with optional whitespace:
//
//	#rgb, #rrggbb          hex
//	rgb(255, 0, 0)         0-255 channels, or percentages
//	hsl(210, 50%, 40%)     hue in degrees, saturation and lightness in percent
//	black, navy, ...       a small set of CSS color names
//
// Alpha is not supported: words are always painted opaque.
package colorspec

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/maskcloud/pkg/errors"
)

// Default is the fill color used when none is given.
const Default = "hsl(0, 0%, 0%)"

var names = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"lime":    "#00ff00",
	"blue":    "#0000ff",
	"navy":    "#000080",
	"yellow":  "#ffff00",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"magenta": "#ff00ff",
	"cyan":    "#00ffff",
	"teal":    "#008080",
	"gray":    "#808080",
	"grey":    "#808080",
	"silver":  "#c0c0c0",
	"maroon":  "#800000",
	"olive":   "#808000",
	"brown":   "#a52a2a",
	"pink":    "#ffc0cb",
}

// Parse converts a color string to an opaque color.
func Parse(s string) (color.NRGBA, error) {
	c, err := parse(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return color.NRGBA{}, errors.Wrap(errors.ErrCodeInvalidColor, err, "invalid color %q", s)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// MustParse is Parse for constants; it panics on error.
func MustParse(s string) color.NRGBA {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as #rrggbb, ignoring alpha.
func Hex(c color.Color) string {
	cf, _ := colorful.MakeColor(opaque(c))
	return cf.Hex()
}

// Canonical parses s and returns its #rrggbb form, so differently written
// specs of the same color compare equal.
func Canonical(s string) (string, error) {
	c, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Hex(c), nil
}

func parse(s string) (colorful.Color, error) {
	if hex, ok := names[s]; ok {
		s = hex
	}
	switch {
	case s == "":
		return colorful.Color{}, errors.New(errors.ErrCodeInvalidColor, "empty color")
	case strings.HasPrefix(s, "#"):
		return colorful.Hex(s)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		args, err := split(s[4:len(s)-1], 3)
		if err != nil {
			return colorful.Color{}, err
		}
		var ch [3]float64
		for i, a := range args {
			v, err := channel(a)
			if err != nil {
				return colorful.Color{}, err
			}
			ch[i] = v
		}
		return colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, nil
	case strings.HasPrefix(s, "hsl(") && strings.HasSuffix(s, ")"):
		args, err := split(s[4:len(s)-1], 3)
		if err != nil {
			return colorful.Color{}, err
		}
		h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
		if err != nil {
			return colorful.Color{}, err
		}
		sat, err := percent(args[1])
		if err != nil {
			return colorful.Color{}, err
		}
		light, err := percent(args[2])
		if err != nil {
			return colorful.Color{}, err
		}
		h = math.Mod(h, 360)
		if h < 0 {
			h += 360
		}
		return colorful.Hsl(h, sat, light), nil
	}
	return colorful.Color{}, errors.New(errors.ErrCodeInvalidColor, "unrecognized color format")
}

func split(s string, n int) ([]string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, errors.New(errors.ErrCodeInvalidColor, "want %d components, got %d", n, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// channel parses an rgb() component to [0,1].
func channel(s string) (float64, error) {
	if strings.HasSuffix(s, "%") {
		return percent(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 255 {
		return 0, errors.New(errors.ErrCodeInvalidColor, "channel %v out of range 0-255", v)
	}
	return v / 255, nil
}

func percent(s string) (float64, error) {
	if !strings.HasSuffix(s, "%") {
		return 0, errors.New(errors.ErrCodeInvalidColor, "%q is not a percentage", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 100 {
		return 0, errors.New(errors.ErrCodeInvalidColor, "percentage %v out of range", v)
	}
	return v / 100, nil
}

func opaque(c color.Color) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 0xff
	return n
}
