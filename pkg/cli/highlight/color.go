/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package highlight provides the color of a highlight and its conversions between the
// encodings used by readers and by the sync service
package highlight

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Color is an RGB highlight color
type Color struct {
	R, G, B uint8
}

// Yellow is the color of a highlight without a stored color
var Yellow = Color{R: 0xFF, G: 0xFF, B: 0x00}

// named holds the highlight colors readers store by name
var named = map[string]Color{
	"yellow": Yellow,
	"red":    {R: 0xFF, G: 0x33, B: 0x00},
	"orange": {R: 0xFF, G: 0x88, B: 0x00},
	"green":  {R: 0x00, G: 0xAA, B: 0x66},
	"olive":  {R: 0x88, G: 0xFF, B: 0x77},
	"cyan":   {R: 0x00, G: 0xFF, B: 0xEE},
	"blue":   {R: 0x00, G: 0x66, B: 0xFF},
	"purple": {R: 0xEE, G: 0x00, B: 0xFF},
	"gray":   {R: 0x80, G: 0x80, B: 0x80},
}

// FromPacked decodes a color packed as 0xRRGGBB. Bits above the low 24 are ignored.
func FromPacked(v uint32) Color {
	return Color{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}
}

// Packed encodes the color as 0xRRGGBB
func (c Color) Packed() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func toByte(f float64) uint8 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}

	return uint8(math.Round(f * 255))
}

// FromTriple decodes a color from normalized float components in [0, 1].
// Components out of range are clamped.
func FromTriple(r, g, b float64) Color {
	return Color{R: toByte(r), G: toByte(g), B: toByte(b)}
}

// Triple encodes the color as normalized float components
func (c Color) Triple() [3]float64 {
	return [3]float64{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}
}

// ParseHex decodes a color from a #RRGGBB string. The leading hash is optional.
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, errors.Errorf("invalid hex color %q", s)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, errors.Wrapf(err, "parsing hex color %q", s)
	}

	return FromPacked(uint32(v)), nil
}

// Hex encodes the color as an upper case #RRGGBB string
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// bareHex reports whether s is an RRGGBB string without the hash. Six decimal
// digits are read as a packed integer instead.
func bareHex(s string) bool {
	if len(s) != 6 {
		return false
	}

	letter := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
			letter = true
		default:
			return false
		}
	}

	return letter
}

// Parse decodes a stored color in any of the supported encodings: a color name, a
// #RRGGBB string with or without the hash, a comma separated float triple, or a
// packed integer. An empty value yields Yellow.
func Parse(raw string) (Color, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Yellow, nil
	}

	if c, ok := named[strings.ToLower(raw)]; ok {
		return c, nil
	}

	if strings.HasPrefix(raw, "#") || bareHex(raw) {
		return ParseHex(raw)
	}

	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		if len(parts) != 3 {
			return Color{}, errors.Errorf("invalid color triple %q", raw)
		}

		var f [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return Color{}, errors.Wrapf(err, "parsing color component %q", p)
			}
			f[i] = v
		}

		return FromTriple(f[0], f[1], f[2]), nil
	}

	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return Color{}, errors.Wrapf(err, "parsing packed color %q", raw)
	}

	return FromPacked(uint32(v)), nil
}

// HexOrDefault converts a stored color to #RRGGBB, falling back to yellow when the
// stored value is absent or cannot be decoded
func HexOrDefault(raw string) string {
	c, err := Parse(raw)
	if err != nil {
		return Yellow.Hex()
	}

	return c.Hex()
}
