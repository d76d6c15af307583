package board

import (
	"fmt"
	"math"
)

const (
	maxColor     = 0xFFFFFF
	maxComponent = 0xFF
	tupleLength  = 3
)

// Color is a pixel color in 0xRRGGBB form.
type Color uint32

// RGB builds a Color from its components.
func RGB(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

// Components splits c into its red, green and blue parts.
func (c Color) Components() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c) //nolint:gosec // Truncation is the point.
}

// String renders c as #RRGGBB.
func (c Color) String() string {
	return fmt.Sprintf("#%06X", uint32(c))
}

// ParseColor converts a user-assigned pixel value into a Color.
// A value is either a tuple (slice or array) of three integers in 0..255
// or an integer hexadecimal color in 0x000000..0xFFFFFF. Numbers decoded
// from JSON arrive as float64 and are accepted when integral.
func ParseColor(value any) (Color, error) {
	switch v := value.(type) {
	case []any:
		return parseTuple(v)
	case []int:
		return parseTuple(toAny(v))
	case []float64:
		return parseTuple(toAny(v))
	case [3]int:
		return parseTuple(toAny(v[:]))
	case [3]uint8:
		return RGB(v[0], v[1], v[2]), nil
	case Color:
		return parseHex(int64(v))
	case bool:
		// bool is never a color even though Python treats it as an int.
		return 0, ErrAssignPixelType
	}

	n, ok := integral(value)
	if !ok {
		return 0, ErrAssignPixelType
	}

	return parseHex(n)
}

func parseHex(n int64) (Color, error) {
	if n < 0 || n > maxColor {
		return 0, ErrPixelRange
	}

	return Color(n), nil
}

func parseTuple(values []any) (Color, error) {
	if len(values) != tupleLength {
		return 0, ErrValidPixelAssign
	}

	var parts [tupleLength]uint8

	for i, raw := range values {
		n, ok := integral(raw)
		if !ok || n < 0 || n > maxComponent {
			return 0, ErrValidPixelAssign
		}

		parts[i] = uint8(n)
	}

	return RGB(parts[0], parts[1], parts[2]), nil
}

// integral extracts an integer from any numeric value, rejecting fractions.
func integral(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return clampUint(uint64(v)), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return clampUint(v), true
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	default:
		return 0, false
	}
}

// clampUint saturates at MaxInt64.
func clampUint(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

func integralFloat(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}

	// Saturate values int64 cannot hold; both ends are out of every color range.
	switch {
	case v >= math.MaxInt64:
		return math.MaxInt64, true
	case v <= math.MinInt64:
		return math.MinInt64, true
	}

	return int64(v), true
}

func toAny[T any](values []T) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}

	return result
}
