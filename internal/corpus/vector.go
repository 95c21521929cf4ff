package corpus

import (
	"fmt"
	"strconv"
	"strings"
)

// vectorPrecision is the number of fractional digits written per component.
const vectorPrecision = 12

// FormatFloat renders x in fixed-point notation with twelve fractional
// digits, then strips trailing zeros and a bare trailing decimal point.
// The output never uses an exponent.
func FormatFloat(x float32) string {
	s := strconv.FormatFloat(float64(x), 'f', vectorPrecision, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatVector renders v as "[a,b,...]" using [FormatFloat] per component.
func FormatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*16 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(FormatFloat(x))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector parses the text produced by [FormatVector].
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("corpus: parse vector: missing brackets")
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("corpus: parse vector component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
