// Package metrics provides text measurement for the layout engine.
//
// Layout never touches fonts directly. It talks to a Measurer, and the
// compiler injects one at construction time. The default Heuristic
// measurer is fully deterministic, so two compiles of the same input
// always produce the same geometry regardless of the host's installed
// fonts.
package metrics

import (
	"strings"
	"unicode"
)

// FontMetrics carries the vertical metrics of a font at a given size.
type FontMetrics struct {
	Ascent     float64
	Descent    float64
	LineHeight float64
}

// Measurer resolves text geometry for a font family and size. FontPath
// is an optional on-disk font file hint and may be empty.
type Measurer interface {
	// Measure returns the advance width of a single line of text.
	Measure(text string, size float64, family, fontPath string) float64
	// Metrics returns ascent, descent, and line height for the font.
	Metrics(size float64, family, fontPath string) FontMetrics
}

// Heuristic is the default deterministic measurer. It approximates
// glyph advances per character class at a fraction of the em size and
// uses fixed 0.8em/0.2em vertical metrics.
type Heuristic struct{}

var _ Measurer = Heuristic{}

// Measure returns the approximate advance width of text.
func (Heuristic) Measure(text string, size float64, _, _ string) float64 {
	width := 0.0
	for _, ch := range text {
		switch {
		case unicode.IsSpace(ch):
			width += size * 0.33
		case ch == 'i' || ch == 'l':
			width += size * 0.3
		case strings.ContainsRune("mwMW@#", ch):
			width += size * 0.9
		default:
			width += size * 0.6
		}
	}
	return width
}

// Metrics returns fixed fractional vertical metrics.
func (Heuristic) Metrics(size float64, _, _ string) FontMetrics {
	return FontMetrics{
		Ascent:     0.8 * size,
		Descent:    0.2 * size,
		LineHeight: size,
	}
}

// Fixed is a test measurer where every character is exactly CharWidth
// wide. It makes wrap and width expectations trivially computable.
type Fixed struct {
	CharWidth float64
}

var _ Measurer = Fixed{}

func (f Fixed) Measure(text string, _ float64, _, _ string) float64 {
	return float64(len([]rune(text))) * f.CharWidth
}

func (f Fixed) Metrics(size float64, _, _ string) FontMetrics {
	return FontMetrics{Ascent: 0.8 * size, Descent: 0.2 * size, LineHeight: size}
}

// Wrap splits text into lines that fit the width limit using greedy
// whitespace-preserving accumulation: a chunk that would overflow the
// current line starts a new one, and a single overlong word still
// occupies its own line rather than being split. Always returns at
// least one line.
func Wrap(m Measurer, text string, limit, size float64, family, fontPath string) []string {
	var lines []string
	current := ""
	for _, chunk := range splitKeepSpace(strings.TrimSpace(text)) {
		candidate := chunk
		if current != "" {
			candidate = current + chunk
		}
		if m.Measure(strings.TrimSpace(candidate), size, family, fontPath) <= limit {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, strings.TrimSpace(current))
		}
		current = strings.TrimSpace(chunk)
	}
	if current != "" {
		lines = append(lines, strings.TrimSpace(current))
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// splitKeepSpace splits text into alternating word and whitespace
// chunks, keeping the whitespace so joined candidates preserve the
// original spacing.
func splitKeepSpace(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, ch := range text {
		isSpace := unicode.IsSpace(ch)
		if i > 0 && isSpace != inSpace {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
