// Package sanitize turns arbitrary user text into safe channel-name
// fragments.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength caps a sanitized fragment so composed channel names stay
// under the gateway's limit.
const MaxLength = 70

// NFD-decompose, drop combining marks, recompose.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ChannelName lowercases the input, strips diacritics, removes
// characters outside [a-z0-9 _-], collapses whitespace and repeated
// hyphens into single hyphens, and truncates to MaxLength. The
// fallback is returned when the input reduces to nothing.
// Deterministic and total: same input, same output.
func ChannelName(input, fallback string) string {
	if input == "" {
		return fallback
	}

	name := strings.ToLower(input)
	if stripped, _, err := transform.String(stripMarks, name); err == nil {
		name = stripped
	}

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == ' ':
			return r
		default:
			return -1
		}
	}, name)

	name = strings.Join(strings.Fields(name), "-")
	name = collapseHyphens(name)

	if name == "" {
		name = fallback
	}
	if len(name) > MaxLength {
		name = name[:MaxLength]
	}
	return name
}

func collapseHyphens(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevHyphen := false
	for _, r := range s {
		if r == '-' {
			if prevHyphen {
				continue
			}
			prevHyphen = true
		} else {
			prevHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
