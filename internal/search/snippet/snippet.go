// Package snippet extracts bounded context windows around query matches for
// result previews. Extraction is a pure function of the message content and
// the query clauses.
package snippet

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultRadius is the number of characters kept on each side of the
	// first match.
	DefaultRadius = 50
	// fallbackLength bounds the prefix returned when no literal substring
	// match is found.
	fallbackLength = 100
	ellipsis       = "..."
)

// Extract returns a context window around the first case-insensitive
// occurrence of any needle in content. Phrases should be ordered before
// single terms in needles so they take priority. When no needle occurs
// literally (a match through normalisation only), the first fallbackLength
// characters are returned instead. Output is ellipsis-marked where
// truncated and trimmed to word boundaries where feasible.
func Extract(content string, needles []string, radius int) string {
	if radius <= 0 {
		radius = DefaultRadius
	}
	runes := []rune(content)

	start, end, found := firstMatch(content, needles)
	if !found {
		if len(runes) <= fallbackLength {
			return content
		}
		return strings.TrimRightFunc(string(runes[:fallbackLength]), unicode.IsSpace) + ellipsis
	}

	// Convert the byte offsets of the match to rune offsets.
	matchStart := utf8.RuneCountInString(content[:start])
	matchEnd := matchStart + utf8.RuneCountInString(content[start:end])

	windowStart := matchStart - radius
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := matchEnd + radius
	if windowEnd > len(runes) {
		windowEnd = len(runes)
	}

	// Widen to word boundaries so the window does not open or close
	// mid-word, without crossing the match itself.
	for windowStart > 0 && !unicode.IsSpace(runes[windowStart-1]) && matchStart-windowStart < 2*radius {
		windowStart--
	}
	for windowEnd < len(runes) && !unicode.IsSpace(runes[windowEnd]) && windowEnd-matchEnd < 2*radius {
		windowEnd++
	}

	out := strings.TrimSpace(string(runes[windowStart:windowEnd]))
	if windowStart > 0 {
		out = ellipsis + out
	}
	if windowEnd < len(runes) {
		out = out + ellipsis
	}
	return out
}

// firstMatch finds the earliest-priority needle: the first needle in order
// that occurs in content wins, matching case-insensitively. Returns byte
// offsets into content.
func firstMatch(content string, needles []string) (start, end int, found bool) {
	// ToLower can change byte lengths for some scripts, so an index into the
	// lowered string is not an index into content. Lower one rune at a time
	// and keep a byte-offset table mapping each lowered byte back to the
	// start of the original rune it came from.
	lowered := make([]byte, 0, len(content))
	offsets := make([]int, 0, len(content)+1)
	var buf [utf8.UTFMax]byte
	for i, r := range content {
		n := utf8.EncodeRune(buf[:], unicode.ToLower(r))
		for j := 0; j < n; j++ {
			offsets = append(offsets, i)
		}
		lowered = append(lowered, buf[:n]...)
	}
	offsets = append(offsets, len(content))

	for _, needle := range needles {
		needle = strings.ToLower(strings.TrimSpace(needle))
		if needle == "" {
			continue
		}
		idx := bytes.Index(lowered, []byte(needle))
		if idx < 0 {
			continue
		}
		return offsets[idx], offsets[idx+len(needle)], true
	}
	return 0, 0, false
}
