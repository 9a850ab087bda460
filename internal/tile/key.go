package tile

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Key builds the stable identity of one tile request, used for hotness
// tracking and the X-Request-Digest diagnostic header.
func Key(bodyID, layer string, zoom, row, col int) string {
	return fmt.Sprintf("%s:%s:%d:%d:%d", bodyID, sanitizeLayer(layer), zoom, row, col)
}

// Digest is a short stable hash of a tile key.
func Digest(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

func sanitizeLayer(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
