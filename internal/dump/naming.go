package dump

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Filename creates the dump file name for one raw buffer.
// This is a pure function: (model, serial, page) → filename
//
// Format: Model-Serial-page.bin
//
// Character handling:
// - Non-ASCII (including the placeholder for undecodable bytes) → normalized
//   to ASCII equivalents or dropped
// - Spaces → underscores
// - / and \ → underscores (filesystem-illegal)
// - Shell metacharacters ($ ! * ? & ; | < > etc.) → underscores
// - Quotes (' " `) → removed
// - Multiple consecutive underscores → collapsed to single underscore
// - Leading/trailing underscores → trimmed
//
// An identity field that sanitizes to nothing becomes "unknown".
func Filename(model, serial, page string) string {
	parts := []string{
		orUnknown(sanitize(model)),
		orUnknown(sanitize(serial)),
		orUnknown(sanitize(page)),
	}
	return strings.Join(parts, "-") + Ext
}

// Ext is the extension of every dump file.
const Ext = ".bin"

// PageOf returns the page component of a dump file name: the text between
// the last '-' and the extension.
// This is a pure function.
func PageOf(name string) (string, bool) {
	name = strings.TrimSuffix(name, Ext)
	i := strings.LastIndexByte(name, '-')
	if i < 0 || i == len(name)-1 {
		return "", false
	}
	return name[i+1:], true
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// sanitize prepares a string for use in a filename.
// Replaces characters that are illegal or require shell quoting.
// Collapses multiple consecutive underscores to a single underscore.
func sanitize(s string) string {
	s = normalizeToASCII(s)

	var b strings.Builder
	b.Grow(len(s))

	lastWasUnderscore := false
	for _, r := range s {
		switch r {
		// Remove quotes (require shell escaping)
		case '\'', '"', '`':

		case ' ', '/', '\\', '$', '!', '*', '?', '[', ']', '(', ')', '{', '}', '<', '>', '|', '&', ';', ':':
			if !lastWasUnderscore {
				b.WriteByte('_')
				lastWasUnderscore = true
			}

		default:
			if r < 0x20 || r == 0x7f {
				continue
			}
			b.WriteRune(r)
			lastWasUnderscore = r == '_'
		}
	}

	return strings.Trim(b.String(), "_")
}

// normalizeToASCII decomposes characters with NFKD (é→e) and strips
// anything still outside ASCII.
func normalizeToASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, _ := transform.String(t, s)

	var b strings.Builder
	for _, r := range result {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
