package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	invalidChars   = regexp.MustCompile(`[^a-z0-9]+`)
	repeatedDashes = regexp.MustCompile(`-{2,}`)
)

const maxLength = 80

// Make derives a URL-safe slug from a display name. Accents are stripped so
// "Verão" becomes "verao".
func Make(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	s := strings.ToLower(strings.TrimSpace(stripped))
	s = invalidChars.ReplaceAllString(s, "-")
	s = repeatedDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxLength {
		s = strings.Trim(s[:maxLength], "-")
	}
	return s
}

// Valid reports whether s is an acceptable slug as provided by a client.
func Valid(s string) bool {
	return len(s) <= maxLength && slugPattern.MatchString(s)
}
