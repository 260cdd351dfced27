package export

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var reNonFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ASCIIFold strips Vietnamese diacritics so text survives latin-1 only sinks
// such as the core PDF fonts or legacy filename headers.
func ASCIIFold(s string) string {
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SafeFilename turns free text into an ASCII filename fragment.
func SafeFilename(s string) string {
	s = reNonFilename.ReplaceAllString(ASCIIFold(strings.TrimSpace(s)), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "na"
	}
	if len(s) > 100 {
		return s[:100]
	}
	return s
}
