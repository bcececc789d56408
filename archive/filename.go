package archive

import (
	"fmt"
	"strings"
	"unicode"
)

// maxPathLen is the common filesystem full-path limit the writer stays
// under.
const maxPathLen = 255

// Stem maps a display label to a filesystem-safe filename stem: only
// letters, digits, space, '.', '_' and '-' survive; a trailing
// extension-looking suffix is stripped so the sniffer's authoritative
// extension is never doubled; an empty result becomes a positional
// placeholder.
func Stem(display string, ordinal int) string {
	var b strings.Builder
	for _, r := range display {
		if unicode.IsLetter(r) || unicode.IsDigit(r) ||
			r == ' ' || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	stem := strings.TrimSpace(b.String())
	stem = stripExtSuffix(stem)
	if stem == "" {
		stem = fmt.Sprintf("file_%d", ordinal)
	}
	return stem
}

// stripExtSuffix removes a trailing ".xxx" where xxx is a short
// alphanumeric token, the same shape the sniffer accepts from a URL.
func stripExtSuffix(stem string) string {
	i := strings.LastIndexByte(stem, '.')
	if i <= 0 {
		return stem
	}
	suffix := stem[i+1:]
	if suffix == "" || len(suffix) > 5 {
		return stem
	}
	for _, r := range suffix {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return stem
		}
	}
	return strings.TrimRight(stem[:i], " .")
}

// fitStem truncates the stem so that dir + "/" + prefix + stem + "." +
// ext stays within the path limit, preserving the extension intact.
func fitStem(dir, prefix, stem, ext string) string {
	fixed := len(dir) + 1 + len(prefix) + 1 + len(ext)
	budget := maxPathLen - fixed
	if budget < 1 {
		budget = 1
	}
	for len(stem) > budget {
		// Truncate on rune boundaries.
		runes := []rune(stem)
		stem = string(runes[:len(runes)-1])
	}
	return stem
}
