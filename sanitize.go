package officeconv

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	fallbackFileName = "file.bin"
	fallbackStem     = "file"
	fallbackExt      = "bin"

	maxNameRunes = 204
	maxStemRunes = 200
	maxExtBytes  = 10

	// maxStemBytes leaves room in a 255-byte path element for the dot, the
	// longest extension and the ".bin" output suffix.
	maxStemBytes = 255 - len(".") - maxExtBytes - len(".bin")
)

var (
	reIllegalChars = regexp.MustCompile(`[/?<>\\:*|"]`)
	reControlChars = regexp.MustCompile(`[\x{00}-\x{1f}\x{80}-\x{9f}]`)
	reReservedStem = regexp.MustCompile(`^\.+$`)
	reUnsafeChars  = regexp.MustCompile(`[&'%!"{}\[\]]`)
)

// SanitizeFileName turns an arbitrary user file name into a name that is
// safe to stage inside the engine namespace. The extension is everything
// after the last dot.
func SanitizeFileName(input string) string {
	if strings.TrimSpace(input) == "" {
		return fallbackFileName
	}

	stem, ext := input, ""
	if i := strings.LastIndex(input, "."); i >= 0 {
		stem, ext = input[:i], input[i+1:]
	}

	ext = reIllegalChars.ReplaceAllString(ext, "")
	ext = reControlChars.ReplaceAllString(ext, "")
	ext = strings.TrimSpace(reUnsafeChars.ReplaceAllString(ext, ""))
	if ext == "" || len(ext) > maxExtBytes {
		ext = fallbackExt
	}

	stem = reIllegalChars.ReplaceAllString(stem, "")
	stem = reControlChars.ReplaceAllString(stem, "")
	stem = reReservedStem.ReplaceAllString(stem, "")
	stem = reUnsafeChars.ReplaceAllString(stem, "")
	stem = strings.TrimSpace(stem)
	if stem == "" {
		stem = fallbackStem
	}
	stem = truncateStem(stem, min(maxStemRunes, maxNameRunes-1-utf8.RuneCountInString(ext)), maxStemBytes)
	return stem + "." + ext
}

// truncateStem cuts s on a rune boundary to at most maxRunes runes and
// maxBytes bytes.
func truncateStem(s string, maxRunes, maxBytes int) string {
	runes := 0
	for i, r := range s {
		if runes == maxRunes || i+utf8.RuneLen(r) > maxBytes {
			return strings.TrimRightFunc(s[:i], unicode.IsSpace)
		}
		runes++
	}
	return s
}

// stemOf strips the final extension from a sanitized name.
func stemOf(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
