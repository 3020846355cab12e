package common

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var filenameStripPattern = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a client supplied filename to a flat, ASCII-only name that is
// safe to join onto a directory. Path separators become word breaks, whitespace runs
// collapse to a single underscore, any other character outside [A-Za-z0-9_.-] is dropped
// and leading/trailing dots and underscores are trimmed. The result never contains a
// separator and is never "." or "..". It may be empty, callers must treat that as invalid.
//
//	"../../etc/passwd"        -> "etc_passwd"
//	"My cool movie.mov"       -> "My_cool_movie.mov"
//	"i contain cool ümläuts"  -> "i_contain_cool_umlauts"
func SecureFilename(name string) string {
	// Fold accented characters to their ASCII base and drop everything else non-ASCII
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		b.WriteRune(r)
	}
	ascii := b.String()

	ascii = strings.ReplaceAll(ascii, "/", " ")
	ascii = strings.ReplaceAll(ascii, "\\", " ")

	joined := strings.Join(strings.Fields(ascii), "_")
	cleaned := filenameStripPattern.ReplaceAllString(joined, "")
	return strings.Trim(cleaned, "._")
}

// FileExtension returns the lowercase extension after the last dot, without the dot.
// ok is false when the name has no dot.
func FileExtension(name string) (ext string, ok bool) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", false
	}
	return strings.ToLower(name[idx+1:]), true
}
