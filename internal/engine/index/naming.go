package index

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IdentifierFromFilename derives the name a default export is usually
// imported as: the camel-cased basename without extensions, capitalized when
// the file name does not start with a lowercase letter.
func IdentifierFromFilename(file string) string {
	base := filepath.Base(file)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return ""
	}
	name := base
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	identifier := CamelCase(name)
	first, _ := utf8.DecodeRuneInString(base)
	if unicode.ToUpper(first) == first {
		return upperFirst(identifier)
	}
	return identifier
}

// CamelCase joins the words of s as lowerCamelCase.
func CamelCase(s string) string {
	var b strings.Builder
	for i, word := range splitWords(s) {
		word = strings.ToLower(word)
		if i > 0 {
			word = upperFirst(word)
		}
		b.WriteString(word)
	}
	return b.String()
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// splitWords splits on non-alphanumerics, lower-to-upper transitions,
// acronym ends ("XMLHttp" -> "XML", "Http") and letter/digit boundaries.
func splitWords(s string) []string {
	var words []string
	runes := []rune(s)
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(r):
			flush(i)
			start = i
		case unicode.IsUpper(prev) && unicode.IsUpper(r) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			flush(i)
			start = i
		case unicode.IsDigit(prev) != unicode.IsDigit(r):
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}
