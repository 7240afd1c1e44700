package runtime

import (
	"strings"
	"unicode"
)

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// FormatKey turns a context key into an expression identifier.
func FormatKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// FormatExpression rewrites hyphenated identifiers so they match FormatKey.
// A hyphen joins an identifier only when it has identifier characters on
// both sides and the word it continues starts with a letter or '_', so
// subtraction must be written with spaces ("a - b"). String literals are
// left untouched.
func FormatExpression(e string) string {
	result := []rune(e)
	var quote rune
	escapeNext := false

	for i, r := range result {
		if escapeNext {
			escapeNext = false
			continue
		}

		if quote != 0 {
			switch {
			case r == '\\' && quote != '`':
				escapeNext = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch r {
		case '"', '\'', '`':
			quote = r
		case '-':
			if i == 0 || i == len(result)-1 {
				continue
			}
			if isIdentRune(result[i-1]) && isIdentRune(result[i+1]) && startsWord(result, i) {
				result[i] = '_'
			}
		}
	}
	return string(result)
}

// startsWord reports whether the word ending just before pos begins with a
// letter or '_'.
func startsWord(runes []rune, pos int) bool {
	start := pos - 1
	for start > 0 && isIdentRune(runes[start-1]) {
		start--
	}
	return !unicode.IsDigit(runes[start])
}
