// Package phonetic encodes names so that similar sounding spellings compare
// equal.
package phonetic

import (
	"strings"
	"unicode"
)

var soundexCodes = map[rune]byte{
	'B': '1', 'F': '1', 'P': '1', 'V': '1',
	'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
	'D': '3', 'T': '3',
	'L': '4',
	'M': '5', 'N': '5',
	'R': '6',
}

// Soundex returns the four character American Soundex code of name, or ""
// when name has no ASCII letters. H and W do not separate letters with the
// same code; vowels do.
func Soundex(name string) string {
	var letters []rune
	for _, r := range strings.ToUpper(name) {
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{byte(letters[0])}
	last := soundexCodes[letters[0]]
	for _, r := range letters[1:] {
		if len(code) == 4 {
			break
		}
		digit, ok := soundexCodes[r]
		switch {
		case ok && digit != last:
			code = append(code, digit)
			last = digit
		case ok:
		case r == 'H' || r == 'W':
		default:
			last = 0
		}
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// Match reports whether two names are equal ignoring case or share a
// Soundex code.
func Match(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if strings.EqualFold(a, b) {
		return true
	}
	ca := Soundex(a)
	return ca != "" && ca == Soundex(b)
}
