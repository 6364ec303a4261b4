package patients

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Fold lowercases s and strips diacritics so that "José" and "jose" compare
// equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return folder.String(strings.TrimSpace(out))
}

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// minDigitQuery is the shortest digit run matched against cpf and phone.
const minDigitQuery = 3

// Match reports whether p matches the search query: a folded substring of
// the name, or, for queries made of digits, a substring of the cpf or phone
// digits.
func Match(p *Patient, query string) bool {
	q := Fold(query)
	if q == "" {
		return true
	}
	if strings.Contains(Fold(p.Nome), q) {
		return true
	}
	if d, ok := numericQuery(query); ok {
		return strings.Contains(Digits(p.CPF), d) || strings.Contains(Digits(p.Celular), d)
	}
	return false
}

// numericQuery accepts digits mixed with the separators people type in
// phone numbers and CPFs.
func numericQuery(s string) (string, bool) {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ', r == '.', r == '-', r == '(', r == ')', r == '/', r == '+':
		default:
			return "", false
		}
	}
	d := Digits(s)
	return d, len(d) >= minDigitQuery
}
