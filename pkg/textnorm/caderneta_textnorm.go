// Package textnorm folds, tokenizes and reduces Portuguese chat text to the
// features used by the intent classifier and the transaction extractor.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NumberToken replaces every numeric token in Normalize output.
const NumberToken = "<num>"

// StripAccents removes combining marks: "salário" -> "salario".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases and strips accents.
func Fold(s string) string {
	return StripAccents(Lower(s))
}

// Casers keep state, so each call builds its own.
func Lower(s string) string { return cases.Lower(language.BrazilianPortuguese).String(s) }
// Upper upper-cases with Portuguese rules.
func Upper(s string) string { return cases.Upper(language.BrazilianPortuguese).String(s) }
func Title(s string) string { return cases.Title(language.BrazilianPortuguese).String(s) }

// Tokenize splits on anything that is not a letter, digit or one of the
// separators that belong inside amounts and dates.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == ',' || r == '/' || r == '$')
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,/")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Normalize runs the full feature pipeline: fold, tokenize, drop stopwords,
// collapse numbers and lemmatize.
func Normalize(s string) []string {
	tokens := Tokenize(Fold(s))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if IsNumeric(tok) {
			out = append(out, NumberToken)
			continue
		}
		if IsStopword(tok) {
			continue
		}
		out = append(out, Lemmatize(tok))
	}
	return out
}

// IsNumeric reports whether tok is made of digits and separators only and
// holds at least one digit.
func IsNumeric(tok string) bool {
	tok = strings.TrimPrefix(tok, "r$")
	digits := 0
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == ',' || r == '/' || r == '-' || r == ':':
		default:
			return false
		}
	}
	return digits > 0
}
