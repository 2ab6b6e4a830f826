package extractor

import (
	"strings"

	"github.com/shopspring/decimal"
)

// extractAmount consumes the first whitespace token that reads as a money
// amount, optionally prefixed by "r$".
func extractAmount(s string) (decimal.Decimal, string, bool) {
	fields := strings.Fields(s)
	for i, tok := range fields {
		candidate := strings.TrimRight(strings.TrimPrefix(tok, "r$"), ".,;:!?")
		if candidate == "" {
			continue
		}
		if amount, ok := ParseAmount(candidate); ok {
			return amount, removeTokens(fields, i, 1), true
		}
	}
	return decimal.Zero, s, false
}

// ParseAmount reads a number written with either "." or "," as decimal
// separator.
//
// With both separators present the last one is the decimal point. With a
// single kind of separator, a one or two digit tail after its last
// occurrence is the fraction; any other tail means the separator groups
// thousands. A bare digit run is an integer.
func ParseAmount(tok string) (decimal.Decimal, bool) {
	if tok == "" || !isDigit(tok[0]) {
		return decimal.Zero, false
	}
	for i := 0; i < len(tok); i++ {
		if !isDigit(tok[i]) && tok[i] != '.' && tok[i] != ',' {
			return decimal.Zero, false
		}
	}

	lastDot := strings.LastIndexByte(tok, '.')
	lastComma := strings.LastIndexByte(tok, ',')
	sep := lastDot
	if lastComma > sep {
		sep = lastComma
	}
	if sep < 0 {
		return parseParts(tok, "")
	}

	intPart, frac := tok[:sep], tok[sep+1:]
	if lastDot >= 0 && lastComma >= 0 {
		if strings.Count(tok, tok[sep:sep+1]) > 1 {
			return decimal.Zero, false
		}
		return parseParts(stripSeparators(intPart), frac)
	}
	if len(frac) == 1 || len(frac) == 2 {
		return parseParts(stripSeparators(intPart), frac)
	}
	return parseParts(stripSeparators(tok), "")
}

func parseParts(intPart, frac string) (decimal.Decimal, bool) {
	if intPart == "" {
		return decimal.Zero, false
	}
	s := intPart
	if frac != "" {
		s += "." + frac
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func stripSeparators(s string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(s)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
