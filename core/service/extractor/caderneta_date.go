package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"caderneta_server/pkg/textnorm"
)

var (
	timestampPattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})[ t](\d{2}):(\d{2}):(\d{2})`)
	dayMonthPattern  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?`)
)

// extractDate prefers a full timestamp, then D/M[/Y], then the words
// "hoje"/"ontem", and otherwise returns midnight of now's day.
func extractDate(s string, now time.Time) (time.Time, string) {
	loc := now.Location()

	for _, m := range timestampPattern.FindAllStringSubmatchIndex(s, -1) {
		n := atoiSpans(s, m, 6)
		t := time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, loc)
		if t.Year() == n[0] && int(t.Month()) == n[1] && t.Day() == n[2] && n[3] < 24 && n[4] < 60 && n[5] < 60 {
			return t, removeSpan(s, m[0], m[1])
		}
	}

	for _, m := range dayMonthPattern.FindAllStringSubmatchIndex(s, -1) {
		if !dateBoundary(s, m[0]-1) || !dateBoundary(s, m[1]) {
			continue
		}
		day, _ := strconv.Atoi(s[m[2]:m[3]])
		month, _ := strconv.Atoi(s[m[4]:m[5]])
		year := now.Year()
		end := m[5]
		if m[6] >= 0 {
			year, _ = strconv.Atoi(s[m[6]:m[7]])
			if year < 100 {
				year += 2000
			}
			end = m[7]
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		if t.Day() == day && int(t.Month()) == month {
			start := m[2]
			if start > 0 && end < len(s) && s[start-1] == '(' && s[end] == ')' {
				start, end = start-1, end+1
			}
			return t, removeSpan(s, start, end)
		}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	fields := strings.Fields(s)
	for i, f := range fields {
		switch textnorm.Fold(f) {
		case "hoje":
			return midnight, removeTokens(fields, i, 1)
		case "ontem":
			return midnight.AddDate(0, 0, -1), removeTokens(fields, i, 1)
		}
	}
	return midnight, s
}

// dateBoundary reports whether the byte at i may border a D/M date.
func dateBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return c != '/' && (c < '0' || c > '9')
}

func atoiSpans(s string, m []int, groups int) []int {
	out := make([]int, groups)
	for g := 0; g < groups; g++ {
		out[g], _ = strconv.Atoi(s[m[2+2*g]:m[3+2*g]])
	}
	return out
}
