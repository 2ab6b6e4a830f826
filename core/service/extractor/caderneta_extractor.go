// Package extractor reads amount, date, payment method and category out of a
// free-form financial message.
//
// Extraction is a chain of pure steps. Each step receives the text left over
// by the previous one and returns what it found plus the remainder.
package extractor

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/textnorm"
)

// ErrAmountMissing is the only fatal extraction failure.
var ErrAmountMissing = apperr.New(apperr.CodeAmountMissing, "no amount found in message", http.StatusUnprocessableEntity)

// Extractor pulls transaction fields out of a classified message.
type Extractor struct {
	now func() time.Time
	loc *time.Location
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the source of "now" used for date defaults.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLocation sets the zone dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) { e.loc = loc }
}

// New creates an extractor using the local clock and zone.
func New(opts ...Option) *Extractor {
	e := &Extractor{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds a transaction of type t from raw. Only a missing amount is
// an error; every other field falls back to its default.
func (e *Extractor) Extract(raw string, t domain.TransactionType) (domain.ExtractedTransaction, error) {
	if !t.Valid() {
		return domain.ExtractedTransaction{}, apperr.InvalidInput("type", fmt.Sprintf("not a transaction type: %q", t))
	}
	message := strings.TrimSpace(textnorm.Lower(raw))
	now := e.now().In(e.loc)

	rest := dropTrigger(message)
	occurredAt, rest := extractDate(rest, now)
	amount, rest, ok := extractAmount(rest)
	if !ok {
		return domain.ExtractedTransaction{}, ErrAmountMissing.WithDetail("message", raw)
	}
	method, rest := extractPaymentMethod(rest)
	category := extractCategory(rest)

	return domain.ExtractedTransaction{
		Type:          t,
		Amount:        amount,
		PaymentMethod: method,
		Category:      category,
		OccurredAt:    occurredAt,
		RawMessage:    message,
	}, nil
}

// dropTrigger removes a leading trigger verb. Noun triggers stay for
// extractCategory.
func dropTrigger(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	if isDroppableTrigger(textnorm.Fold(fields[0])) {
		return strings.Join(fields[1:], " ")
	}
	return s
}

func removeSpan(s string, start, end int) string {
	return strings.Join(strings.Fields(s[:start]+" "+s[end:]), " ")
}

func removeTokens(fields []string, start, n int) string {
	out := make([]string, 0, len(fields)-n)
	out = append(out, fields[:start]...)
	out = append(out, fields[start+n:]...)
	return strings.Join(out, " ")
}
