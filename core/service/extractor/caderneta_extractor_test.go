package extractor

import (
	"errors"
	"testing"
	"time"

	"caderneta_server/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 14, 15, 30, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return New(WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		typ        domain.TransactionType
		wantAmount decimal.Decimal
		wantMethod domain.PaymentMethod
		wantCat    string
		wantAt     time.Time
	}{
		{
			name:       "full timestamp",
			msg:        "paguei 53.78 para receita federal em 2025-03-20 13:42:29",
			typ:        domain.TransactionDebit,
			wantAmount: dec("53.78"),
			wantCat:    "RECEITA FEDERAL",
			wantAt:     time.Date(2025, 3, 20, 13, 42, 29, 0, time.UTC),
		},
		{
			name:       "comma decimal and day/month",
			msg:        "recebi 1.000,50 de salário em 20/03",
			typ:        domain.TransactionCredit,
			wantAmount: dec("1000.50"),
			wantCat:    "SALÁRIO",
			wantAt:     time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "payment method",
			msg:        "paguei 150 no mercado pix em 15/03",
			typ:        domain.TransactionDebit,
			wantAmount: dec("150"),
			wantMethod: domain.PaymentPix,
			wantCat:    "MERCADO",
			wantAt:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "no date defaults to today midnight",
			msg:        "vendi 2300 de buffet",
			typ:        domain.TransactionCredit,
			wantAmount: dec("2300"),
			wantCat:    "BUFFET",
			wantAt:     time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "no category",
			msg:        "paguei 20",
			typ:        domain.TransactionDebit,
			wantAmount: dec("20"),
			wantCat:    domain.DefaultCategory,
			wantAt:     time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "multi word method and currency prefix",
			msg:        "gastei R$ 89,90 na farmácia no cartão de crédito ontem",
			typ:        domain.TransactionDebit,
			wantAmount: dec("89.90"),
			wantMethod: domain.PaymentCredit,
			wantCat:    "FARMÁCIA",
			wantAt:     time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "inner stopwords kept",
			msg:        "paguei 180,5 conta de luz boleto",
			typ:        domain.TransactionDebit,
			wantAmount: dec("180.5"),
			wantMethod: domain.PaymentSlip,
			wantCat:    "CONTA DE LUZ",
			wantAt:     time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "date followed by punctuation",
			msg:        "recebi 1.000,50 de salário em 20/03.",
			typ:        domain.TransactionCredit,
			wantAmount: dec("1000.50"),
			wantCat:    "SALÁRIO",
			wantAt:     time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "date in parentheses",
			msg:        "paguei 50 mercado (15/03)",
			typ:        domain.TransactionDebit,
			wantAmount: dec("50"),
			wantCat:    "MERCADO",
			wantAt:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "leading noun trigger is the category",
			msg:        "mercado 150 pix",
			typ:        domain.TransactionDebit,
			wantAmount: dec("150"),
			wantMethod: domain.PaymentPix,
			wantCat:    "MERCADO",
			wantAt:     time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		},
	}

	e := newTestExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(tt.msg, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, got.Type)
			assert.True(t, tt.wantAmount.Equal(got.Amount), "amount %s", got.Amount)
			assert.Equal(t, tt.wantMethod, got.PaymentMethod)
			assert.Equal(t, tt.wantCat, got.Category)
			assert.True(t, tt.wantAt.Equal(got.OccurredAt), "occurredAt %s", got.OccurredAt)
		})
	}
}

func TestExtractAmountMissing(t *testing.T) {
	_, err := newTestExtractor().Extract("paguei aluguel em 10/05", domain.TransactionDebit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmountMissing))
}

func TestExtractRejectsOtherType(t *testing.T) {
	_, err := newTestExtractor().Extract("paguei 10", domain.TransactionType("OTHER"))
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10.500,75", "10500.75", true},
		{"10,500.75", "10500.75", true},
		{"10500", "10500", true},
		{"1.000", "1000", true},
		{"1,000", "1000", true},
		{"53.78", "53.78", true},
		{"12,5", "12.5", true},
		{"1.000.000", "1000000", true},
		{"1.000.50", "1000.50", true},
		{"abc", "", false},
		{",50", "", false},
		{"1.000,50.3", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, dec(tt.want).Equal(got), "got %s", got)
			}
		})
	}
}

func TestSteps(t *testing.T) {
	t.Run("drop trigger only when leading", func(t *testing.T) {
		assert.Equal(t, "50 lanche", dropTrigger("p 50 lanche"))
		assert.Equal(t, "almoço 30", dropTrigger("almoço 30"))
	})

	t.Run("invalid day/month is ignored", func(t *testing.T) {
		at, rest := extractDate("31/02 aluguel", fixedNow)
		assert.Equal(t, "31/02 aluguel", rest)
		assert.True(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC).Equal(at))
	})

	t.Run("invalid day/month does not hide a later one", func(t *testing.T) {
		at, rest := extractDate("31/02 15/03 aluguel", fixedNow)
		assert.Equal(t, "31/02 aluguel", rest)
		assert.True(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC).Equal(at))
	})

	t.Run("day/month inside longer digit runs is ignored", func(t *testing.T) {
		at, rest := extractDate("nf 123/45 e 1/2/3", fixedNow)
		assert.Equal(t, "nf 123/45 e 1/2/3", rest)
		assert.True(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC).Equal(at))
	})

	t.Run("noun triggers survive drop", func(t *testing.T) {
		assert.Equal(t, "mercado 150", dropTrigger("mercado 150"))
		assert.Equal(t, "150 mercado", dropTrigger("paguei 150 mercado"))
	})

	t.Run("day/month/year", func(t *testing.T) {
		at, rest := extractDate("aluguel 05/01/24", fixedNow)
		assert.Equal(t, "aluguel", rest)
		assert.True(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC).Equal(at))
	})

	t.Run("earliest payment method wins", func(t *testing.T) {
		m, rest := extractPaymentMethod("pix depois boleto")
		assert.Equal(t, domain.PaymentPix, m)
		assert.Equal(t, "depois boleto", rest)
	})

	t.Run("category trims edge stopwords only", func(t *testing.T) {
		assert.Equal(t, "CONTA DE ÁGUA", extractCategory("na conta de água em"))
		assert.Equal(t, domain.DefaultCategory, extractCategory("de para em"))
	})
}
