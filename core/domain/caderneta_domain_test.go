package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTriggerTypeDebitWinsOnOverlap(t *testing.T) {
	tt, ok := TriggerType("entrada")
	assert.True(t, ok)
	assert.Equal(t, TransactionDebit, tt)

	tt, ok = TriggerType("vendi")
	assert.True(t, ok)
	assert.Equal(t, TransactionCredit, tt)

	_, ok = TriggerType("aluguel")
	assert.False(t, ok)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"whatsapp:+5511987654321", "5511987654321"},
		{"whatsapp:+551187654321", "5511987654321"},
		{"+1 (415) 555-0100", "14155550100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), tt.in)
	}
}

func TestIsBrazilianMobile(t *testing.T) {
	assert.True(t, IsBrazilianMobile("5511987654321"))
	assert.True(t, IsBrazilianMobile("11987654321"))
	assert.False(t, IsBrazilianMobile("551187654321"), "missing ninth digit")
	assert.False(t, IsBrazilianMobile("5501987654321"), "area code cannot start with 0")
	assert.False(t, IsBrazilianMobile("14155550100"))
}

func TestMonthInterval(t *testing.T) {
	loc := time.UTC
	iv := MonthInterval(2024, time.May, loc)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), iv.Start)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, loc), iv.End)
	assert.True(t, iv.Contains(time.Date(2024, 5, 31, 23, 59, 0, 0, loc)))
	assert.False(t, iv.Contains(iv.End))
	assert.Equal(t, "05/2024", iv.Label())
}

func TestSumTransactions(t *testing.T) {
	txs := []*Transaction{
		{Type: TransactionCredit, Amount: decimal.RequireFromString("2300")},
		{Type: TransactionDebit, Amount: decimal.RequireFromString("1350.50")},
	}
	totals := SumTransactions(txs)
	assert.True(t, totals.Balance().Equal(decimal.RequireFromString("949.50")))
}

func TestIsExternalMessageID(t *testing.T) {
	assert.True(t, IsExternalMessageID("wamid.HBgM"))
	assert.True(t, IsExternalMessageID("WAMID.x"))
	assert.False(t, IsExternalMessageID("wamid"))
}
