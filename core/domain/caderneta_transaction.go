package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is used when no category text survives extraction.
const DefaultCategory = "OUTROS"

// TransactionType is DEBIT or CREDIT.
type TransactionType string

const (
	TransactionDebit  TransactionType = "DEBIT"
	TransactionCredit TransactionType = "CREDIT"
)

func (t TransactionType) Valid() bool {
	return t == TransactionDebit || t == TransactionCredit
}

// Noun is the word used in confirmation replies.
func (t TransactionType) Noun() string {
	if t == TransactionCredit {
		return "recebimento"
	}
	return "pagamento"
}

// PaymentMethod is how money moved. Empty means unknown.
type PaymentMethod string

const (
	PaymentNone     PaymentMethod = ""
	PaymentPix      PaymentMethod = "pix"
	PaymentCredit   PaymentMethod = "credito"
	PaymentDebit    PaymentMethod = "debito"
	PaymentCash     PaymentMethod = "dinheiro"
	PaymentSlip     PaymentMethod = "boleto"
	PaymentTransfer PaymentMethod = "transferencia"
)

// ExtractedTransaction is the structured reading of one financial message.
// It is built once by the extractor and passed around by value.
type ExtractedTransaction struct {
	Type          TransactionType
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Category      string
	OccurredAt    time.Time
	RawMessage    string
}

func (e ExtractedTransaction) HasPaymentMethod() bool {
	return e.PaymentMethod != PaymentNone
}

// Transaction is a persisted ledger entry.
type Transaction struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	ExternalID    string          `json:"external_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewTransaction materializes an extraction for storage.
func NewTransaction(id int64, userID, externalID string, e ExtractedTransaction, now time.Time) *Transaction {
	return &Transaction{
		ID:            id,
		UserID:        userID,
		Type:          e.Type,
		Amount:        e.Amount,
		Category:      e.Category,
		Description:   e.RawMessage,
		PaymentMethod: e.PaymentMethod,
		OccurredAt:    e.OccurredAt,
		ExternalID:    externalID,
		CreatedAt:     now,
	}
}

// Totals sums a set of transactions per type.
type Totals struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

// Balance is credits minus debits.
func (t Totals) Balance() decimal.Decimal {
	return t.Credits.Sub(t.Debits)
}

// SumTransactions adds up credits and debits.
func SumTransactions(txs []*Transaction) Totals {
	totals := Totals{Debits: decimal.Zero, Credits: decimal.Zero}
	for _, tx := range txs {
		switch tx.Type {
		case TransactionDebit:
			totals.Debits = totals.Debits.Add(tx.Amount)
		case TransactionCredit:
			totals.Credits = totals.Credits.Add(tx.Amount)
		}
	}
	return totals
}
