package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
}

// TransactionAdapter implements out.TransactionStore using PostgreSQL.
type TransactionAdapter struct {
	q querier
}

var _ out.TransactionStore = (*TransactionAdapter)(nil)

// NewTransactionAdapter creates a new transaction adapter
func NewTransactionAdapter(q querier) *TransactionAdapter {
	return &TransactionAdapter{q: q}
}

type transactionRow struct {
	ID            int64           `db:"id"`
	UserID        string          `db:"user_id"`
	Type          string          `db:"type"`
	Amount        decimal.Decimal `db:"amount"`
	Category      string          `db:"category"`
	Description   string          `db:"description"`
	PaymentMethod string          `db:"payment_method"`
	OccurredAt    time.Time       `db:"occurred_at"`
	ExternalID    string          `db:"external_id"`
	CreatedAt     time.Time       `db:"created_at"`
}

func rowFromTransaction(tx *domain.Transaction) transactionRow {
	return transactionRow{
		ID:            tx.ID,
		UserID:        tx.UserID,
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		Category:      tx.Category,
		Description:   tx.Description,
		PaymentMethod: string(tx.PaymentMethod),
		OccurredAt:    tx.OccurredAt,
		ExternalID:    tx.ExternalID,
		CreatedAt:     tx.CreatedAt,
	}
}

func (r *transactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:            r.ID,
		UserID:        r.UserID,
		Type:          domain.TransactionType(r.Type),
		Amount:        r.Amount,
		Category:      r.Category,
		Description:   r.Description,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		OccurredAt:    r.OccurredAt,
		ExternalID:    r.ExternalID,
		CreatedAt:     r.CreatedAt,
	}
}

const transactionColumns = `id, user_id, type, amount, category, description, payment_method, occurred_at, external_id, created_at`

// Save inserts tx. A duplicate id maps to AlreadyExists.
func (a *TransactionAdapter) Save(ctx context.Context, tx *domain.Transaction) error {
	if !tx.Type.Valid() {
		return apperr.InvalidInput("type", string(tx.Type))
	}
	const query = `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (:id, :user_id, :type, :amount, :category, :description, :payment_method, :occurred_at, :external_id, :created_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, a.q, query, rowFromTransaction(tx)); err != nil {
		if isUniqueViolation(err) {
			return apperr.AlreadyExists("transaction")
		}
		return apperr.DatabaseError("save transaction", err)
	}
	return nil
}

// typeFilter expands an empty filter to every type.
func typeFilter(types []domain.TransactionType) []string {
	if len(types) == 0 {
		types = []domain.TransactionType{domain.TransactionDebit, domain.TransactionCredit}
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

// List returns transactions of userID inside interval, oldest first.
func (a *TransactionAdapter) List(ctx context.Context, userID string, types []domain.TransactionType, interval domain.Interval) ([]*domain.Transaction, error) {
	const query = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		  AND occurred_at >= $2 AND occurred_at < $3
		  AND type = ANY($4)
		ORDER BY occurred_at, id
	`
	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, a.q, &rows, query, userID, interval.Start, interval.End, pq.Array(typeFilter(types))); err != nil {
		return nil, apperr.DatabaseError("list transactions", err)
	}
	txs := make([]*domain.Transaction, len(rows))
	for i := range rows {
		txs[i] = rows[i].toDomain()
	}
	return txs, nil
}

// DeleteByExternalID reports whether a row was removed.
func (a *TransactionAdapter) DeleteByExternalID(ctx context.Context, userID, externalID string) (bool, error) {
	res, err := a.q.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = $1 AND external_id = $2`, userID, externalID)
	if err != nil {
		return false, apperr.DatabaseError("delete transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.DatabaseError("delete transaction", err)
	}
	return n > 0, nil
}

// DeleteLast removes and returns the newest row, or nil when there is none.
func (a *TransactionAdapter) DeleteLast(ctx context.Context, userID string) (*domain.Transaction, error) {
	const query = `
		DELETE FROM transactions
		WHERE id = (
			SELECT id FROM transactions
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		RETURNING ` + transactionColumns
	var row transactionRow
	if err := sqlx.GetContext(ctx, a.q, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.DatabaseError("delete last transaction", err)
	}
	return row.toDomain(), nil
}
