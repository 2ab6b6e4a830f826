package persistence

import (
	"context"

	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
)

// UnitOfWork implements out.UnitOfWork with one sqlx transaction per call.
type UnitOfWork struct {
	db *sqlx.DB
}

var _ out.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a new unit of work
func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do runs fn inside a transaction and rolls back when it fails.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, store out.TransactionStore) error) (err error) {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.DatabaseError("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, NewTransactionAdapter(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return apperr.DatabaseError("commit", err)
	}
	return nil
}
