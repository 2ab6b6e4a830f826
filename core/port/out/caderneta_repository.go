package out

import (
	"context"

	"caderneta_server/core/domain"
)

// UserRepository resolves channel identities to registered users.
type UserRepository interface {
	// FindByIdentity returns nil, nil when the identity is not registered.
	FindByIdentity(ctx context.Context, identityKey string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create is idempotent on phone: a duplicate returns the stored user.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// LinkIdentity attaches a secondary identity key to an existing user.
	LinkIdentity(ctx context.Context, userID, identityKey string) error
}

// TransactionStore reads and writes ledger entries.
type TransactionStore interface {
	Save(ctx context.Context, tx *domain.Transaction) error
	List(ctx context.Context, userID string, types []domain.TransactionType, interval domain.Interval) ([]*domain.Transaction, error)
	DeleteByExternalID(ctx context.Context, userID, externalID string) (bool, error)
	DeleteLast(ctx context.Context, userID string) (*domain.Transaction, error)
}

// UnitOfWork runs fn inside a single database transaction, committing when
// fn returns nil and rolling back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, store TransactionStore) error) error
}
