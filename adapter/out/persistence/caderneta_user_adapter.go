package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
)

// UserAdapter implements out.UserRepository using PostgreSQL.
type UserAdapter struct {
	db *sqlx.DB
}

var _ out.UserRepository = (*UserAdapter)(nil)

// NewUserAdapter creates a new user adapter
func NewUserAdapter(db *sqlx.DB) *UserAdapter {
	return &UserAdapter{db: db}
}

const userColumns = `u.id, u.first_name, u.last_name, u.phone, u.email, u.created_at`

// FindByIdentity returns nil when the identity is not linked.
func (a *UserAdapter) FindByIdentity(ctx context.Context, identityKey string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users u WHERE u.phone = $1
		UNION ALL
		SELECT ` + userColumns + ` FROM users u
		JOIN user_identities i ON i.user_id = u.id
		WHERE i.identity_key = $1
		LIMIT 1
	`
	return a.getOne(ctx, "find user by identity", query, identityKey)
}

func (a *UserAdapter) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users u
		WHERE LOWER(u.email) = $1
		ORDER BY u.created_at
		LIMIT 1
	`
	return a.getOne(ctx, "find user by email", query, strings.ToLower(strings.TrimSpace(email)))
}

func (a *UserAdapter) getOne(ctx context.Context, op, query string, args ...any) (*domain.User, error) {
	var u domain.User
	if err := a.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.DatabaseError(op, err)
	}
	return &u, nil
}

// Create inserts user unless its phone is already registered, and returns
// the stored row either way.
func (a *UserAdapter) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	const query = `
		INSERT INTO users (id, first_name, last_name, phone, email, created_at)
		VALUES (:id, :first_name, :last_name, :phone, :email, :created_at)
		ON CONFLICT (phone) DO NOTHING
	`
	if _, err := a.db.NamedExecContext(ctx, query, user); err != nil {
		return nil, apperr.DatabaseError("create user", err)
	}
	stored, err := a.getOne(ctx, "reload user",
		`SELECT `+userColumns+` FROM users u WHERE u.phone = $1`, user.Phone)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperr.NotFound("user")
	}
	return stored, nil
}

// LinkIdentity attaches identityKey to userID, moving it if already linked.
func (a *UserAdapter) LinkIdentity(ctx context.Context, userID, identityKey string) error {
	const query = `
		INSERT INTO user_identities (identity_key, user_id)
		VALUES ($1, $2)
		ON CONFLICT (identity_key) DO UPDATE SET user_id = EXCLUDED.user_id
	`
	if _, err := a.db.ExecContext(ctx, query, identityKey, userID); err != nil {
		if isUniqueViolation(err) {
			return apperr.AlreadyExists("identity")
		}
		return apperr.DatabaseError("link identity", err)
	}
	return nil
}
