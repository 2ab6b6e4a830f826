package persistence

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"
)

// MemoryLedger keeps users and transactions in process for the chat
// console and local runs without a database. It implements the user
// repository, the transaction store and the unit of work.
type MemoryLedger struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	identities map[string]string
	txs        []*domain.Transaction
}

var (
	_ out.UserRepository   = (*MemoryLedger)(nil)
	_ out.TransactionStore = (*MemoryLedger)(nil)
	_ out.UnitOfWork       = (*MemoryLedger)(nil)
)

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		users:      make(map[string]*domain.User),
		identities: make(map[string]string),
	}
}

func (m *MemoryLedger) FindByIdentity(_ context.Context, identityKey string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == identityKey {
			return u, nil
		}
	}
	if id, ok := m.identities[identityKey]; ok {
		return m.users[id], nil
	}
	return nil, nil
}

func (m *MemoryLedger) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

// Create is idempotent on phone.
func (m *MemoryLedger) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == user.Phone {
			return u, nil
		}
	}
	cp := *user
	m.users[cp.ID] = &cp
	return &cp, nil
}

func (m *MemoryLedger) LinkIdentity(_ context.Context, userID, identityKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return apperr.NotFound("user")
	}
	m.identities[identityKey] = userID
	return nil
}

// Save rejects invalid transactions and duplicate ids.
func (m *MemoryLedger) Save(_ context.Context, tx *domain.Transaction) error {
	if !tx.Type.Valid() {
		return apperr.InvalidInput("type", string(tx.Type))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.txs, func(t *domain.Transaction) bool { return t.ID == tx.ID }) {
		return apperr.AlreadyExists("transaction")
	}
	cp := *tx
	m.txs = append(m.txs, &cp)
	return nil
}

// List returns matching transactions ordered by date.
func (m *MemoryLedger) List(_ context.Context, userID string, types []domain.TransactionType, interval domain.Interval) ([]*domain.Transaction, error) {
	allowed := typeFilter(types)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var txs []*domain.Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID && interval.Contains(tx.OccurredAt) && slices.Contains(allowed, string(tx.Type)) {
			cp := *tx
			txs = append(txs, &cp)
		}
	}
	slices.SortStableFunc(txs, func(a, b *domain.Transaction) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return txs, nil
}

func (m *MemoryLedger) DeleteByExternalID(_ context.Context, userID, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.txs)
	m.txs = slices.DeleteFunc(m.txs, func(t *domain.Transaction) bool {
		return t.UserID == userID && t.ExternalID == externalID
	})
	return len(m.txs) < before, nil
}

// DeleteLast removes the most recently created transaction of userID.
func (m *MemoryLedger) DeleteLast(_ context.Context, userID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := -1
	for i, tx := range m.txs {
		if tx.UserID != userID {
			continue
		}
		if last < 0 || tx.CreatedAt.After(m.txs[last].CreatedAt) ||
			(tx.CreatedAt.Equal(m.txs[last].CreatedAt) && tx.ID > m.txs[last].ID) {
			last = i
		}
	}
	if last < 0 {
		return nil, nil
	}
	removed := m.txs[last]
	m.txs = slices.Delete(m.txs, last, last+1)
	return removed, nil
}

// Do runs fn against the ledger itself. Writes are not rolled back.
func (m *MemoryLedger) Do(ctx context.Context, fn func(ctx context.Context, store out.TransactionStore) error) error {
	return fn(ctx, m)
}
