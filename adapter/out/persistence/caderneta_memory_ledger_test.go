package persistence

import (
	"context"
	"testing"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerTx(id int64, user string, typ domain.TransactionType, occurred, created time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:         id,
		UserID:     user,
		Type:       typ,
		Amount:     decimal.NewFromInt(id * 10),
		Category:   "outros",
		OccurredAt: occurred,
		ExternalID: "wamid." + string(rune('a'+id)),
		CreatedAt:  created,
	}
}

func TestMemoryLedger_Users(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	stored, err := ledger.Create(ctx, &domain.User{ID: "u1", Phone: "5511987654321", Email: "Ana@Example.com"})
	require.NoError(t, err)
	again, err := ledger.Create(ctx, &domain.User{ID: "u2", Phone: "5511987654321"})
	require.NoError(t, err)
	assert.Equal(t, stored.ID, again.ID)

	byEmail, err := ledger.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u1", byEmail.ID)

	missing, err := ledger.FindByIdentity(ctx, "5521999998888")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, ledger.LinkIdentity(ctx, "u1", "5521999998888"))
	linked, err := ledger.FindByIdentity(ctx, "5521999998888")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, "u1", linked.ID)

	err = ledger.LinkIdentity(ctx, "nobody", "5531999997777")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestMemoryLedger_Transactions(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	day := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, ledger.Save(ctx, ledgerTx(2, "u1", domain.TransactionCredit, day.Add(time.Hour), day)))
	require.NoError(t, ledger.Save(ctx, ledgerTx(1, "u1", domain.TransactionDebit, day, day.Add(time.Minute))))
	require.NoError(t, ledger.Save(ctx, ledgerTx(3, "u2", domain.TransactionDebit, day, day)))

	err := ledger.Save(ctx, ledgerTx(1, "u1", domain.TransactionDebit, day, day))
	assert.True(t, apperr.HasCode(err, apperr.CodeAlreadyExists))
	err = ledger.Save(ctx, ledgerTx(9, "u1", domain.TransactionType("X"), day, day))
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))

	may := domain.Interval{Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	all, err := ledger.List(ctx, "u1", nil, may)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(2), all[1].ID)

	debits, err := ledger.List(ctx, "u1", []domain.TransactionType{domain.TransactionDebit}, may)
	require.NoError(t, err)
	require.Len(t, debits, 1)

	june := domain.Interval{Start: may.End, End: may.End.AddDate(0, 1, 0)}
	none, err := ledger.List(ctx, "u1", nil, june)
	require.NoError(t, err)
	assert.Empty(t, none)

	last, err := ledger.DeleteLast(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(1), last.ID, "latest created wins")

	deleted, err := ledger.DeleteByExternalID(ctx, "u1", "wamid.c")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = ledger.DeleteByExternalID(ctx, "u1", "wamid.c")
	require.NoError(t, err)
	assert.False(t, deleted)

	last, err = ledger.DeleteLast(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestMemoryLedger_Do(t *testing.T) {
	ledger := NewMemoryLedger()
	day := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	err := ledger.Do(context.Background(), func(ctx context.Context, store out.TransactionStore) error {
		return store.Save(ctx, ledgerTx(1, "u1", domain.TransactionDebit, day, day))
	})
	require.NoError(t, err)

	txs, err := ledger.List(context.Background(), "u1", nil, domain.Interval{Start: day.Add(-time.Hour), End: day.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
