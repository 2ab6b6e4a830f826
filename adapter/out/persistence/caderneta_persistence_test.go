package persistence

import (
	"context"
	"testing"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStore_RoundTripAndExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	kv := cache.NewMemoryCache().WithClock(func() time.Time { return now })
	store := NewConversationStore(kv)
	ctx := context.Background()

	missing, err := store.Load(ctx, "5511987654321")
	require.NoError(t, err)
	assert.Nil(t, missing)

	state := &domain.ConversationState{
		IdentityKey:       "5511987654321",
		Stage:             domain.StageWaitingCodeConfirmation,
		Profile:           domain.Profile{Phone: "5511987654321", FirstName: "Ana", LastName: "Souza", Email: "ana@example.com"},
		RemainingAttempts: 4,
		CodeHash:          []byte("$2a$10$hash"),
		LinkedUserID:      "user-1",
	}
	require.NoError(t, store.Save(ctx, state, 15*time.Minute))

	got, err := store.Load(ctx, "5511987654321")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	now = now.Add(16 * time.Minute)
	got, err = store.Load(ctx, "5511987654321")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConversationStore_Delete(t *testing.T) {
	store := NewConversationStore(cache.NewMemoryCache())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.ConversationState{IdentityKey: "k", Stage: domain.StageWaitingEmail}, 0))

	require.NoError(t, store.Delete(ctx, "k"))

	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotStore(t *testing.T) {
	store := NewSnapshotStore(cache.NewMemoryCache(), "classifier:model")
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, []byte{1, 2, 3}))
	data, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestMemoryCorpus_ReturnsCopy(t *testing.T) {
	c := NewMemoryCorpus()
	ctx := context.Background()
	require.NoError(t, c.Append(ctx, domain.TrainingSample{Text: "paguei 10 pao", Label: domain.LabelDebit, Confidence: 0.9}))

	all, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	all[0].Text = "mutated"

	again, _ := c.All(ctx)
	assert.Equal(t, "paguei 10 pao", again[0].Text)
}

func TestTransactionRow_RoundTrip(t *testing.T) {
	tx := &domain.Transaction{
		ID:            42,
		UserID:        "3f1c2a8e-0000-4000-8000-000000000001",
		Type:          domain.TransactionCredit,
		Amount:        decimal.RequireFromString("1200.50"),
		Category:      "BUFFET",
		Description:   "vendi 1200,50 de buffet",
		PaymentMethod: domain.PaymentPix,
		OccurredAt:    time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
		ExternalID:    "wamid.X",
		CreatedAt:     time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC),
	}

	row := rowFromTransaction(tx)
	assert.Equal(t, "CREDIT", row.Type)
	assert.Equal(t, "pix", row.PaymentMethod)
	assert.Equal(t, tx, row.toDomain())
}

func TestTypeFilter(t *testing.T) {
	assert.Equal(t, []string{"DEBIT", "CREDIT"}, typeFilter(nil))
	assert.Equal(t, []string{"CREDIT"}, typeFilter([]domain.TransactionType{domain.TransactionCredit}))
}
