package out

import (
	"context"
	"time"

	"caderneta_server/core/domain"
)

// KeyValueStore is a byte store with per-key expiry. A zero ttl keeps the
// key until it is deleted.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ConversationStore persists onboarding records.
type ConversationStore interface {
	// Load returns nil, nil when no record exists.
	Load(ctx context.Context, identityKey string) (*domain.ConversationState, error)
	Save(ctx context.Context, state *domain.ConversationState, ttl time.Duration) error
	Delete(ctx context.Context, identityKey string) error
}

// TrainingCorpus is the append-only log of labeled samples.
type TrainingCorpus interface {
	Append(ctx context.Context, sample domain.TrainingSample) error
	All(ctx context.Context) ([]domain.TrainingSample, error)
}

// ModelSnapshotStore keeps the serialized fitted classifier.
type ModelSnapshotStore interface {
	// Load returns nil, false, nil when no snapshot has been saved.
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, snapshot []byte) error
}
