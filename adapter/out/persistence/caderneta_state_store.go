package persistence

import (
	"context"
	"sync"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/cache"
)

const conversationPrefix = "onboarding:"

// ConversationStore keeps onboarding records as JSON in a key-value store.
type ConversationStore struct {
	kv out.KeyValueStore
}

var _ out.ConversationStore = (*ConversationStore)(nil)

// NewConversationStore creates a new conversation store
func NewConversationStore(kv out.KeyValueStore) *ConversationStore {
	return &ConversationStore{kv: kv}
}

// Load returns nil when no conversation is in progress.
func (s *ConversationStore) Load(ctx context.Context, identityKey string) (*domain.ConversationState, error) {
	var state domain.ConversationState
	ok, err := cache.GetJSON(ctx, s.kv, conversationPrefix+identityKey, &state)
	if err != nil || !ok {
		return nil, err
	}
	return &state, nil
}

func (s *ConversationStore) Save(ctx context.Context, state *domain.ConversationState, ttl time.Duration) error {
	return cache.SetJSON(ctx, s.kv, conversationPrefix+state.IdentityKey, state, ttl)
}

func (s *ConversationStore) Delete(ctx context.Context, identityKey string) error {
	return s.kv.Delete(ctx, conversationPrefix+identityKey)
}

// SnapshotStore keeps the serialized classifier under a single key.
type SnapshotStore struct {
	kv  out.KeyValueStore
	key string
}

var _ out.ModelSnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new snapshot store
func NewSnapshotStore(kv out.KeyValueStore, key string) *SnapshotStore {
	return &SnapshotStore{kv: kv, key: key}
}

func (s *SnapshotStore) Load(ctx context.Context) ([]byte, bool, error) {
	return s.kv.Get(ctx, s.key)
}

func (s *SnapshotStore) Save(ctx context.Context, snapshot []byte) error {
	return s.kv.Set(ctx, s.key, snapshot, 0)
}

// MemoryCorpus is a process-local training corpus for the chat console.
type MemoryCorpus struct {
	mu      sync.Mutex
	samples []domain.TrainingSample
}

var _ out.TrainingCorpus = (*MemoryCorpus)(nil)

// NewMemoryCorpus creates an empty corpus.
func NewMemoryCorpus() *MemoryCorpus {
	return &MemoryCorpus{}
}

func (c *MemoryCorpus) Append(_ context.Context, sample domain.TrainingSample) error {
	c.mu.Lock()
	c.samples = append(c.samples, sample)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCorpus) All(context.Context) ([]domain.TrainingSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.TrainingSample(nil), c.samples...), nil
}
