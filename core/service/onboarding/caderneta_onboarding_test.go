package onboarding

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	mu     sync.Mutex
	states map[string]domain.ConversationState
	ttls   map[string]time.Duration
	saves  int
}

func newMemStore() *memStore {
	return &memStore{states: map[string]domain.ConversationState{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Load(ctx context.Context, key string) (*domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *memStore) Save(ctx context.Context, st *domain.ConversationState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.IdentityKey] = *st
	s.ttls[st.IdentityKey] = ttl
	s.saves++
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

type memUsers struct {
	byPhone   map[string]*domain.User
	links     map[string]string
	creates   int
	createErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byPhone: map[string]*domain.User{}, links: map[string]string{}}
}

func (u *memUsers) FindByIdentity(ctx context.Context, key string) (*domain.User, error) {
	if usr, ok := u.byPhone[key]; ok {
		return usr, nil
	}
	if id, ok := u.links[key]; ok {
		for _, usr := range u.byPhone {
			if usr.ID == id {
				return usr, nil
			}
		}
	}
	return nil, nil
}

func (u *memUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, usr := range u.byPhone {
		if usr.Email == email {
			return usr, nil
		}
	}
	return nil, nil
}

func (u *memUsers) Create(ctx context.Context, usr *domain.User) (*domain.User, error) {
	u.creates++
	if u.createErr != nil {
		return nil, u.createErr
	}
	if existing, ok := u.byPhone[usr.Phone]; ok {
		return existing, nil
	}
	u.byPhone[usr.Phone] = usr
	return usr, nil
}

func (u *memUsers) LinkIdentity(ctx context.Context, userID, key string) error {
	u.links[key] = userID
	return nil
}

type memCodes struct {
	sent map[string]string
}

func (c *memCodes) SendCode(ctx context.Context, phone, code string) error {
	c.sent[phone] = code
	return nil
}

type fixture struct {
	m     *Machine
	store *memStore
	users *memUsers
	codes *memCodes
}

func newFixture(opts ...Option) fixture {
	f := fixture{store: newMemStore(), users: newMemUsers(), codes: &memCodes{sent: map[string]string{}}}
	base := []Option{
		WithLogger(logger.Nop()),
		WithHashCost(bcrypt.MinCost),
		WithCodeGenerator(func() (string, error) { return "123456", nil }),
	}
	f.m = New(f.store, f.users, f.codes, func() string { return "AJUDA" }, append(base, opts...)...)
	return f
}

const phone = "5511987654321"

func (f fixture) stage(t *testing.T) domain.Stage {
	t.Helper()
	st, err := f.store.Load(context.Background(), phone)
	require.NoError(t, err)
	if st == nil {
		return domain.StageInitial
	}
	return st.Stage
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	msg, err := f.m.Start(ctx, phone)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, "Olá, empreendedor!"))
	assert.Equal(t, domain.StageWaitingFullName, f.stage(t))
	assert.Equal(t, DefaultTTL, f.store.ttls[phone])

	msg, err = f.m.Start(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, askFullName, msg)

	_, err = f.m.Handle(ctx, phone, "Maria Silva")
	require.NoError(t, err)
	msg, err = f.m.Start(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, askEmail, msg)
	assert.Equal(t, domain.StageWaitingEmail, f.stage(t))
}

func TestHandleWithoutStateStarts(t *testing.T) {
	f := newFixture()
	msg, err := f.m.Handle(context.Background(), phone, "oi")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, "Olá, empreendedor!"))
	assert.Equal(t, domain.StageWaitingFullName, f.stage(t))
}

func TestInvalidNameLeavesStateUntouched(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.m.Start(ctx, phone)
	require.NoError(t, err)
	saves := f.store.saves

	for _, name := range []string{"Maria", "M Silva", "Maria S1lva", "   "} {
		msg, err := f.m.Handle(ctx, phone, name)
		require.NoError(t, err)
		assert.Equal(t, invalidFullName, msg, name)
	}
	assert.Equal(t, saves, f.store.saves)
	st, _ := f.store.Load(ctx, phone)
	assert.Equal(t, domain.StageWaitingFullName, st.Stage)
	assert.Empty(t, st.Profile.FirstName)
}

func TestPrimaryFlowProvisionsUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _ = f.m.Start(ctx, phone)

	msg, err := f.m.Handle(ctx, phone, "  joão da silva ")
	require.NoError(t, err)
	assert.Equal(t, nameAccepted, msg)
	st, _ := f.store.Load(ctx, phone)
	assert.Equal(t, "João", st.Profile.FirstName)
	assert.Equal(t, "Da Silva", st.Profile.LastName)

	msg, err = f.m.Handle(ctx, phone, "nao-e-email")
	require.NoError(t, err)
	assert.Equal(t, invalidEmail, msg)
	assert.Equal(t, domain.StageWaitingEmail, f.stage(t))

	msg, err = f.m.Handle(ctx, phone, "Joao@Example.com")
	require.NoError(t, err)
	assert.Equal(t, completionMessage("AJUDA"), msg)

	usr := f.users.byPhone[phone]
	require.NotNil(t, usr)
	assert.Equal(t, "joao@example.com", usr.Email)
	assert.Equal(t, "João", usr.FirstName)
	assert.Equal(t, domain.StageInitial, f.stage(t), "state is dropped once the user exists")
}

func TestCompletedRetriesProvisioning(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _ = f.m.Start(ctx, phone)
	_, _ = f.m.Handle(ctx, phone, "Maria Silva")

	f.users.createErr = errors.New("db down")
	msg, err := f.m.Handle(ctx, phone, "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, provisionFailure, msg)
	assert.Equal(t, domain.StageCompleted, f.stage(t))

	f.users.createErr = nil
	msg, err = f.m.Handle(ctx, phone, "oi?")
	require.NoError(t, err)
	assert.Equal(t, completionMessage("AJUDA"), msg)
	assert.Equal(t, 2, f.users.creates)
	assert.NotNil(t, f.users.byPhone[phone])
}

func seedOwner(f fixture) *domain.User {
	owner := &domain.User{ID: "owner-1", FirstName: "Ana", Phone: "5511911112222", Email: "ana@example.com"}
	f.users.byPhone[owner.Phone] = owner
	return owner
}

func TestLinkedIdentityConfirmsWithCode(t *testing.T) {
	f := newFixture()
	owner := seedOwner(f)
	ctx := context.Background()
	_, _ = f.m.Start(ctx, phone)
	_, _ = f.m.Handle(ctx, phone, "Ana Souza")

	msg, err := f.m.Handle(ctx, phone, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, codeSent, msg)
	assert.Equal(t, "123456", f.codes.sent[owner.Phone])

	st, _ := f.store.Load(ctx, phone)
	assert.Equal(t, domain.StageWaitingCodeConfirmation, st.Stage)
	assert.Equal(t, DefaultAttempts, st.RemainingAttempts)
	assert.NotContains(t, string(st.CodeHash), "123456")

	msg, err = f.m.Handle(ctx, phone, "000000")
	require.NoError(t, err)
	assert.Equal(t, wrongCode(4), msg)

	msg, err = f.m.Handle(ctx, phone, " 123456 ")
	require.NoError(t, err)
	assert.Equal(t, linkedMessage("AJUDA"), msg)
	assert.Equal(t, owner.ID, f.users.links[phone])
	assert.Equal(t, domain.StageInitial, f.stage(t))
}

func TestExhaustedAttemptsDeleteContext(t *testing.T) {
	f := newFixture(WithAttempts(2))
	seedOwner(f)
	ctx := context.Background()
	_, _ = f.m.Start(ctx, phone)
	_, _ = f.m.Handle(ctx, phone, "Ana Souza")
	_, _ = f.m.Handle(ctx, phone, "ana@example.com")

	msg, err := f.m.Handle(ctx, phone, "111111")
	require.NoError(t, err)
	assert.Equal(t, wrongCode(1), msg)

	msg, err = f.m.Handle(ctx, phone, "222222")
	require.NoError(t, err)
	assert.Equal(t, attemptsOver, msg)
	assert.Equal(t, domain.StageInitial, f.stage(t))

	msg, err = f.m.Start(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, welcomeMessage, msg)
	assert.Equal(t, domain.StageWaitingFullName, f.stage(t))
	assert.Empty(t, f.users.links)
}

func TestExhaustedAttemptsLogErrorCode(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(WithAttempts(1), WithLogger(logger.New(logger.Config{Level: logger.LevelInfo, Output: &buf})))
	seedOwner(f)
	ctx := context.Background()
	_, _ = f.m.Start(ctx, phone)
	_, _ = f.m.Handle(ctx, phone, "Ana Souza")
	_, _ = f.m.Handle(ctx, phone, "ana@example.com")
	buf.Reset()

	msg, err := f.m.Handle(ctx, phone, "999999")
	require.NoError(t, err)
	assert.Equal(t, attemptsOver, msg)
	assert.Contains(t, buf.String(), `"error_code":"`+apperr.CodeAttemptsExhausted+`"`)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidFullName("José Álvares"))
	assert.False(t, ValidFullName("José"))
	assert.False(t, ValidFullName("Jo A"))
	assert.False(t, ValidFullName("José d'Ávila"))

	assert.True(t, ValidEmail("a.b+c@dominio.com.br"))
	assert.False(t, ValidEmail("a@b"))
	assert.False(t, ValidEmail("sem arroba.com"))
}
