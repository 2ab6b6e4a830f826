// Package onboarding runs the registration conversation for identities that
// are not yet users.
package onboarding

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"
	"caderneta_server/pkg/textnorm"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTTL      = 900 * time.Second
	DefaultAttempts = 5
	codeDigits      = 6
)

// Machine is the onboarding state machine. State lives in a TTL store, so
// an abandoned conversation silently restarts once it expires.
type Machine struct {
	store    out.ConversationStore
	users    out.UserRepository
	codes    out.CodeSender
	help     func() string
	ttl      time.Duration
	attempts int
	hashCost int
	now      func() time.Time
	newCode  func() (string, error)
	log      *logger.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithTTL sets how long an idle conversation is kept.
func WithTTL(ttl time.Duration) Option {
	return func(m *Machine) { m.ttl = ttl }
}

// WithAttempts sets how many wrong codes are tolerated.
func WithAttempts(n int) Option {
	return func(m *Machine) { m.attempts = n }
}

// WithHashCost sets the bcrypt cost for stored codes.
func WithHashCost(cost int) Option {
	return func(m *Machine) { m.hashCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithCodeGenerator replaces the random confirmation code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Machine) { m.newCode = gen }
}

// WithLogger overrides the onboarding logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// New builds a Machine. help renders the command list appended to the
// completion message.
func New(store out.ConversationStore, users out.UserRepository, codes out.CodeSender, help func() string, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		users:    users,
		codes:    codes,
		help:     help,
		ttl:      DefaultTTL,
		attempts: DefaultAttempts,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		newCode:  randomCode,
		log:      logger.WithField("component", "onboarding"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a conversation for key. An existing conversation is never
// reset; its pending question is asked again.
func (m *Machine) Start(ctx context.Context, key string) (string, error) {
	state, err := m.store.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load onboarding state: %w", err)
	}
	if state == nil {
		state = &domain.ConversationState{
			IdentityKey: key,
			Stage:       domain.StageWaitingFullName,
			Profile:     domain.Profile{Phone: key},
		}
		if err := m.save(ctx, state); err != nil {
			return "", err
		}
		m.log.WithContext(ctx).Debug("onboarding started for %s", key)
		return welcomeMessage, nil
	}
	return m.currentQuestion(ctx, state)
}

func (m *Machine) currentQuestion(ctx context.Context, state *domain.ConversationState) (string, error) {
	switch state.Stage {
	case domain.StageWaitingFullName:
		return askFullName, nil
	case domain.StageWaitingEmail:
		return askEmail, nil
	case domain.StageWaitingCodeConfirmation:
		return askCode, nil
	case domain.StageCompleted:
		return m.provision(ctx, state)
	}
	return askFullName, nil
}

// Handle feeds one message into the conversation for key.
func (m *Machine) Handle(ctx context.Context, key, text string) (string, error) {
	state, err := m.store.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load onboarding state: %w", err)
	}
	if state == nil {
		return m.Start(ctx, key)
	}

	switch state.Stage {
	case domain.StageWaitingFullName:
		return m.handleFullName(ctx, state, text)
	case domain.StageWaitingEmail:
		return m.handleEmail(ctx, state, text)
	case domain.StageWaitingCodeConfirmation:
		return m.handleCode(ctx, state, text)
	case domain.StageCompleted:
		return m.provision(ctx, state)
	}
	// unknown stage from an older record
	if err := m.store.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("delete onboarding state: %w", err)
	}
	return m.Start(ctx, key)
}

func (m *Machine) handleFullName(ctx context.Context, state *domain.ConversationState, text string) (string, error) {
	name := strings.TrimSpace(text)
	if !ValidFullName(name) {
		return invalidFullName, nil
	}
	words := strings.Fields(textnorm.Lower(name))
	state.Profile.FirstName = textnorm.Title(words[0])
	state.Profile.LastName = textnorm.Title(strings.Join(words[1:], " "))
	state.Stage = domain.StageWaitingEmail
	if err := m.save(ctx, state); err != nil {
		return "", err
	}
	return nameAccepted, nil
}

func (m *Machine) handleEmail(ctx context.Context, state *domain.ConversationState, text string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(text))
	if !ValidEmail(email) {
		return invalidEmail, nil
	}
	state.Profile.Email = email

	owner, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("find user by email: %w", err)
	}
	if owner != nil && owner.Phone != state.IdentityKey {
		return m.beginLinking(ctx, state, owner)
	}

	state.Stage = domain.StageCompleted
	if err := m.save(ctx, state); err != nil {
		return "", err
	}
	return m.provision(ctx, state)
}

// beginLinking sends a code to the phone that already owns the email.
func (m *Machine) beginLinking(ctx context.Context, state *domain.ConversationState, owner *domain.User) (string, error) {
	code, err := m.newCode()
	if err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash confirmation code: %w", err)
	}

	state.Stage = domain.StageWaitingCodeConfirmation
	state.RemainingAttempts = m.attempts
	state.CodeHash = hash
	state.LinkedUserID = owner.ID
	if err := m.save(ctx, state); err != nil {
		return "", err
	}
	if err := m.codes.SendCode(ctx, owner.Phone, code); err != nil {
		return "", fmt.Errorf("send confirmation code: %w", err)
	}
	m.log.WithContext(ctx).Info("confirmation code sent to owner of %s", state.IdentityKey)
	return codeSent, nil
}

func (m *Machine) handleCode(ctx context.Context, state *domain.ConversationState, text string) (string, error) {
	code := strings.TrimSpace(text)
	err := bcrypt.CompareHashAndPassword(state.CodeHash, []byte(code))
	if err == nil {
		if err := m.users.LinkIdentity(ctx, state.LinkedUserID, state.IdentityKey); err != nil {
			state.Stage = domain.StageCompleted
			if serr := m.save(ctx, state); serr != nil {
				return "", serr
			}
			m.log.WithContext(ctx).WithError(err).Error("link identity")
			return provisionFailure, nil
		}
		if err := m.store.Delete(ctx, state.IdentityKey); err != nil {
			m.log.WithContext(ctx).WithError(err).Warn("delete onboarding state")
		}
		return linkedMessage(m.help()), nil
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return "", fmt.Errorf("compare confirmation code: %w", err)
	}

	state.RemainingAttempts--
	if state.RemainingAttempts <= 0 {
		if err := m.store.Delete(ctx, state.IdentityKey); err != nil {
			return "", fmt.Errorf("delete onboarding state: %w", err)
		}
		m.log.WithContext(ctx).
			WithField("error_code", apperr.CodeAttemptsExhausted).
			Info("confirmation attempts exhausted for %s", state.IdentityKey)
		return attemptsOver, nil
	}
	if err := m.save(ctx, state); err != nil {
		return "", err
	}
	return wrongCode(state.RemainingAttempts), nil
}

// provision materializes the user for a completed conversation. It is
// retried on every message until it succeeds, so the repository must
// tolerate duplicates.
func (m *Machine) provision(ctx context.Context, state *domain.ConversationState) (string, error) {
	if state.IsLinking() {
		if err := m.users.LinkIdentity(ctx, state.LinkedUserID, state.IdentityKey); err != nil {
			m.log.WithContext(ctx).WithError(err).Error("link identity")
			return provisionFailure, nil
		}
		if err := m.store.Delete(ctx, state.IdentityKey); err != nil {
			m.log.WithContext(ctx).WithError(err).Warn("delete onboarding state")
		}
		return linkedMessage(m.help()), nil
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		FirstName: state.Profile.FirstName,
		LastName:  state.Profile.LastName,
		Phone:     state.IdentityKey,
		Email:     state.Profile.Email,
		CreatedAt: m.now(),
	}
	if _, err := m.users.Create(ctx, user); err != nil {
		m.log.WithContext(ctx).WithError(err).Error("provision user")
		return provisionFailure, nil
	}
	if err := m.store.Delete(ctx, state.IdentityKey); err != nil {
		m.log.WithContext(ctx).WithError(err).Warn("delete onboarding state")
	}
	m.log.WithContext(ctx).Info("user provisioned for %s", state.IdentityKey)
	return completionMessage(m.help()), nil
}

func (m *Machine) save(ctx context.Context, state *domain.ConversationState) error {
	if err := m.store.Save(ctx, state, m.ttl); err != nil {
		return fmt.Errorf("save onboarding state: %w", err)
	}
	m.log.WithContext(ctx).Debug("onboarding %s -> %s", state.IdentityKey, state.Stage)
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
