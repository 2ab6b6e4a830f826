package bot

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/core/service/classifier"
	"caderneta_server/core/service/command"
	"caderneta_server/core/service/extractor"
	"caderneta_server/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.May, 20, 10, 0, 0, 0, time.UTC)

type memUsers struct {
	byPhone map[string]*domain.User
}

func (m *memUsers) FindByIdentity(_ context.Context, key string) (*domain.User, error) {
	return m.byPhone[key], nil
}
func (m *memUsers) FindByEmail(context.Context, string) (*domain.User, error) { return nil, nil }
func (m *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	m.byPhone[u.Phone] = u
	return u, nil
}
func (m *memUsers) LinkIdentity(context.Context, string, string) error { return nil }

type memLedger struct {
	mu      sync.Mutex
	txs     []*domain.Transaction
	saveErr error
}

func (m *memLedger) Do(ctx context.Context, fn func(context.Context, out.TransactionStore) error) error {
	return fn(ctx, m)
}

func (m *memLedger) Save(_ context.Context, tx *domain.Transaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memLedger) List(_ context.Context, userID string, types []domain.TransactionType, iv domain.Interval) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*domain.Transaction
	for _, tx := range m.txs {
		if tx.UserID != userID || !iv.Contains(tx.OccurredAt) {
			continue
		}
		if len(types) > 0 && !containsType(types, tx.Type) {
			continue
		}
		res = append(res, tx)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OccurredAt.Before(res[j].OccurredAt) })
	return res, nil
}

func containsType(types []domain.TransactionType, t domain.TransactionType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func (m *memLedger) DeleteByExternalID(_ context.Context, userID, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tx := range m.txs {
		if tx.UserID == userID && tx.ExternalID == externalID {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) DeleteLast(_ context.Context, userID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].UserID == userID {
			tx := m.txs[i]
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			return tx, nil
		}
	}
	return nil, nil
}

type stubOnboarding struct {
	calls []string
}

func (s *stubOnboarding) Handle(_ context.Context, key, text string) (string, error) {
	s.calls = append(s.calls, key+":"+text)
	return "Olá! Qual é o seu nome completo?", nil
}

type stubClassifier struct {
	result  domain.ClassificationResult
	err     error
	learned []string
}

func (s *stubClassifier) Classify(context.Context, string) (domain.ClassificationResult, error) {
	return s.result, s.err
}

func (s *stubClassifier) Learn(_ context.Context, text string, _ domain.ClassificationResult) error {
	s.learned = append(s.learned, text)
	return nil
}

type seqIDs struct{ n int64 }

func (s *seqIDs) Next() (int64, error) {
	s.n++
	return s.n, nil
}

type stubLinks struct{}

func (stubLinks) RenderCashFlow(_ context.Context, _ *domain.User, iv domain.Interval, _ []*domain.Transaction) (string, error) {
	return "https://charts.example/" + iv.Label(), nil
}

func (stubLinks) Export(_ context.Context, _ *domain.User, iv domain.Interval, _ []*domain.Transaction) (string, error) {
	return "https://export.example/" + iv.Label(), nil
}

type harness struct {
	svc        *Service
	users      *memUsers
	ledger     *memLedger
	onboarding *stubOnboarding
	classifier *stubClassifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users: &memUsers{byPhone: map[string]*domain.User{
			"5511987654321": {ID: "user-1", FirstName: "Ana", LastName: "Souza", Phone: "5511987654321"},
		}},
		ledger:     &memLedger{},
		onboarding: &stubOnboarding{},
		classifier: &stubClassifier{result: domain.ClassificationResult{
			Label:  domain.LabelDebit,
			Scores: map[domain.Label]float64{domain.LabelDebit: 0.9, domain.LabelCredit: 0.05, domain.LabelOther: 0.05},
			Source: domain.SourceModel,
		}},
	}
	clock := func() time.Time { return fixedNow }
	reg := command.NewRegistry()
	(&Commands{Transactions: h.ledger, Charts: stubLinks{}, Exporter: stubLinks{}, Clock: clock, Location: time.UTC}).Register(reg)
	router := command.NewRouter(reg, command.WithLocation(time.UTC), command.WithLogger(logger.Nop()))

	h.svc = NewService(Deps{
		Users:      h.users,
		UnitOfWork: h.ledger,
		Onboarding: h.onboarding,
		Router:     router,
		Classifier: h.classifier,
		Extractor:  extractor.New(extractor.WithClock(clock), extractor.WithLocation(time.UTC)),
		IDs:        &seqIDs{},
		Help:       func() string { return command.HelpText(reg) },
		Clock:      clock,
		Logger:     logger.Nop(),
	})
	return h
}

func msg(text string) domain.InboundMessage {
	return domain.InboundMessage{From: "whatsapp:+5511987654321", Text: text, ExternalID: "wamid.ABC123"}
}

func TestHandle_UnknownSenderGoesToOnboarding(t *testing.T) {
	h := newHarness(t)

	reply, err := h.svc.Handle(context.Background(), domain.InboundMessage{From: "+55 21 99999-0000", Text: "oi"})

	require.NoError(t, err)
	assert.Equal(t, "Olá! Qual é o seu nome completo?", reply.Text)
	assert.Equal(t, []string{"5521999990000:oi"}, h.onboarding.calls)
	assert.Empty(t, h.ledger.txs)
}

func TestHandle_RecordsTransaction(t *testing.T) {
	h := newHarness(t)

	reply, err := h.svc.Handle(context.Background(), msg("Paguei 150 no mercado com pix 15/05"))

	require.NoError(t, err)
	require.Len(t, h.ledger.txs, 1)
	tx := h.ledger.txs[0]
	assert.Equal(t, "user-1", tx.UserID)
	assert.Equal(t, domain.TransactionDebit, tx.Type)
	assert.True(t, decimal.NewFromInt(150).Equal(tx.Amount))
	assert.Equal(t, domain.PaymentPix, tx.PaymentMethod)
	assert.Equal(t, "wamid.ABC123", tx.ExternalID)

	assert.Equal(t, "Entendi! Houve um pagamento de R$ 150,00 no dia 15/05/2024 na categoria *MERCADO*.", reply.Text)
	require.Len(t, reply.Buttons, 2)
	assert.Equal(t, "wamid.ABC123", reply.Buttons[0].ID)
	assert.Equal(t, "saldo", reply.Buttons[1].ID)
	assert.Equal(t, []string{"Paguei 150 no mercado com pix 15/05"}, h.classifier.learned)
}

func TestHandle_CreditConfirmation(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = domain.ClassificationResult{Label: domain.LabelCredit, Source: domain.SourceKeyword}

	reply, err := h.svc.Handle(context.Background(), domain.InboundMessage{From: "5511987654321", Text: "recebi 1.200,50 do cliente"})

	require.NoError(t, err)
	assert.Contains(t, reply.Text, "recebimento de R$ 1.200,50")
	require.Len(t, reply.Buttons, 2)
	assert.Equal(t, "apagar", reply.Buttons[0].ID, "without a channel id the undo button deletes the last entry")
}

func TestHandle_NotATransaction(t *testing.T) {
	h := newHarness(t)
	h.classifier.err = classifier.ErrNotATransaction

	reply, err := h.svc.Handle(context.Background(), msg("bom dia tudo bem"))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply.Text, notUnderstoodReply))
	assert.Contains(t, reply.Text, "*ajuda*")
	assert.Empty(t, h.ledger.txs)
}

func TestHandle_AmountMissing(t *testing.T) {
	h := newHarness(t)

	reply, err := h.svc.Handle(context.Background(), msg("paguei o aluguel"))

	require.NoError(t, err)
	assert.Equal(t, amountMissingReply, reply.Text)
	assert.Empty(t, h.ledger.txs)
	assert.Empty(t, h.classifier.learned)
}

func TestHandle_SingleUnknownWord(t *testing.T) {
	h := newHarness(t)

	reply, err := h.svc.Handle(context.Background(), msg("xpto"))

	require.NoError(t, err)
	assert.Equal(t, command.UnknownWordReply("xpto"), reply.Text)
}

func TestHandle_SaveFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.ledger.saveErr = errors.New("connection refused")

	reply, err := h.svc.Handle(context.Background(), msg("paguei 20 padaria"))

	require.NoError(t, err)
	assert.Equal(t, saveFailureReply, reply.Text)
	assert.Empty(t, h.classifier.learned)
}

func TestHandle_CommandsRunBeforeClassification(t *testing.T) {
	h := newHarness(t)
	h.classifier.err = errors.New("must not be called")
	h.ledger.txs = []*domain.Transaction{
		{ID: 1, UserID: "user-1", Type: domain.TransactionDebit, Amount: decimal.NewFromInt(150), Category: "MERCADO", OccurredAt: fixedNow},
		{ID: 2, UserID: "user-1", Type: domain.TransactionCredit, Amount: decimal.NewFromInt(1000), Category: "BOLO", OccurredAt: fixedNow},
	}

	reply, err := h.svc.Handle(context.Background(), msg("saldo"))

	require.NoError(t, err)
	assert.Contains(t, reply.Text, "*Resumo de 05/2024*")
	assert.Contains(t, reply.Text, "*Lucro:* R$ 850,00")
}

func TestHandle_DeleteByReference(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Handle(context.Background(), msg("paguei 20 padaria"))
	require.NoError(t, err)
	require.Len(t, h.ledger.txs, 1)

	reply, err := h.svc.Handle(context.Background(), msg("wamid.ABC123"))

	require.NoError(t, err)
	assert.Equal(t, "Transação apagada ✅", reply.Text)
	assert.Empty(t, h.ledger.txs)

	reply, err = h.svc.Handle(context.Background(), msg("wamid.ABC123"))
	require.NoError(t, err)
	assert.Equal(t, "Não encontrei essa transação para apagar.", reply.Text)
}

func TestHandle_EmptyText(t *testing.T) {
	h := newHarness(t)

	reply, err := h.svc.Handle(context.Background(), msg("   "))

	require.NoError(t, err)
	assert.Equal(t, emptyMessageReply, reply.Text)
}

func TestHandle_MissingSender(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Handle(context.Background(), domain.InboundMessage{Text: "oi"})

	assert.Error(t, err)
}
