package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/in"
	"caderneta_server/core/port/out"
	"caderneta_server/core/service/classifier"
	"caderneta_server/core/service/command"
	"caderneta_server/core/service/extractor"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"
)

const (
	amountMissingReply = "Não encontrei o valor na sua mensagem. Ex: *paguei 1350 aluguel*"
	notUnderstoodReply = "Não entendi sua mensagem 🫤\n\n"
	saveFailureReply   = "Não consegui registrar sua transação agora. Tente novamente em instantes."
	emptyMessageReply  = "Mande uma mensagem como *paguei 50 mercado* ou *ajuda* para ver os comandos."
)

// Classifier labels free text.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.ClassificationResult, error)
	Learn(ctx context.Context, text string, result domain.ClassificationResult) error
}

type Extractor interface {
	Extract(raw string, t domain.TransactionType) (domain.ExtractedTransaction, error)
}

// Onboarding answers identities that are not users yet.
type Onboarding interface {
	Handle(ctx context.Context, key, text string) (string, error)
}

// Dispatcher resolves and runs commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string, cc command.Context) (domain.Reply, error)
}

// IDGenerator issues transaction ids.
type IDGenerator interface {
	Next() (int64, error)
}

// Deps wires the conversation pipeline.
type Deps struct {
	Users      out.UserRepository
	UnitOfWork out.UnitOfWork
	Onboarding Onboarding
	Router     Dispatcher
	Classifier Classifier
	Extractor  Extractor
	IDs        IDGenerator
	Help       func() string
	Clock      func() time.Time
	Logger     *logger.Logger
}

// Service turns one inbound chat message into one reply.
type Service struct {
	Deps
}

var _ in.BotService = (*Service)(nil)

// NewService creates a new bot service
func NewService(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Help == nil {
		deps.Help = func() string { return "" }
	}
	if deps.Logger == nil {
		deps.Logger = logger.WithField("component", "bot")
	}
	return &Service{Deps: deps}
}

// Handle answers one inbound message: onboarding, then commands, then transactions.
func (s *Service) Handle(ctx context.Context, msg domain.InboundMessage) (domain.Reply, error) {
	key := domain.NormalizePhone(msg.From)
	if key == "" {
		return domain.Reply{}, apperr.InvalidInput("from", "message has no sender")
	}
	ctx = context.WithValue(ctx, logger.IdentityKey, key)
	log := s.Logger.WithContext(ctx)
	text := strings.TrimSpace(msg.Text)

	user, err := s.Users.FindByIdentity(ctx, key)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		answer, err := s.Onboarding.Handle(ctx, key, text)
		if err != nil {
			return domain.Reply{}, err
		}
		return domain.TextReply(answer), nil
	}
	if text == "" {
		return domain.TextReply(emptyMessageReply), nil
	}

	reply, err := s.Router.Dispatch(ctx, text, command.Context{User: user, Phone: key, MessageID: msg.ExternalID})
	if err == nil {
		return reply, nil
	}
	if !errors.Is(err, command.ErrUnknownCommand) {
		return domain.Reply{}, err
	}
	if words := strings.Fields(text); len(words) == 1 {
		return domain.TextReply(command.UnknownWordReply(words[0])), nil
	}

	result, err := s.Classifier.Classify(ctx, text)
	if errors.Is(err, classifier.ErrNotATransaction) {
		log.Debug("not a transaction: %q", text)
		return domain.TextReply(notUnderstoodReply + s.Help()), nil
	}
	if err != nil {
		return domain.Reply{}, err
	}
	txType, ok := result.Label.TransactionType()
	if !ok {
		return domain.TextReply(notUnderstoodReply + s.Help()), nil
	}

	extracted, err := s.Extractor.Extract(text, txType)
	if errors.Is(err, extractor.ErrAmountMissing) {
		return domain.TextReply(amountMissingReply), nil
	}
	if err != nil {
		return domain.Reply{}, err
	}

	id, err := s.IDs.Next()
	if err != nil {
		return domain.Reply{}, apperr.Internal("generate transaction id").WithError(err)
	}
	tx := domain.NewTransaction(id, user.ID, msg.ExternalID, extracted, s.Clock())
	err = s.UnitOfWork.Do(ctx, func(ctx context.Context, store out.TransactionStore) error {
		return store.Save(ctx, tx)
	})
	if err != nil {
		log.WithError(err).Error("save transaction")
		return domain.TextReply(saveFailureReply), nil
	}
	log.WithFields(map[string]any{
		"transaction_id": tx.ID,
		"type":           tx.Type,
		"source":         result.Source,
	}).Info("transaction recorded")

	if err := s.Classifier.Learn(ctx, text, result); err != nil {
		log.WithError(err).Warn("append training sample")
	}
	return confirmationReply(tx), nil
}

func confirmationReply(tx *domain.Transaction) domain.Reply {
	undo := "apagar"
	if tx.ExternalID != "" {
		undo = tx.ExternalID
	}
	return domain.Reply{
		Text: confirmationText(tx),
		Buttons: []domain.Button{
			{ID: undo, Title: "Apagar"},
			{ID: "saldo", Title: "Saldo"},
		},
	}
}
