// Package classifier decides whether a message is a debit, a credit or
// neither. A trained model answers first; when it is unsure, the first word
// of the message is looked up in fixed trigger-verb tables.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"
	"caderneta_server/pkg/textnorm"

	"golang.org/x/sync/singleflight"
)

// Errors returned by Classify.
var (
	ErrNotATransaction = apperr.New(apperr.CodeNotATransaction, "message is not a transaction", http.StatusUnprocessableEntity)
	ErrModelNotFitted  = apperr.New(apperr.CodeModelNotFitted, "classifier has no fitted model", http.StatusServiceUnavailable)
)

const (
	DefaultThreshold     = 0.7
	DefaultMinConfidence = 0.7
)

// Classifier serves classifications from an immutable model snapshot.
// Training happens elsewhere; the only in-process fit is the one-time
// bootstrap when no snapshot exists yet.
type Classifier struct {
	model     atomic.Pointer[Model]
	snapshots out.ModelSnapshotStore
	corpus    out.TrainingCorpus
	seed      func() ([]domain.TrainingSample, error)

	threshold     float64
	minConfidence float64

	group singleflight.Group
	log   *logger.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold sets the model score below which the trigger tables decide.
func WithThreshold(t float64) Option {
	return func(c *Classifier) { c.threshold = t }
}

// WithMinConfidence sets the score a result needs to enter the corpus.
func WithMinConfidence(t float64) Option {
	return func(c *Classifier) { c.minConfidence = t }
}

// WithSeed replaces the built-in bootstrap corpus.
func WithSeed(seed func() ([]domain.TrainingSample, error)) Option {
	return func(c *Classifier) { c.seed = seed }
}

// WithLogger overrides the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// New creates a classifier that bootstraps lazily on the first Classify.
func New(snapshots out.ModelSnapshotStore, corpus out.TrainingCorpus, opts ...Option) *Classifier {
	c := &Classifier{
		snapshots:     snapshots,
		corpus:        corpus,
		seed:          SeedCorpus,
		threshold:     DefaultThreshold,
		minConfidence: DefaultMinConfidence,
		log:           logger.WithField("component", "classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify labels text as DEBIT or CREDIT, or returns ErrNotATransaction.
func (c *Classifier) Classify(ctx context.Context, text string) (domain.ClassificationResult, error) {
	result, err := c.classify(text)
	if errors.Is(err, ErrModelNotFitted) {
		if berr := c.bootstrap(ctx); berr != nil {
			return domain.ClassificationResult{}, fmt.Errorf("bootstrap classifier: %w", berr)
		}
		result, err = c.classify(text)
	}
	return result, err
}

func (c *Classifier) classify(text string) (domain.ClassificationResult, error) {
	m := c.model.Load()
	if m == nil {
		return domain.ClassificationResult{}, ErrModelNotFitted
	}

	label, scores := m.Predict(text)
	if scores[label] < c.threshold {
		if forced, ok := KeywordLabel(text); ok {
			c.log.Debug("low confidence %.2f for %s, keyword forced %s", scores[label], label, forced)
			return domain.ClassificationResult{
				Label:  forced,
				Scores: syntheticScores(forced),
				Source: domain.SourceKeyword,
			}, nil
		}
		return domain.ClassificationResult{}, ErrNotATransaction.WithDetail("confidence", scores[label])
	}
	if label == domain.LabelOther {
		return domain.ClassificationResult{}, ErrNotATransaction
	}
	return domain.ClassificationResult{Label: label, Scores: scores, Source: domain.SourceModel}, nil
}

// KeywordLabel looks the first token of text up in the trigger tables.
func KeywordLabel(text string) (domain.Label, bool) {
	fields := strings.Fields(textnorm.Fold(text))
	if len(fields) == 0 {
		return "", false
	}
	t, ok := domain.TriggerType(strings.Trim(fields[0], ".,;:!?"))
	if !ok {
		return "", false
	}
	if t == domain.TransactionCredit {
		return domain.LabelCredit, true
	}
	return domain.LabelDebit, true
}

func syntheticScores(forced domain.Label) map[domain.Label]float64 {
	scores := make(map[domain.Label]float64, len(domain.Labels))
	for _, l := range domain.Labels {
		scores[l] = 0
	}
	scores[forced] = 1.0
	return scores
}

// Learn appends an accepted classification to the training corpus. It never
// touches the live model.
func (c *Classifier) Learn(ctx context.Context, text string, result domain.ClassificationResult) error {
	if result.Label == domain.LabelOther || result.Confidence() < c.minConfidence {
		return nil
	}
	sample := domain.TrainingSample{
		Text:       strings.TrimSpace(textnorm.Lower(text)),
		Label:      result.Label,
		Confidence: result.Confidence(),
	}
	if err := c.corpus.Append(ctx, sample); err != nil {
		return fmt.Errorf("append training sample: %w", err)
	}
	return nil
}

// Swap installs m as the live model.
func (c *Classifier) Swap(m *Model) {
	c.model.Store(m)
}

// Reload replaces the live model with the latest saved snapshot, if any.
func (c *Classifier) Reload(ctx context.Context) error {
	data, ok, err := c.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return nil
	}
	m, err := UnmarshalModel(data)
	if err != nil {
		return err
	}
	c.Swap(m)
	c.log.Info("model reloaded, %d samples", m.Learned())
	return nil
}

// bootstrap loads the saved snapshot or, lacking one, fits and saves a
// first model. Concurrent callers share a single run.
func (c *Classifier) bootstrap(ctx context.Context) error {
	_, err, _ := c.group.Do("bootstrap", func() (any, error) {
		if c.model.Load() != nil {
			return nil, nil
		}
		if err := c.Reload(ctx); err != nil {
			c.log.WithError(err).Warn("snapshot unusable, refitting")
		}
		if c.model.Load() != nil {
			return nil, nil
		}

		seed, err := c.seed()
		if err != nil {
			return nil, fmt.Errorf("load seed corpus: %w", err)
		}
		// learned rows are only ever DEBIT or CREDIT; the seed carries OTHER.
		samples, err := c.corpus.All(ctx)
		if err != nil {
			c.log.WithError(err).Warn("training corpus unavailable, using seed")
		}
		samples = append(samples, seed...)

		m, err := Train(samples)
		if err != nil {
			return nil, err
		}
		if data, err := m.MarshalBinary(); err != nil {
			c.log.WithError(err).Error("encode bootstrap model")
		} else if err := c.snapshots.Save(ctx, data); err != nil {
			c.log.WithError(err).Error("save bootstrap model")
		}
		c.Swap(m)
		c.log.Info("bootstrap model fitted on %d samples", m.Learned())
		return nil, nil
	})
	return err
}
