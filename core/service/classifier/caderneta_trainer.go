package classifier

import (
	"context"
	"fmt"
	"math/rand/v2"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
)

// TrainReport summarizes one retraining run.
type TrainReport struct {
	Samples   int
	TrainSize int
	TestSize  int
	Accuracy  float64
}

// Trainer refits the model from the full corpus and publishes a snapshot.
// Running services pick it up through Classifier.Reload.
type Trainer struct {
	corpus    out.TrainingCorpus
	snapshots out.ModelSnapshotStore
	holdout   float64
	seed      uint64
}

// NewTrainer creates a trainer holding out the given fraction for evaluation.
func NewTrainer(corpus out.TrainingCorpus, snapshots out.ModelSnapshotStore, holdout float64, seed uint64) *Trainer {
	if holdout < 0 || holdout >= 1 {
		holdout = 0.2
	}
	return &Trainer{corpus: corpus, snapshots: snapshots, holdout: holdout, seed: seed}
}

// Run fits a model on the corpus plus the seed, scores it and saves the snapshot.
func (t *Trainer) Run(ctx context.Context) (*Model, TrainReport, error) {
	samples, err := t.corpus.All(ctx)
	if err != nil {
		return nil, TrainReport{}, fmt.Errorf("load corpus: %w", err)
	}
	seed, err := SeedCorpus()
	if err != nil {
		return nil, TrainReport{}, err
	}
	samples = append(samples, seed...)

	report := TrainReport{Samples: len(samples)}
	train, test := split(samples, t.holdout, t.seed)
	report.TrainSize, report.TestSize = len(train), len(test)

	if len(test) > 0 {
		probe, err := Train(train)
		if err != nil {
			return nil, report, err
		}
		report.Accuracy = Accuracy(probe, test)
	}

	m, err := Train(samples)
	if err != nil {
		return nil, report, err
	}
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, report, err
	}
	if err := t.snapshots.Save(ctx, data); err != nil {
		return nil, report, fmt.Errorf("save snapshot: %w", err)
	}
	return m, report, nil
}

// Accuracy is the share of samples m labels correctly.
func Accuracy(m *Model, samples []domain.TrainingSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	hits := 0
	for _, s := range samples {
		if label, _ := m.Predict(s.Text); label == s.Label {
			hits++
		}
	}
	return float64(hits) / float64(len(samples))
}

func split(samples []domain.TrainingSample, holdout float64, seed uint64) (train, test []domain.TrainingSample) {
	shuffled := make([]domain.TrainingSample, len(samples))
	copy(shuffled, samples)
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := int(float64(len(shuffled)) * holdout)
	return shuffled[n:], shuffled[:n]
}
