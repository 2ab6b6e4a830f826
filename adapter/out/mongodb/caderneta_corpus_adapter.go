package mongodb

import (
	"context"
	"fmt"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionTrainingSamples = "training_samples"

// CorpusAdapter implements out.TrainingCorpus as an append-only collection.
type CorpusAdapter struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ out.TrainingCorpus = (*CorpusAdapter)(nil)

// NewCorpusAdapter creates a new corpus adapter
func NewCorpusAdapter(db *mongo.Database) *CorpusAdapter {
	return &CorpusAdapter{collection: db.Collection(collectionTrainingSamples), now: time.Now}
}

// EnsureIndexes creates the label and created_at indexes.
func (a *CorpusAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "label", Value: 1}}},
	})
	return err
}

type sampleDocument struct {
	Text       string    `bson:"text"`
	Label      string    `bson:"label"`
	Confidence float64   `bson:"confidence"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (a *CorpusAdapter) Append(ctx context.Context, sample domain.TrainingSample) error {
	doc := sampleDocument{
		Text:       sample.Text,
		Label:      string(sample.Label),
		Confidence: sample.Confidence,
		CreatedAt:  a.now(),
	}
	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append training sample: %w", err)
	}
	return nil
}

// All returns every sample in insertion order. Rows with an unknown label
// are skipped.
func (a *CorpusAdapter) All(ctx context.Context) ([]domain.TrainingSample, error) {
	cursor, err := a.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("read training corpus: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []sampleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode training corpus: %w", err)
	}
	samples := make([]domain.TrainingSample, 0, len(docs))
	for _, d := range docs {
		label, ok := domain.ParseLabel(d.Label)
		if !ok {
			continue
		}
		samples = append(samples, domain.TrainingSample{Text: d.Text, Label: label, Confidence: d.Confidence})
	}
	return samples, nil
}
