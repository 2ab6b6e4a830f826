package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"caderneta_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionModels = "classifier_models"

	modelCompressionThreshold = 512
)

// ModelAdapter implements out.ModelSnapshotStore. Each save replaces the
// document identified by name; large snapshots are gzip-compressed.
type ModelAdapter struct {
	collection *mongo.Collection
	name       string
	now        func() time.Time
}

var _ out.ModelSnapshotStore = (*ModelAdapter)(nil)

// NewModelAdapter creates a new model adapter
func NewModelAdapter(db *mongo.Database, name string) *ModelAdapter {
	return &ModelAdapter{collection: db.Collection(collectionModels), name: name, now: time.Now}
}

type modelDocument struct {
	Name         string    `bson:"_id"`
	Content      []byte    `bson:"content"`
	IsCompressed bool      `bson:"is_compressed"`
	OriginalSize int64     `bson:"original_size"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Save upserts the snapshot document.
func (a *ModelAdapter) Save(ctx context.Context, snapshot []byte) error {
	doc := modelDocument{
		Name:         a.name,
		Content:      snapshot,
		OriginalSize: int64(len(snapshot)),
		UpdatedAt:    a.now(),
	}
	if len(snapshot) > modelCompressionThreshold {
		compressed, err := compress(snapshot)
		if err != nil {
			return fmt.Errorf("compress model: %w", err)
		}
		doc.Content = compressed
		doc.IsCompressed = true
	}

	_, err := a.collection.ReplaceOne(ctx, bson.M{"_id": a.name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save model snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, decompressing it when needed.
func (a *ModelAdapter) Load(ctx context.Context) ([]byte, bool, error) {
	var doc modelDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": a.name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load model snapshot: %w", err)
	}
	if !doc.IsCompressed {
		return doc.Content, true, nil
	}
	data, err := decompress(doc.Content)
	if err != nil {
		return nil, false, fmt.Errorf("decompress model: %w", err)
	}
	return data, true, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
