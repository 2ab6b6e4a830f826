package stream

import (
	"context"
	"time"

	"caderneta_server/adapter/in/worker"
	"caderneta_server/core/domain"

	"github.com/google/uuid"
)

// Job is the stream entry format.
type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Producer publishes jobs to the inbound stream.
type Producer struct {
	stream *RedisStream
}

// NewProducer creates a new stream producer
func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

// PublishInbound queues msg to be answered by a worker.
func (p *Producer) PublishInbound(ctx context.Context, msg domain.InboundMessage) (string, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Type:      worker.JobInbound,
		Payload:   worker.InboundPayloadFrom(msg),
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamInbound, job)
}

// PublishReload asks a worker to reload the classifier snapshot.
func (p *Producer) PublishReload(ctx context.Context) (string, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Type:      worker.JobReload,
		Payload:   map[string]any{},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamInbound, job)
}
