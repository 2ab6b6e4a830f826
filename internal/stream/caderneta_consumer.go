package stream

import (
	"context"
	"time"

	"caderneta_server/adapter/in/worker"
	"caderneta_server/pkg/logger"

	"github.com/goccy/go-json"
)

const reclaimIdle = time.Minute

// Submitter accepts decoded jobs.
type Submitter interface {
	Submit(msg *worker.Message) bool
}

// Consumer feeds stream entries to the worker pool.
type Consumer struct {
	stream *RedisStream
	pool   Submitter
	name   string
}

// NewConsumer creates a new stream consumer
func NewConsumer(stream *RedisStream, pool Submitter, name string) *Consumer {
	return &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
	}
}

// Start creates the group and consumes until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.stream.CreateGroup(ctx, StreamInbound); err != nil {
		return err
	}
	go c.stream.Consume(ctx, StreamInbound, c.name, c.handle)
	go c.reclaimLoop(ctx)
	logger.Info("stream consumer %s started on %s", c.name, StreamInbound)
	return nil
}

// handle hands the entry to the pool. Rejected entries stay pending and
// are picked up again by the reclaim loop.
func (c *Consumer) handle(e Entry) bool {
	msg, err := decodeJob(e)
	if err != nil {
		logger.WithError(err).Error("dropping undecodable stream entry %s", e.ID)
		return true
	}
	return c.pool.Submit(msg)
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(reclaimIdle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.stream.Reclaim(ctx, StreamInbound, c.name, reclaimIdle, c.handle)
			if err != nil {
				logger.WithError(err).Warn("reclaim pending entries")
				continue
			}
			if n > 0 {
				logger.Info("reclaimed %d pending entries", n)
			}
		}
	}
}

func decodeJob(e Entry) (*worker.Message, error) {
	var job Job
	if err := json.Unmarshal(e.Data, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = e.ID
	}
	if job.Payload == nil {
		job.Payload = map[string]any{}
	}
	return &worker.Message{
		ID:        job.ID,
		Type:      job.Type,
		Payload:   job.Payload,
		CreatedAt: job.CreatedAt,
	}, nil
}
