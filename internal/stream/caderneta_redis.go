// Package stream moves inbound chat messages through Redis streams so the
// webhook can answer immediately and any instance can do the work.
package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"caderneta_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	StreamInbound = "bot:inbound"

	readCount = 10
	readBlock = 5 * time.Second
)

// Entry is a stream record delivered to a consumer.
type Entry struct {
	ID   string
	Data []byte
}

// RedisStream wraps Redis Streams with a consumer group.
type RedisStream struct {
	client *redis.Client
	group  string
	maxLen int64
}

// NewRedisStream creates a new Redis stream
func NewRedisStream(client *redis.Client, group string, maxLen int64) *RedisStream {
	return &RedisStream{
		client: client,
		group:  group,
		maxLen: maxLen,
	}
}

// CreateGroup creates the consumer group, ignoring BUSYGROUP.
func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Publish appends data as JSON, trimming the stream to maxLen.
func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": jsonData},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Result()
}

// Consume reads new entries for consumer until ctx is done. Entries are
// acknowledged only when handler returns true.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, handler func(Entry) bool) {
	log := logger.WithFields(map[string]any{"stream": stream, "consumer": consumer})
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.WithError(err).Warn("stream read error")
				sleep(ctx, time.Second)
			}
			continue
		}

		for _, st := range streams {
			s.deliver(ctx, st.Stream, st.Messages, handler)
		}
	}
}

// Reclaim takes over entries another consumer left pending for longer than
// minIdle and hands them to handler.
func (s *RedisStream) Reclaim(ctx context.Context, stream, consumer string, minIdle time.Duration, handler func(Entry) bool) (int, error) {
	msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    s.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    readCount * 10,
	}).Result()
	if err != nil {
		return 0, err
	}
	return s.deliver(ctx, stream, msgs, handler), nil
}

func (s *RedisStream) deliver(ctx context.Context, stream string, msgs []redis.XMessage, handler func(Entry) bool) int {
	acked := 0
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			// nothing to retry
			_ = s.Ack(ctx, stream, msg.ID)
			continue
		}
		if !handler(Entry{ID: msg.ID, Data: []byte(data)}) {
			continue
		}
		if err := s.Ack(ctx, stream, msg.ID); err != nil {
			logger.WithError(err).Warn("ack %s on %s", msg.ID, stream)
			continue
		}
		acked++
	}
	return acked
}

// Ack acknowledges a processed entry.
func (s *RedisStream) Ack(ctx context.Context, stream, id string) error {
	return s.client.XAck(ctx, stream, s.group, id).Err()
}

// Pending returns the number of unacknowledged entries.
func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
