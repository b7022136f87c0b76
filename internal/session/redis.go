package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps sessions in Redis with a sliding expiry.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		prefix: "session:",
		tracer: otel.Tracer("barberbot.internal.session"),
	}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, data []byte) error {
	ctx, span := s.tracer.Start(ctx, "session.put")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	if err := s.redis.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
