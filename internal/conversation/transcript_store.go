package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptKeyPrefix  = "transcript:"
	transcriptTTL        = 7 * 24 * time.Hour
	transcriptMaxEntries = 200
)

// TranscriptEntry is one line of a chat as shown on the admin API.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "customer" or "bot"
	Channel   Channel   `json:"channel,omitempty"`
	Text      string    `json:"text"`
	State     State     `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status,omitempty"`
}

const (
	RoleCustomer = "customer"
	RoleBot      = "bot"
)

// TranscriptStore keeps a capped, expiring per-session chat log in Redis.
type TranscriptStore struct {
	redis      *redis.Client
	tracer     trace.Tracer
	maxEntries int64
	ttl        time.Duration
}

// NewTranscriptStore returns nil for a nil client so callers can leave the
// transcript unwired.
func NewTranscriptStore(client *redis.Client) *TranscriptStore {
	if client == nil {
		return nil
	}
	return &TranscriptStore{
		redis:      client,
		tracer:     otel.Tracer("barber.internal.conversation.transcript"),
		maxEntries: transcriptMaxEntries,
		ttl:        transcriptTTL,
	}
}

func (s *TranscriptStore) Append(ctx context.Context, sessionID string, entry TranscriptEntry) error {
	if s == nil {
		return nil
	}
	if sessionID == "" {
		return errors.New("conversation: transcript session id required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation: marshal transcript entry: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.append")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	key := transcriptKeyPrefix + sessionID
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	pipe.LTrim(ctx, key, -s.maxEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append transcript: %w", err)
	}
	return nil
}

// List returns the newest limit entries in chronological order; zero
// returns all of them.
func (s *TranscriptStore) List(ctx context.Context, sessionID string, limit int64) ([]TranscriptEntry, error) {
	if s == nil {
		return nil, nil
	}
	if sessionID == "" {
		return nil, errors.New("conversation: transcript session id required")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, transcriptKeyPrefix+sessionID, start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, redis.Nil) {
			return []TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("conversation: list transcript: %w", err)
	}
	out := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var e TranscriptEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Clear drops the transcript for a session.
func (s *TranscriptStore) Clear(ctx context.Context, sessionID string) error {
	if s == nil {
		return nil
	}
	if err := s.redis.Del(ctx, transcriptKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("conversation: clear transcript: %w", err)
	}
	return nil
}
