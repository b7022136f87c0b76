package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore remembers transport message ids that were already handled so
// a redelivered message does not run through the dialogue twice.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if the channel has delivered this message id before.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, channel, messageID string) (bool, error) {
	query := `SELECT 1 FROM processed_messages WHERE channel = $1 AND message_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, channel, messageID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records a message id, returning false if it was already there.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, channel, messageID string) (bool, error) {
	query := `
		INSERT INTO processed_messages (channel, message_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, channel, messageID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Prune drops rows older than the retention window and reports how many went.
func (s *ProcessedStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	query := `DELETE FROM processed_messages WHERE processed_at < NOW() - make_interval(secs => $1)`
	ct, err := s.pool.Exec(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("events: prune processed: %w", err)
	}
	return ct.RowsAffected(), nil
}

// MemoryProcessedStore is the single-process variant used when no database is
// configured. Entries expire after ttl.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryProcessedStore(ttl time.Duration) *MemoryProcessedStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryProcessedStore{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (s *MemoryProcessedStore) AlreadyProcessed(_ context.Context, channel, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.seen[channel+"\x00"+messageID]
	if !ok {
		return false, nil
	}
	if s.now().Sub(at) > s.ttl {
		delete(s.seen, channel+"\x00"+messageID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, channel, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := channel + "\x00" + messageID
	now := s.now()
	if at, ok := s.seen[key]; ok && now.Sub(at) <= s.ttl {
		return false, nil
	}
	s.seen[key] = now
	if len(s.seen) > 4096 {
		for k, at := range s.seen {
			if now.Sub(at) > s.ttl {
				delete(s.seen, k)
			}
		}
	}
	return true, nil
}
