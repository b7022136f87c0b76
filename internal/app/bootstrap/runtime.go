package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/barber-booking-bot/internal/config"
	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/internal/events"
	"github.com/wolfman30/barber-booking-bot/internal/session"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSessionStore picks the session backend named by SESSION_STORE.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, loader *AWSLoader, logger *logging.Logger) (session.Store, error) {
	switch cfg.SessionStore {
	case "", "memory":
		return session.NewMemoryStore(cfg.SessionTTL), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: SESSION_STORE=redis needs a reachable REDIS_ADDR")
		}
		return session.NewRedisStore(redisClient, cfg.SessionTTL), nil
	case "dynamodb":
		awsCfg, err := loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		logger.Info("session store: dynamodb", "table", cfg.SessionsTable)
		return session.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.SessionsTable, cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown SESSION_STORE %q", cfg.SessionStore)
	}
}

// BuildQueue picks the inbound queue named by QUEUE.
func BuildQueue(ctx context.Context, cfg *appconfig.Config, loader *AWSLoader) (conversation.Queue, error) {
	switch cfg.Queue {
	case "", "memory":
		return conversation.NewMemoryQueue(256), nil
	case "sqs":
		if strings.TrimSpace(cfg.InboundQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: QUEUE=sqs needs INBOUND_QUEUE_URL")
		}
		awsCfg, err := loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown QUEUE %q", cfg.Queue)
	}
}

// ProcessedStore remembers inbound message ids so redeliveries are dropped.
type ProcessedStore interface {
	AlreadyProcessed(ctx context.Context, channel, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, channel, messageID string) (bool, error)
}

// BuildProcessedStore uses Postgres when DATABASE_URL is set and an
// in-process map otherwise. The returned pool is nil in the latter case.
func BuildProcessedStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (ProcessedStore, *pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return events.NewMemoryProcessedStore(cfg.ProcessedRetention), nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping database: %w", err)
	}
	logger.Info("processed message store: postgres")
	return events.NewProcessedStore(pool), pool, nil
}

type pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// runPruner deletes old processed ids every interval until ctx is done.
func runPruner(ctx context.Context, store pruner, retention, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx, retention)
			if err != nil {
				logger.Warn("prune processed messages failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("pruned processed messages", "count", n)
			}
		}
	}
}
