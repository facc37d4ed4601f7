package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/pdfchat-backend/internal/logger"
)

// StatusCache caches engine-side document processing status so that list and
// detail endpoints do not hit the engine on every request. Redis is optional:
// with no REDIS_ADDR configured every lookup is a miss and writes are no-ops.
type StatusCache interface {
	SetStatus(ctx context.Context, docID string, status string) error
	GetStatus(ctx context.Context, docID string) (string, bool, error)
	Enabled() bool
	Ping(ctx context.Context) error
	Close() error
}

type statusCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewStatusCache(log *logger.Logger) (StatusCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cacheLog := log.With("service", "RedisStatusCache")

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		cacheLog.Info("REDIS_ADDR not set, status cache disabled")
		return &statusCache{log: cacheLog}, nil
	}

	ttl := 300 * time.Second
	if v := os.Getenv("REDIS_STATUS_TTL_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			ttl = time.Duration(parsed) * time.Second
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &statusCache{log: cacheLog, rdb: rdb, ttl: ttl}, nil
}

func statusKey(docID string) string {
	return "document:status:" + docID
}

func (c *statusCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *statusCache) SetStatus(ctx context.Context, docID string, status string) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Set(ctx, statusKey(docID), status, c.ttl).Err()
}

func (c *statusCache) GetStatus(ctx context.Context, docID string) (string, bool, error) {
	if !c.Enabled() {
		return "", false, nil
	}
	val, err := c.rdb.Get(ctx, statusKey(docID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *statusCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("redis not configured")
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *statusCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
