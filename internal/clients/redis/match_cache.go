package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

// MatchCache memoizes reranked match lists for identical inputs so repeated
// requests within the TTL skip the embedding and rerank work.
type MatchCache interface {
	Get(ctx context.Context, key string) ([]match.Ranked, bool)
	Set(ctx context.Context, key string, results []match.Ranked)
	Close() error
}

type matchCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewMatchCache(log *logger.Logger) (MatchCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_KEY_PREFIX"))
	if prefix == "" {
		prefix = "ps"
	}

	ttl := 30 * time.Minute
	if v := strings.TrimSpace(os.Getenv("MATCH_CACHE_TTL_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ttl = time.Duration(parsed) * time.Second
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &matchCache{
		log:    log.With("service", "RedisMatchCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (c *matchCache) Get(ctx context.Context, key string) ([]match.Ranked, bool) {
	if c == nil || c.rdb == nil || strings.TrimSpace(key) == "" {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.prefix+":matchcache:"+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Match cache read failed", "error", err)
		}
		return nil, false
	}
	var out []match.Ranked
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warn("Match cache decode failed", "error", err)
		return nil, false
	}
	return out, true
}

func (c *matchCache) Set(ctx context.Context, key string, results []match.Ranked) {
	if c == nil || c.rdb == nil || strings.TrimSpace(key) == "" {
		return
	}
	raw, err := json.Marshal(results)
	if err != nil {
		c.log.Warn("Match cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+":matchcache:"+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Match cache write failed", "error", err)
	}
}

func (c *matchCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
