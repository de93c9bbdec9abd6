package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

// TurnLocker serializes turns per conversation: at most one in-flight turn
// may hold a conversation's lock. Turns on different conversations never
// contend.
type TurnLocker interface {
	// Acquire returns a release func, or an error if another turn holds the
	// lock. The lock expires after ttl as a crash backstop.
	Acquire(ctx context.Context, conversationID uuid.UUID, ttl time.Duration) (release func(), err error)
	Close() error
}

// ErrTurnInFlight is returned when a conversation already has an active turn.
var ErrTurnInFlight = fmt.Errorf("conversation turn already in flight")

type turnLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewTurnLocker(log *logger.Logger) (TurnLocker, error) {
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

	return &turnLocker{
		log:    log.With("service", "RedisTurnLocker"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *turnLocker) Acquire(ctx context.Context, conversationID uuid.UUID, ttl time.Duration) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("turn locker not initialized")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	key := fmt.Sprintf("%s:turnlock:%s", l.prefix, conversationID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrTurnInFlight
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && err != goredis.Nil {
			l.log.Warn("Turn lock release failed", "conversation_id", conversationID, "error", err)
		}
	}
	return release, nil
}

func (l *turnLocker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
