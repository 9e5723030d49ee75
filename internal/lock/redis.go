package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL          = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLocker is a ContactLocker shared by every replica. The lock key
// expires after ttl unless the holder keeps renewing it.
type RedisLocker struct {
	redis        *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{
		redis:        client,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
		logger:       logger.Named("contact_lock"),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, scope domain.ContactScope) (func(), error) {
	k := key(scope)
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.redis.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("lock acquisition failed: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		}
	}

	done := make(chan struct{})
	go l.renew(k, token, done)

	l.logger.Debug("contact lock acquired", zap.String("key", k), zap.Duration("ttl", l.ttl))
	return l.releaser(k, token, done), nil
}

// releaser stops renewal and deletes the key. It is safe to call more than
// once and from several goroutines.
func (l *RedisLocker) releaser(k, token string, done chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := releaseScript.Run(context.Background(), l.redis, []string{k}, token).Err(); err != nil {
				l.logger.Warn("contact lock release failed", zap.String("key", k), zap.Error(err))
				return
			}
			l.logger.Debug("contact lock released", zap.String("key", k))
		})
	}
}

func (l *RedisLocker) renew(k, token string, done <-chan struct{}) {
	t := time.NewTicker(l.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			n, err := renewScript.Run(context.Background(), l.redis, []string{k}, token, l.ttl.Milliseconds()).Int64()
			if !l.renewed(k, n, err) {
				return
			}
		case <-done:
			return
		}
	}
}

// renewed logs the outcome of one renewal and reports whether the holder
// still owns the key. A zero reply means the key expired or another replica
// took it over.
func (l *RedisLocker) renewed(k string, n int64, err error) bool {
	if err != nil {
		l.logger.Warn("contact lock renewal failed", zap.String("key", k), zap.Error(err))
		return true
	}
	if n == 0 {
		l.logger.Error("contact lock lost before release", zap.String("key", k))
		return false
	}
	return true
}
