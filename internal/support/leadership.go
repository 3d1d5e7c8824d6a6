package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL = 45 * time.Second
	leadershipRetryDelay = time.Second
	lockCallTimeout      = 5 * time.Second
	minRenewalInterval   = time.Second
	renewalsPerTTL       = 3
)

var (
	leaderCounter atomic.Uint64

	errLockLost = errors.New("support: leader lock lost")

	// Both scripts only touch the key while it still holds our token.
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RunExclusive runs fn as the single cluster-wide holder of key when Redis is
// configured, and directly otherwise. It returns once ctx is done.
func RunExclusive(ctx context.Context, key string, fn func(context.Context)) error {
	if fn == nil {
		return errors.New("support: exclusive run function cannot be nil")
	}
	if !RedisConfigured() {
		fn(ctx)
		return ctx.Err()
	}
	return RunWithLeader(ctx, key, DefaultLeadershipTTL, fn)
}

// RunWithLeader blocks until it holds the Redis lock for key, then calls run
// with a context that is cancelled when the lock is lost or ctx ends. The lock
// is renewed in the background and released after run returns; the loop then
// competes for the lock again until ctx is done.
func RunWithLeader(ctx context.Context, key string, ttl time.Duration, run func(context.Context)) error {
	if run == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}

	client, err := GetRedisClient()
	if err != nil {
		return fmt.Errorf("support: leader lock redis client: %w", err)
	}

	for ctx.Err() == nil {
		lock := &leaderLock{client: client, key: key, token: newLeaderToken(), ttl: ttl}

		held, err := lock.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("leader lock: failed to acquire", "key", key, "error", err)
			sleepCtx(ctx, leadershipRetryDelay)
			continue
		}

		log.Debug("leader lock: acquired", "key", key)
		run(held)
		lock.release()
		log.Debug("leader lock: released", "key", key)

		sleepCtx(ctx, leadershipRetryDelay)
	}
	return ctx.Err()
}

type leaderLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once
}

// acquire polls SETNX until the key is ours and returns the leadership context.
func (l *leaderLock) acquire(ctx context.Context) (context.Context, error) {
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			log.Warn("leader lock: setnx failed", "key", l.key, "error", err)
		}
		if ok {
			held, cancel := context.WithCancel(ctx)
			l.cancel = cancel
			l.stop = make(chan struct{})
			go l.keepAlive(held)
			return held, nil
		}
		if !sleepCtx(ctx, leadershipRetryDelay) {
			return nil, ctx.Err()
		}
	}
}

func (l *leaderLock) keepAlive(held context.Context) {
	interval := l.ttl / renewalsPerTTL
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-held.Done():
			return
		case <-ticker.C:
			if err := l.renew(); err != nil {
				log.Warn("leader lock: renewal failed", "key", l.key, "error", err)
				l.cancel()
				return
			}
		}
	}
}

func (l *leaderLock) renew() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockCallTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errLockLost
	}
	return nil
}

func (l *leaderLock) release() {
	l.once.Do(func() {
		close(l.stop)
		l.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), lockCallTimeout)
		defer cancel()
		if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn("leader lock: release failed", "key", l.key, "error", err)
		}
	})
}

func newLeaderToken() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), leaderCounter.Add(1))
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
