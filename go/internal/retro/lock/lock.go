// Package lock provides keyed mutual exclusion, in-process or through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker serialises work per key. The returned unlock func is safe to call
// more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// KeyedMutex is an in-process Locker. Entries are reference counted so idle
// keys do not accumulate.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// size reports how many keys are tracked.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RedisLockerConfig holds settings for RedisLocker.
type RedisLockerConfig struct {
	Prefix     string
	TTL        time.Duration // lock expiry if the holder dies
	RetryDelay time.Duration // wait between acquisition attempts
}

// DefaultRedisLockerConfig returns default settings.
func DefaultRedisLockerConfig() RedisLockerConfig {
	return RedisLockerConfig{
		Prefix:     "retro:lock:",
		TTL:        5 * time.Second,
		RetryDelay: 25 * time.Millisecond,
	}
}

// ErrLockNotAcquired is returned when ctx ends before the lock is obtained.
var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every gateway instance talking to the
// same Redis.
type RedisLocker struct {
	client redis.UniversalClient
	config RedisLockerConfig
}

// NewRedisLocker creates a Redis-backed Locker.
func NewRedisLocker(client redis.UniversalClient, config RedisLockerConfig) *RedisLocker {
	if config.TTL <= 0 {
		config.TTL = DefaultRedisLockerConfig().TTL
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRedisLockerConfig().RetryDelay
	}
	return &RedisLocker{client: client, config: config}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.config.Prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.config.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, redisKey, ctx.Err())
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				log.Error().Err(err).Str("key", redisKey).Msg("failed to release lock")
			}
		})
	}, nil
}
