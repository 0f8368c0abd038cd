// Package lease guarantees at most one active orchestrator per job id.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when the key is already leased by someone else
var ErrHeld = errors.New("lease already held")

// ReleaseFunc gives a lease back. Releasing an expired or stolen lease is a no-op.
type ReleaseFunc func(ctx context.Context) error

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis leases keys across processes with SET NX PX
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed lease manager
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "itinerary:lease:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Acquire takes the lease for key for ttl
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	if key == "" {
		return nil, errors.New("lease key cannot be empty")
	}

	token := uuid.NewString()
	redisKey := r.prefix + key

	ok, err := r.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
			return fmt.Errorf("redis release lease: %w", err)
		}
		return nil
	}, nil
}

// Local leases keys within a single process
type Local struct {
	mu      sync.Mutex
	holders map[string]localHolder
	now     func() time.Time
}

type localHolder struct {
	token     uint64
	expiresAt time.Time
}

// NewLocal creates an in-process lease manager
func NewLocal() *Local {
	return &Local{
		holders: make(map[string]localHolder),
		now:     time.Now,
	}
}

var localTokens struct {
	sync.Mutex
	next uint64
}

func nextLocalToken() uint64 {
	localTokens.Lock()
	defer localTokens.Unlock()
	localTokens.next++
	return localTokens.next
}

// Acquire takes the lease for key for ttl
func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	if key == "" {
		return nil, errors.New("lease key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if holder, ok := l.holders[key]; ok && now.Before(holder.expiresAt) {
		return nil, ErrHeld
	}

	token := nextLocalToken()
	l.holders[key] = localHolder{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if holder, ok := l.holders[key]; ok && holder.token == token {
			delete(l.holders, key)
		}
		return nil
	}, nil
}
