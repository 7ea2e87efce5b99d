package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisSweepLock implements SweepLock with a Redis SET NX lease so engine
// replicas sharing a Postgres store never sweep concurrently.
type RedisSweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ SweepLock = (*RedisSweepLock)(nil)

// NewRedisSweepLock creates a lock on key with the given lease duration.
// The TTL bounds how long a crashed holder can block other replicas.
func NewRedisSweepLock(client *redis.Client, key string, ttl time.Duration) *RedisSweepLock {
	return &RedisSweepLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lease or returns ErrSweepLocked if another replica holds
// it. The returned release func is safe to call after the lease expired: it
// only deletes the key when the holder token still matches.
func (l *RedisSweepLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSweepLocked
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{l.key}, token).Err()
	}, nil
}
