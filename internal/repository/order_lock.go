package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisOrderLock implements interfaces.OrderLock with SETNX.
type RedisOrderLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOrderLock(client *redis.Client, ttl time.Duration) *RedisOrderLock {
	return &RedisOrderLock{client: client, ttl: ttl}
}

func (l *RedisOrderLock) Acquire(ctx context.Context, merchantReference string) (func(), error) {
	key := fmt.Sprintf("order_lock:%s", merchantReference)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire order lock: %w", err)
	}
	if !ok {
		return nil, interfaces.ErrOrderLocked
	}

	return func() {
		releaseScript.Run(context.Background(), l.client, []string{key}, token)
	}, nil
}
