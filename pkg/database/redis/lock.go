package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	// 默认锁过期时间
	defaultLockTTL = 10 * time.Second
)

// 只有持有者才能续期或释放
var (
	refreshScript = goredis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	unlockScript = goredis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
)

// Lock 带过期时间的单节点锁，持有者以 value 标识
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
}

// NewLock 创建锁，owner 为空时使用随机 UUID
func NewLock(client *Client, key, owner string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if owner == "" {
		owner = uuid.New().String()
	}

	return &Lock{
		client: client,
		key:    key,
		value:  owner,
		ttl:    ttl,
	}
}

// Key 锁的键
func (l *Lock) Key() string {
	return l.key
}

// Owner 持有者标识
func (l *Lock) Owner() string {
	return l.value
}

// TTL 过期时间
func (l *Lock) TTL() time.Duration {
	return l.ttl
}

// TryLock 尝试获取锁（SET NX PX），立即返回
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	return ok, nil
}

// Refresh 延长锁的持有时间
func (l *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client.rdb, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Unlock 释放锁
func (l *Lock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client.rdb, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to unlock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
