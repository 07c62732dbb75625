package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const unreadKeyPrefix = "unread:"

// UnreadCache хранит счётчики непрочитанных уведомлений в Redis.
type UnreadCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect разбирает URL, проверяет соединение и возвращает кэш.
func Connect(ctx context.Context, redisURL string, ttl time.Duration) (*UnreadCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewUnreadCache(rdb, ttl), nil
}

// NewUnreadCache оборачивает готовый клиент.
func NewUnreadCache(rdb *redis.Client, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &UnreadCache{rdb: rdb, ttl: ttl}
}

// UnreadKey возвращает ключ счётчика пользователя.
func UnreadKey(userID string) string {
	return unreadKeyPrefix + userID
}

// Get возвращает закэшированный счётчик. Второй результат false, если ключа нет.
func (c *UnreadCache) Get(ctx context.Context, userID string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, UnreadKey(userID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get unread count: %w", err)
	}
	return val, true, nil
}

// Set сохраняет счётчик с TTL.
func (c *UnreadCache) Set(ctx context.Context, userID string, count int) error {
	if err := c.rdb.Set(ctx, UnreadKey(userID), count, c.ttl).Err(); err != nil {
		return fmt.Errorf("set unread count: %w", err)
	}
	return nil
}

// Invalidate удаляет счётчик, следующий запрос пересчитает его из хранилища.
func (c *UnreadCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, UnreadKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate unread count: %w", err)
	}
	return nil
}

// Ping используется health-проверкой.
func (c *UnreadCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close закрывает соединение с Redis.
func (c *UnreadCache) Close() error {
	return c.rdb.Close()
}
