// redis.go — Redis-бэкенд кэш-адаптера (go-redis/v9).
// Значения пишутся через SET с TTL; вместимость категории
// ограничивается списком порядка вставки: при превышении лимита
// вытесняется самый старый ключ.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions — параметры подключения к Redis.
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	Database int
}

// redisBackend — бэкенд кэша поверх Redis.
type redisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend подключается к Redis и проверяет соединение ping-ом.
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*redisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.Database,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s:%d: %w", opts.Host, opts.Port, err)
	}

	return &redisBackend{rdb: rdb}, nil
}

// valueKey — ключ значения: fed:{category}:{key}.
func valueKey(cat Category, key string) string {
	return fmt.Sprintf("fed:%s:%s", cat, key)
}

// indexKey — ключ списка порядка вставки категории.
func indexKey(cat Category) string {
	return fmt.Sprintf("fed:%s:_index", cat)
}

func (b *redisBackend) get(ctx context.Context, cat Category, key string) ([]byte, bool, error) {
	val, err := b.rdb.Get(ctx, valueKey(cat, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *redisBackend) set(ctx context.Context, cat Category, key string, value []byte, p Policy) error {
	var ttl time.Duration
	if p.TTL > 0 {
		ttl = p.TTL
	}

	if err := b.rdb.Set(ctx, valueKey(cat, key), value, ttl).Err(); err != nil {
		return err
	}

	if p.Limit <= 0 {
		return nil
	}

	// Вместимость: список порядка вставки, вытеснение старейшего ключа.
	// Перезапись существующего ключа переносит его в хвост списка,
	// поэтому сначала убираем прежнее вхождение — в списке ровно одно
	// вхождение на живой ключ.
	idx := indexKey(cat)
	if err := b.rdb.LRem(ctx, idx, 0, key).Err(); err != nil {
		return err
	}
	if err := b.rdb.RPush(ctx, idx, key).Err(); err != nil {
		return err
	}

	length, err := b.rdb.LLen(ctx, idx).Result()
	if err != nil {
		return err
	}
	for length > int64(p.Limit) {
		oldest, err := b.rdb.LPop(ctx, idx).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return err
		}
		if err := b.rdb.Del(ctx, valueKey(cat, oldest)).Err(); err != nil {
			return err
		}
		length--
	}
	return nil
}

func (b *redisBackend) delete(ctx context.Context, cat Category, key string) error {
	if err := b.rdb.Del(ctx, valueKey(cat, key)).Err(); err != nil {
		return err
	}
	// Удаляем ключ из списка порядка вставки (все вхождения).
	return b.rdb.LRem(ctx, indexKey(cat), 0, key).Err()
}

func (b *redisBackend) close() error {
	return b.rdb.Close()
}
