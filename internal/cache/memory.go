// memory.go — in-memory бэкенд кэш-адаптера.
// Обёртка над hashicorp/golang-lru/v2/expirable: нативная LRU-эвикция
// по вместимости и автоматический TTL на категорию.
package cache

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryBackend — per-instance кэш без внешних зависимостей.
// Используется, когда Redis не развёрнут, но кэширование желательно.
type memoryBackend struct {
	lrus map[Category]*expirable.LRU[string, []byte]
}

// NewMemoryBackend создаёт по LRU-кэшу на каждую включённую категорию.
// Размер и TTL берутся из политики категории; Limit<=0 — без предела.
func NewMemoryBackend(policies map[Category]Policy) *memoryBackend {
	lrus := make(map[Category]*expirable.LRU[string, []byte], len(policies))
	for cat, p := range policies {
		if !p.Enabled {
			continue
		}
		size := p.Limit
		if size < 0 {
			size = 0 // expirable.LRU: 0 — без ограничения размера
		}
		lrus[cat] = expirable.NewLRU[string, []byte](size, nil, p.TTL)
	}
	return &memoryBackend{lrus: lrus}
}

func (b *memoryBackend) get(_ context.Context, cat Category, key string) ([]byte, bool, error) {
	lru, ok := b.lrus[cat]
	if !ok {
		return nil, false, nil
	}
	val, ok := lru.Get(key)
	return val, ok, nil
}

func (b *memoryBackend) set(_ context.Context, cat Category, key string, value []byte, _ Policy) error {
	if lru, ok := b.lrus[cat]; ok {
		lru.Add(key, value)
	}
	return nil
}

func (b *memoryBackend) delete(_ context.Context, cat Category, key string) error {
	if lru, ok := b.lrus[cat]; ok {
		lru.Remove(key)
	}
	return nil
}

func (b *memoryBackend) close() error {
	return nil
}
