// Пакет cache — кэш-прослойка перед PostgreSQL (cache-aside).
// Четыре независимые категории с собственной политикой
// {enabled, limit, ttl}; бэкенд — Redis или in-memory LRU.
// Кэш никогда не является источником истины: холодный или отключённый
// кэш меняет только латентность, но не наблюдаемое поведение.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Category — категория кэшируемых записей.
type Category string

const (
	// CategoryOperators — записи операторов (по uuid и api key).
	CategoryOperators Category = "operators"
	// CategoryEntities — записи сущностей (по uuid и hash).
	CategoryEntities Category = "entities"
	// CategoryAttachments — записи файловых вложений.
	CategoryAttachments Category = "attachments"
	// CategoryEvidence — evidence-записи.
	CategoryEvidence Category = "evidence"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fed_cache_hits_total",
		Help: "Общее количество попаданий в кэш по категориям.",
	}, []string{"category"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fed_cache_misses_total",
		Help: "Общее количество промахов кэша по категориям.",
	}, []string{"category"})
	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fed_cache_errors_total",
		Help: "Общее количество ошибок кэш-бэкенда по категориям.",
	}, []string{"category"})
)

// Policy — политика одной категории кэша.
type Policy struct {
	// Enabled — категория кэшируется
	Enabled bool
	// Limit — максимум живых ключей; <=0 — без предела
	Limit int
	// TTL — жёсткий срок жизни записи, без скользящего продления
	TTL time.Duration
}

// backend — низкоуровневое key-value хранилище кэша.
type backend interface {
	get(ctx context.Context, cat Category, key string) ([]byte, bool, error)
	set(ctx context.Context, cat Category, key string, value []byte, p Policy) error
	delete(ctx context.Context, cat Category, key string) error
	close() error
}

// Adapter — кэш-адаптер с политикой на категорию.
// Безопасен для конкурентного использования: Invalidate может
// вызываться параллельно с Get/Put для одного ключа.
type Adapter struct {
	backend       backend
	policies      map[Category]Policy
	throwOnErrors bool
	preCache      bool
}

// New создаёт адаптер поверх готового бэкенда.
// backend == nil означает полностью отключённый кэш (pass-through).
func New(b backend, policies map[Category]Policy, throwOnErrors, preCache bool) *Adapter {
	return &Adapter{
		backend:       b,
		policies:      policies,
		throwOnErrors: throwOnErrors,
		preCache:      preCache,
	}
}

// Disabled возвращает адаптер-заглушку: все операции — no-op.
func Disabled() *Adapter {
	return &Adapter{}
}

// policy возвращает политику категории; незнакомая категория отключена.
func (a *Adapter) policy(cat Category) Policy {
	if a.policies == nil {
		return Policy{}
	}
	return a.policies[cat]
}

// PreCacheEnabled сообщает, заполняется ли кэш синхронно на записи.
// false — кэш заполняется лениво при следующем чтении (cache-aside).
func (a *Adapter) PreCacheEnabled() bool {
	return a.preCache
}

// Get возвращает закэшированное значение.
// Промах (false, nil) — если категория отключена, ключа нет либо
// бэкенд недоступен при throwOnErrors=false; вызывающий обязан
// провалиться в авторитетное хранилище.
func (a *Adapter) Get(ctx context.Context, cat Category, key string) ([]byte, bool, error) {
	p := a.policy(cat)
	if a.backend == nil || !p.Enabled {
		return nil, false, nil
	}

	val, ok, err := a.backend.get(ctx, cat, key)
	if err != nil {
		cacheErrorsTotal.WithLabelValues(string(cat)).Inc()
		if a.throwOnErrors {
			return nil, false, fmt.Errorf("ошибка чтения кэша %s/%s: %w", cat, key, err)
		}
		return nil, false, nil
	}

	if ok {
		cacheHitsTotal.WithLabelValues(string(cat)).Inc()
	} else {
		cacheMissesTotal.WithLabelValues(string(cat)).Inc()
	}
	return val, ok, nil
}

// Put кладёт значение в кэш. No-op для отключённой категории.
func (a *Adapter) Put(ctx context.Context, cat Category, key string, value []byte) error {
	p := a.policy(cat)
	if a.backend == nil || !p.Enabled {
		return nil
	}

	if err := a.backend.set(ctx, cat, key, value, p); err != nil {
		cacheErrorsTotal.WithLabelValues(string(cat)).Inc()
		if a.throwOnErrors {
			return fmt.Errorf("ошибка записи кэша %s/%s: %w", cat, key, err)
		}
		return nil
	}
	return nil
}

// PutOnWrite заполняет кэш как часть операции записи (pre-cache).
// No-op при preCacheEnabled=false: кэш заполнится лениво при чтении.
func (a *Adapter) PutOnWrite(ctx context.Context, cat Category, key string, value []byte) error {
	if !a.preCache {
		return nil
	}
	return a.Put(ctx, cat, key, value)
}

// Invalidate безусловно удаляет запись из кэша.
// Вызывается после каждого успешного update/delete строки-источника.
func (a *Adapter) Invalidate(ctx context.Context, cat Category, keys ...string) error {
	if a.backend == nil {
		return nil
	}

	for _, key := range keys {
		if err := a.backend.delete(ctx, cat, key); err != nil {
			cacheErrorsTotal.WithLabelValues(string(cat)).Inc()
			if a.throwOnErrors {
				return fmt.Errorf("ошибка инвалидации кэша %s/%s: %w", cat, key, err)
			}
		}
	}
	return nil
}

// Close закрывает соединение с бэкендом кэша.
func (a *Adapter) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.close()
}
