package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// newTestRedis поднимает miniredis и возвращает бэкенд поверх него.
func newTestRedis(t *testing.T) *redisBackend {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("запуск miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("порт miniredis: %v", err)
	}

	b, err := NewRedisBackend(context.Background(), RedisOptions{
		Host: mr.Host(),
		Port: port,
	})
	if err != nil {
		t.Fatalf("подключение к miniredis: %v", err)
	}
	t.Cleanup(func() { _ = b.close() })
	return b
}

// TestRedisBackend_GetSetDelete проверяет базовый цикл set/get/delete.
func TestRedisBackend_GetSetDelete(t *testing.T) {
	b := newTestRedis(t)
	ctx := context.Background()
	p := Policy{Enabled: true, Limit: 10, TTL: time.Minute}

	_, ok, err := b.get(ctx, CategoryOperators, "op-1")
	if err != nil {
		t.Fatalf("get ошибка: %v", err)
	}
	if ok {
		t.Fatal("ожидался промах холодного кэша")
	}

	if err := b.set(ctx, CategoryOperators, "op-1", []byte("payload"), p); err != nil {
		t.Fatalf("set ошибка: %v", err)
	}
	val, ok, err := b.get(ctx, CategoryOperators, "op-1")
	if err != nil || !ok {
		t.Fatalf("ожидалось попадание после set, ok=%v err=%v", ok, err)
	}
	if string(val) != "payload" {
		t.Errorf("значение = %q, ожидалось %q", val, "payload")
	}

	if err := b.delete(ctx, CategoryOperators, "op-1"); err != nil {
		t.Fatalf("delete ошибка: %v", err)
	}
	_, ok, _ = b.get(ctx, CategoryOperators, "op-1")
	if ok {
		t.Error("после delete ожидался промах")
	}
}

// TestRedisBackend_CapacityEviction проверяет вытеснение старейшего
// ключа при превышении лимита категории.
func TestRedisBackend_CapacityEviction(t *testing.T) {
	b := newTestRedis(t)
	ctx := context.Background()
	p := Policy{Enabled: true, Limit: 2, TTL: time.Minute}

	_ = b.set(ctx, CategoryEntities, "e-1", []byte("1"), p)
	_ = b.set(ctx, CategoryEntities, "e-2", []byte("2"), p)
	_ = b.set(ctx, CategoryEntities, "e-3", []byte("3"), p)

	_, ok, _ := b.get(ctx, CategoryEntities, "e-1")
	if ok {
		t.Error("e-1 должен быть вытеснен по вместимости")
	}
	_, ok, _ = b.get(ctx, CategoryEntities, "e-3")
	if !ok {
		t.Error("e-3 должен остаться в кэше")
	}
}

// TestRedisBackend_OverwriteKeepsSingleIndexEntry проверяет, что
// перезапись существующего ключа не раздувает список порядка вставки:
// ключ переносится в хвост, а не дублируется, и вытеснение по лимиту
// не задевает свежие записи.
func TestRedisBackend_OverwriteKeepsSingleIndexEntry(t *testing.T) {
	b := newTestRedis(t)
	ctx := context.Background()
	p := Policy{Enabled: true, Limit: 2, TTL: time.Minute}

	_ = b.set(ctx, CategoryEntities, "e-1", []byte("1"), p)
	_ = b.set(ctx, CategoryEntities, "e-2", []byte("2"), p)
	// Перезапись e-1 освежает его позицию, дубля в индексе нет
	_ = b.set(ctx, CategoryEntities, "e-1", []byte("1b"), p)

	if n, err := b.rdb.LLen(ctx, indexKey(CategoryEntities)).Result(); err != nil || n != 2 {
		t.Fatalf("длина индекса = %d (err=%v), ожидалось 2", n, err)
	}

	// Третий ключ вытесняет e-2 — старейший после освежения e-1
	_ = b.set(ctx, CategoryEntities, "e-3", []byte("3"), p)

	_, ok, _ := b.get(ctx, CategoryEntities, "e-2")
	if ok {
		t.Error("e-2 должен быть вытеснен как старейший")
	}
	val, ok, _ := b.get(ctx, CategoryEntities, "e-1")
	if !ok {
		t.Fatal("освежённый e-1 не должен быть вытеснен")
	}
	if string(val) != "1b" {
		t.Errorf("значение e-1 = %q, ожидалось %q", val, "1b")
	}
	_, ok, _ = b.get(ctx, CategoryEntities, "e-3")
	if !ok {
		t.Error("e-3 должен остаться в кэше")
	}
}
