package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
}

func newMemoryRedis() *memoryRedis { return &memoryRedis{values: map[string]string{}} }

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryRedis()
	ctx := context.Background()
	a, err := NewRedisLock(store, "lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	b, _ := NewRedisLock(store, "lock:cron", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatalf("second holder acquired a held lock")
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, ok := store.values["lock:cron"]; !ok {
		t.Fatalf("non-owner released the lock")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestRedisLockLeavesForeignOwner(t *testing.T) {
	store := newMemoryRedis()
	ctx := context.Background()
	lock, _ := NewRedisLock(store, "lock:cron", time.Minute)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}
	// the TTL lapsed and another replica took over
	store.values["lock:cron"] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["lock:cron"] != "someone-else" {
		t.Fatalf("released a lock owned by another replica")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Second); err == nil {
		t.Fatalf("expected client error")
	}
	if _, err := NewRedisLock(newMemoryRedis(), "", time.Second); err == nil {
		t.Fatalf("expected key error")
	}
}

func TestLocalLock(t *testing.T) {
	var lock LocalLock
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatalf("second acquire should fail while held")
	}
	_ = lock.Release(ctx)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("acquire after release should succeed")
	}
}
