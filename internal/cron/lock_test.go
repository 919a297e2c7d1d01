package cron

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type memoryLockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	t.Setenv("SMES_INSTANCE_ID", "worker-a")
	store := &memoryLockStore{data: map[string]string{}}
	ctx := context.Background()

	first, err := NewRedisLock(store, "smes:lock:cron:test", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "smes:lock:cron:test", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(store.data["smes:lock:cron:test"], "worker-a/") {
		t.Fatalf("expected owner to carry instance id, got %q", store.data["smes:lock:cron:test"])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second holder must not acquire")
	}

	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, ok := store.data["smes:lock:cron:test"]; !ok {
		t.Fatal("non-owner release must not delete the key")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock to be free after release")
	}
}
