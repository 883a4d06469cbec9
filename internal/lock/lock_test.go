package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "req-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.Acquire(context.Background(), "req-1", time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if r2, err := l.Acquire(context.Background(), "req-2", time.Minute); err != nil {
		t.Fatalf("other keys must not be blocked: %v", err)
	} else {
		r2()
	}
	release()
	release()
	if _, err := l.Acquire(context.Background(), "req-1", time.Minute); err != nil {
		t.Fatalf("expected lock to be free after release: %v", err)
	}
}

func TestLocalLockerExpires(t *testing.T) {
	l := NewLocalLocker()
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }
	stale, _ := l.Acquire(context.Background(), "k", time.Second)
	now = now.Add(2 * time.Second)
	release, err := l.Acquire(context.Background(), "k", time.Second)
	if err != nil {
		t.Fatalf("expected expired lock to be reclaimable: %v", err)
	}
	stale()
	if _, err := l.Acquire(context.Background(), "k", time.Second); !errors.Is(err, ErrLocked) {
		t.Fatalf("stale release must not drop the new holder, got %v", err)
	}
	release()
}

func TestRedisLockerIntegration(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	l, err := NewRedisLocker(url)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer l.Close()
	l.Prefix = "reliefroute:test:" + time.Now().Format("150405.000000") + ":"

	release, err := l.Acquire(context.Background(), "req", 5*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := l.Acquire(context.Background(), "req", 5*time.Second); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	release()
	again, err := l.Acquire(context.Background(), "req", 5*time.Second)
	if err != nil {
		t.Fatalf("expected reacquire after release: %v", err)
	}
	again()
}
