package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewLimiter(client, cfg, zerolog.Nop())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Requests <= 0 {
		t.Errorf("Requests = %d, should be > 0", cfg.Requests)
	}
	if cfg.Window != time.Second {
		t.Errorf("Window = %v, want 1s", cfg.Window)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	_, l := newTestLimiter(t, Config{Requests: 0})

	for i := 0; i < 100; i++ {
		allowed, _, err := l.Acquire(context.Background())
		if err != nil || !allowed {
			t.Fatalf("Acquire() = %v, %v; disabled limiter must admit everything", allowed, err)
		}
	}
}

func TestLimiter_AcquireWithinBudget(t *testing.T) {
	_, l := newTestLimiter(t, Config{Requests: 3, Window: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() failed: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}

	allowed, wait, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if allowed {
		t.Error("fourth request should be rejected")
	}
	if wait <= 0 || wait > time.Hour {
		t.Errorf("wait = %v, want (0, 1h]", wait)
	}

	state, err := l.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() failed: %v", err)
	}
	if state.Used != 4 || state.Limit != 3 {
		t.Errorf("state = %+v, want used 4 limit 3", state)
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	_, l := newTestLimiter(t, Config{Requests: 1, Window: time.Hour})

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestLimiter_WaitAdmitsInNextWindow(t *testing.T) {
	_, l := newTestLimiter(t, Config{Requests: 1, Window: 100 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Wait() took %v, want admission in the next window", elapsed)
	}
}

func TestLimiter_RedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	l := NewLimiter(client, Config{Requests: 5, Window: time.Second}, zerolog.Nop())

	if _, _, err := l.Acquire(context.Background()); err == nil {
		t.Error("Acquire() should fail when redis is down")
	}
}
