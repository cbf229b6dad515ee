package jar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil redis client")
		}
	}()
	NewStore(nil)
}

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewStore(client)

	key := Key{Host: "www.ratebeer.com", Name: CookieSessionID}
	entry := &Entry{Name: CookieSessionID, Value: "abc", Path: "/", Expires: time.Now().Add(time.Hour)}

	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if ttl := mr.TTL(key.String()); ttl <= 0 || ttl > time.Hour {
		t.Errorf("redis TTL = %v, want (0, 1h]", ttl)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Value != "abc" {
		t.Errorf("Value = %q, want abc", got.Value)
	}
}

func TestStore_GetMissing(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)

	_, err := store.Get(context.Background(), Key{Host: "h", Name: CookieUserID})
	if !errors.Is(err, ErrNotStored) {
		t.Errorf("Get() = %v, want ErrNotStored", err)
	}
}

func TestStore_GetInvalid(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client)

	key := Key{Host: "h", Name: CookieUserID}
	mr.Set(key.String(), "{not json")

	_, err := store.Get(context.Background(), key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() = %v, want ErrInvalidEntry", err)
	}
}

func TestStore_SetExpiredDeletes(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewStore(client)

	key := Key{Host: "h", Name: CookieUserID}
	mr.Set(key.String(), "stale")

	expired := &Entry{Name: CookieUserID, Value: "", Expires: time.Now().Add(-time.Second)}
	if err := store.Set(ctx, key, expired); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if mr.Exists(key.String()) {
		t.Error("expired cookie should remove the key")
	}
}

func TestStore_SetNil(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)

	if err := store.Set(context.Background(), Key{Host: "h", Name: "x"}, nil); err == nil {
		t.Error("Set(nil) should fail")
	}
}
