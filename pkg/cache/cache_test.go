package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client, skipping when unavailable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestStore_SetGet(t *testing.T) {
	redisClient := setupTestRedis(t)
	store := New(redisClient, time.Minute)
	ctx := context.Background()

	payload := []byte(`{"id": 42, "name": "Cat", "friends": "Dog"}`)
	if err := store.Set(ctx, 42, payload); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get() = %s, want %s", got, payload)
	}
}

func TestStore_Miss(t *testing.T) {
	redisClient := setupTestRedis(t)
	store := New(redisClient, time.Minute)

	_, err := store.Get(context.Background(), 9999)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	redisClient := setupTestRedis(t)
	store := New(redisClient, time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, 7, []byte(`{"id": 7}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, 7); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, 7); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	redisClient := setupTestRedis(t)
	store := New(redisClient, 100*time.Millisecond)
	ctx := context.Background()

	if err := store.Set(ctx, 1, []byte(`{"id": 1}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if _, err := store.Get(ctx, 1); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss after TTL expiry, got %v", err)
	}
}

func TestStore_EmptyPayloadRejected(t *testing.T) {
	redisClient := setupTestRedis(t)
	store := New(redisClient, time.Minute)

	if err := store.Set(context.Background(), 1, nil); err == nil {
		t.Error("Expected error for empty payload")
	}
}

func TestDetailKey(t *testing.T) {
	if got := detailKey(123); got != "animals:detail:123" {
		t.Errorf("detailKey(123) = %q", got)
	}
}
