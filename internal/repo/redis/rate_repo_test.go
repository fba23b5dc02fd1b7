package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestIncrementWindowCountsAndExpires(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := NewRateRepo(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, ttl, err := repo.IncrementWindow(ctx, "ads:claim:7", 30*time.Second)
		if err != nil {
			t.Fatalf("increment #%d: %v", i, err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
		if ttl <= 0 || ttl > 30*time.Second {
			t.Fatalf("unexpected ttl %s on increment #%d", ttl, i)
		}
	}

	mr.FastForward(31 * time.Second)

	count, _, err := repo.IncrementWindow(ctx, "ads:claim:7", 30*time.Second)
	if err != nil {
		t.Fatalf("increment after window: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh window to restart at 1, got %d", count)
	}
}

func TestIncrementWindowKeysAreIndependent(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := NewRateRepo(client)
	ctx := context.Background()

	if _, _, err := repo.IncrementWindow(ctx, "ads:claim:7", 30*time.Second); err != nil {
		t.Fatalf("increment user 7: %v", err)
	}
	count, _, err := repo.IncrementWindow(ctx, "ads:claim:8", 30*time.Second)
	if err != nil {
		t.Fatalf("increment user 8: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected independent counter for second user, got %d", count)
	}
}

func TestIncrementWindowRejectsInvalidInput(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := NewRateRepo(client)
	ctx := context.Background()

	if _, _, err := repo.IncrementWindow(ctx, "", 30*time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, _, err := repo.IncrementWindow(ctx, "ads:claim:7", 0); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}
