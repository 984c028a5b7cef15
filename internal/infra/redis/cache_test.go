package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/metrics"
)

func TestCacheSetGetDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewCache(newClient(mr), metrics.New(prometheus.NewRegistry()), zerolog.Nop())

	if _, ok := cache.Get(ctx, "k"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if !cache.Set(ctx, "k", []byte("v"), time.Minute) {
		t.Fatalf("expected set to succeed")
	}
	got, ok := cache.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected v, got %q (ok=%v)", got, ok)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Fatalf("expected key to expire")
	}

	cache.Set(ctx, "k2", []byte("v2"), 0)
	if ttl := mr.TTL("k2"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}
	if !cache.Delete(ctx, "k2") {
		t.Fatalf("expected delete to succeed")
	}
	if mr.Exists("k2") {
		t.Fatalf("expected key removed")
	}
}

func TestCacheSwallowsFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	ctx := context.Background()
	cache := NewCache(client, nil, zerolog.Nop())
	if cache.Set(ctx, "k", []byte("v"), time.Minute) {
		t.Fatalf("expected set to report failure")
	}
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Fatalf("expected miss when redis is down")
	}
	if cache.Delete(ctx, "k") {
		t.Fatalf("expected delete to report failure")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
