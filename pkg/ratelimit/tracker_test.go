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

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestTracker_DefaultState(t *testing.T) {
	tracker := NewTracker(nil, "acct", 0, zerolog.Nop())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Account != "acct" {
		t.Errorf("Account = %q, want acct", state.Account)
	}
	if state.CoolingDown() {
		t.Error("new tracker should not be cooling down")
	}
}

func TestTracker_LocalCooldown(t *testing.T) {
	tracker := NewTracker(nil, "acct", 0, zerolog.Nop())
	ctx := context.Background()

	if err := tracker.ObserveRetryAfter(ctx, 60*time.Millisecond); err != nil {
		t.Fatalf("ObserveRetryAfter() error = %v", err)
	}

	state, _ := tracker.GetState(ctx)
	if !state.CoolingDown() {
		t.Fatal("expected cool-down after Retry-After")
	}

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Wait() returned after %v, want >= 40ms", elapsed)
	}
}

func TestTracker_IgnoresNonPositiveRetryAfter(t *testing.T) {
	tracker := NewTracker(nil, "acct", 0, zerolog.Nop())

	if err := tracker.ObserveRetryAfter(context.Background(), 0); err != nil {
		t.Fatalf("ObserveRetryAfter() error = %v", err)
	}
	state, _ := tracker.GetState(context.Background())
	if state.CoolingDown() {
		t.Error("zero Retry-After should not open a cool-down")
	}
}

func TestTracker_SharedCooldown(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()

	first := NewTracker(client, "acct", 0, zerolog.Nop())
	second := NewTracker(client, "acct", 0, zerolog.Nop())
	other := NewTracker(client, "other", 0, zerolog.Nop())

	if err := first.ObserveRetryAfter(ctx, 30*time.Second); err != nil {
		t.Fatalf("ObserveRetryAfter() error = %v", err)
	}

	if !mr.Exists(cooldownKey("acct")) {
		t.Fatalf("cool-down key %q not stored", cooldownKey("acct"))
	}
	if ttl := mr.TTL(cooldownKey("acct")); ttl != 30*time.Second {
		t.Errorf("cool-down TTL = %v, want 30s", ttl)
	}

	state, err := second.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.CoolingDown() {
		t.Error("second tracker should see the shared cool-down")
	}

	state, err = other.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.CoolingDown() {
		t.Error("cool-down must not leak to other accounts")
	}
}

func TestTracker_WaitHonorsContext(t *testing.T) {
	tracker := NewTracker(nil, "acct", 0, zerolog.Nop())
	_ = tracker.ObserveRetryAfter(context.Background(), time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tracker.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTracker_Throttle(t *testing.T) {
	// burst of 20, then one token every 50ms
	tracker := NewTracker(nil, "acct", 20, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 21; i++ {
		if err := tracker.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("21 requests at 20 rps took %v, want >= 30ms", elapsed)
	}
}

func TestTracker_RedisUnavailable(t *testing.T) {
	mr, client := setupMiniredis(t)
	tracker := NewTracker(client, "acct", 0, zerolog.Nop())
	mr.Close()

	if _, err := tracker.GetState(context.Background()); err == nil {
		t.Error("GetState() should fail when redis is down")
	}
	if err := tracker.Wait(context.Background()); err != nil {
		t.Errorf("Wait() should ignore an unavailable redis, got %v", err)
	}
}
