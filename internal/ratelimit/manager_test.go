package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(context.Background(), "ip:1.2.3.4", 3, now)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i, res, err)
		}
	}
	res, _ := l.Allow(context.Background(), "ip:1.2.3.4", 3, now.Add(10*time.Second))
	if res.Allowed {
		t.Fatalf("expected fourth request in window to be denied")
	}
	if !res.Reset.Equal(time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reset %s", res.Reset)
	}
	res, _ = l.Allow(context.Background(), "ip:1.2.3.4", 3, now.Add(time.Minute))
	if !res.Allowed || res.Remaining != 2 {
		t.Fatalf("expected new window to allow, got %+v", res)
	}
}

func TestManager_FallsBackToMemoryWhenRedisDown(t *testing.T) {
	calls := 0
	m := NewManager(func() SettingsConfig {
		return SettingsConfig{RedisEnabled: true, RedisAddr: "127.0.0.1:1"}
	}, func() time.Time {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}, func(options *redis.Options) *redis.Client {
		calls++
		options.DialTimeout = 100 * time.Millisecond
		options.MaxRetries = -1
		return redis.NewClient(options)
	})
	t.Cleanup(func() { _ = m.Close() })

	res, err := m.Allow(context.Background(), "u:1", 1)
	if err != nil || !res.Allowed {
		t.Fatalf("expected memory fallback to allow, got %+v err=%v", res, err)
	}
	res, err = m.Allow(context.Background(), "u:1", 1)
	if err != nil || res.Allowed {
		t.Fatalf("expected memory fallback to deny second request, got %+v err=%v", res, err)
	}
	if calls != 1 {
		t.Fatalf("expected breaker to stop reconnect attempts, got %d dials", calls)
	}
}

func TestKeyForDecision(t *testing.T) {
	if got := KeyForDecision("42", Decision{Limit: 5, Scope: ScopeUser}); got != "u:42" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := KeyForDecision("1.1.1.1", Decision{Limit: 0, Scope: ScopeIP}); got != "" {
		t.Fatalf("expected empty key for unlimited decision, got %q", got)
	}
}
