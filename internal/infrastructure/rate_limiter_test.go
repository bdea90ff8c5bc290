package infrastructure

import (
	"testing"
	"time"

	"intakehub/internal/entities"
)

type fakeClock struct {
	at time.Time
}

func (c *fakeClock) now() time.Time { return c.at }

func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func TestRateLimiterFixedWindow(t *testing.T) {
	clock := &fakeClock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(NewMemoryCounterStore(clock.now), map[entities.InputSource]ChannelLimit{
		entities.SourceSMS: {Limit: 3, Window: time.Minute},
	})

	for i := 1; i <= 3; i++ {
		res := rl.Allow("+15551234567", entities.SourceSMS)
		if !res.Allowed {
			t.Fatalf("request %d rejected inside the budget", i)
		}
		if res.Remaining != 3-i {
			t.Errorf("request %d remaining = %d, want %d", i, res.Remaining, 3-i)
		}
	}

	res := rl.Allow("+15551234567", entities.SourceSMS)
	if res.Allowed {
		t.Fatal("request over the budget allowed")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	wantReset := clock.at.Add(time.Minute)
	if !res.ResetAt.Equal(wantReset) {
		t.Errorf("reset = %v, want %v", res.ResetAt, wantReset)
	}
}

func TestRateLimiterWindowRollsOver(t *testing.T) {
	clock := &fakeClock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(NewMemoryCounterStore(clock.now), map[entities.InputSource]ChannelLimit{
		entities.SourceSMS: {Limit: 1, Window: time.Minute},
	})

	rl.Allow("p", entities.SourceSMS)
	if rl.Allow("p", entities.SourceSMS).Allowed {
		t.Fatal("second request in window allowed")
	}

	clock.advance(61 * time.Second)
	res := rl.Allow("p", entities.SourceSMS)
	if !res.Allowed {
		t.Fatal("request after window elapsed rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("fresh window remaining = %d, want 0 of limit 1", res.Remaining)
	}
}

func TestRateLimiterIsolatesPrincipalsAndChannels(t *testing.T) {
	clock := &fakeClock{at: time.Now()}
	rl := NewRateLimiter(NewMemoryCounterStore(clock.now), map[entities.InputSource]ChannelLimit{
		entities.SourceSMS: {Limit: 1, Window: time.Minute},
		entities.SourceAPI: {Limit: 1, Window: time.Minute},
	})

	rl.Allow("alice", entities.SourceSMS)
	if !rl.Allow("bob", entities.SourceSMS).Allowed {
		t.Error("another principal's budget was consumed")
	}
	if !rl.Allow("alice", entities.SourceAPI).Allowed {
		t.Error("another channel's budget was consumed")
	}
	if rl.Allow("alice", entities.SourceSMS).Allowed {
		t.Error("exhausted channel still allowed")
	}
}

func TestRateLimiterDefaultLimit(t *testing.T) {
	clock := &fakeClock{at: time.Now()}
	rl := NewRateLimiter(NewMemoryCounterStore(clock.now), nil)

	res := rl.Allow("p", entities.SourceVoice)
	if res.Limit != DefaultLimit.Limit {
		t.Errorf("limit = %d, want default %d", res.Limit, DefaultLimit.Limit)
	}
}

func TestRateLimiterReset(t *testing.T) {
	clock := &fakeClock{at: time.Now()}
	rl := NewRateLimiter(NewMemoryCounterStore(clock.now), map[entities.InputSource]ChannelLimit{
		entities.SourceSMS: {Limit: 1, Window: time.Minute},
	})

	rl.Allow("p", entities.SourceSMS)
	rl.Reset("p", entities.SourceSMS)
	if !rl.Allow("p", entities.SourceSMS).Allowed {
		t.Error("request after reset rejected")
	}
}
