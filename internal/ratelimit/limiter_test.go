package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// step advances the clock, checks, and records when record is set.
type step struct {
	advance     time.Duration
	address     string
	ip          string
	record      bool
	wantAllowed bool
	wantReason  string
	wantRetry   time.Duration
}

func runResetSteps(t *testing.T, limiter *Limiter, clock *mockClock, steps []step) {
	t.Helper()
	for i, s := range steps {
		clock.Advance(s.advance)
		result := limiter.CheckResetRequest(s.address, s.ip)
		checkResult(t, i, result, s)
		if s.record {
			limiter.RecordResetRequest(s.address, s.ip)
		}
	}
}

func checkResult(t *testing.T, i int, result LimitResult, s step) {
	t.Helper()
	if result.Allowed != s.wantAllowed {
		t.Fatalf("step %d: allowed = %v, want %v (reason %q)", i, result.Allowed, s.wantAllowed, result.Reason)
	}
	if result.Reason != s.wantReason {
		t.Fatalf("step %d: reason = %q, want %q", i, result.Reason, s.wantReason)
	}
	if s.wantRetry != 0 && result.RetryAfter != s.wantRetry {
		t.Fatalf("step %d: retry after = %v, want %v", i, result.RetryAfter, s.wantRetry)
	}
}

func TestCheckResetRequest(t *testing.T) {
	const ip = "192.168.1.1"

	tests := []struct {
		name  string
		cfg   Config
		steps []step
	}{
		{
			name: "cooldown",
			cfg:  Config{ResetCooldown: time.Minute, ResetMaxPerHour: 5, ResetMaxIPPerHour: 20},
			steps: []step{
				{address: "ana@example.com", ip: ip, record: true, wantAllowed: true},
				{advance: 30 * time.Second, address: "ana@example.com", ip: ip, wantReason: "cooldown", wantRetry: 30 * time.Second},
				{advance: 31 * time.Second, address: "ana@example.com", ip: ip, wantAllowed: true},
			},
		},
		{
			name: "address is case insensitive",
			cfg:  Config{ResetCooldown: time.Minute, ResetMaxPerHour: 5, ResetMaxIPPerHour: 20},
			steps: []step{
				{address: "ana@example.com", ip: ip, record: true, wantAllowed: true},
				{address: "ANA@EXAMPLE.COM", ip: ip, wantReason: "cooldown"},
				{address: " Ana@Example.Com ", ip: ip, wantReason: "cooldown"},
			},
		},
		{
			name: "hourly limit per address",
			cfg:  Config{ResetCooldown: time.Millisecond, ResetMaxPerHour: 2, ResetMaxIPPerHour: 20},
			steps: []step{
				{advance: time.Second, address: "ben@example.com", ip: ip, record: true, wantAllowed: true},
				{advance: time.Second, address: "ben@example.com", ip: ip, record: true, wantAllowed: true},
				{advance: time.Second, address: "ben@example.com", ip: ip, wantReason: "hourly_limit", wantRetry: time.Hour - 2*time.Second},
				{advance: time.Hour, address: "ben@example.com", ip: ip, wantAllowed: true},
			},
		},
		{
			name: "hourly limit per ip",
			cfg:  Config{ResetCooldown: time.Millisecond, ResetMaxPerHour: 100, ResetMaxIPPerHour: 2},
			steps: []step{
				{advance: time.Second, address: "a@example.com", ip: ip, record: true, wantAllowed: true},
				{advance: time.Second, address: "b@example.com", ip: ip, record: true, wantAllowed: true},
				{advance: time.Second, address: "c@example.com", ip: ip, wantReason: "ip_hourly_limit"},
				{address: "c@example.com", ip: "192.168.1.2", wantAllowed: true},
			},
		},
		{
			name: "check alone does not count",
			cfg:  Config{ResetCooldown: time.Minute, ResetMaxPerHour: 1, ResetMaxIPPerHour: 100},
			steps: []step{
				{address: "dan@example.com", ip: ip, wantAllowed: true},
				{address: "dan@example.com", ip: ip, wantAllowed: true},
				{address: "dan@example.com", ip: ip, record: true, wantAllowed: true},
				{address: "dan@example.com", ip: ip, wantReason: "cooldown"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newMockClock()
			cfg := tt.cfg
			cfg.Clock = clock
			limiter := New(&cfg)
			defer limiter.Close()

			runResetSteps(t, limiter, clock, tt.steps)
		})
	}
}

func TestLoginLockout(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{LoginMaxAttempts: 3, LoginLockout: 5 * time.Minute, LoginMaxIPPerHour: 30, Clock: clock})
	defer limiter.Close()

	const address, ip = "login@example.com", "192.168.1.4"
	for i := 1; i <= 3; i++ {
		if result := limiter.CheckLogin(address, ip); !result.Allowed {
			t.Fatalf("attempt %d blocked: %s", i, result.Reason)
		}
		if lockedOut := limiter.RecordLoginFailure(address, ip); lockedOut != (i == 3) {
			t.Fatalf("attempt %d: lockedOut = %v", i, lockedOut)
		}
	}

	result := limiter.CheckLogin(address, ip)
	if result.Allowed || result.Reason != "lockout" || result.RetryAfter != 5*time.Minute {
		t.Fatalf("expected 5m lockout, got %+v", result)
	}
	if result := limiter.CheckLogin("LOGIN@example.com", ip); result.Allowed {
		t.Fatal("lockout should ignore address case")
	}

	clock.Advance(5*time.Minute + time.Second)
	if result := limiter.CheckLogin(address, ip); !result.Allowed {
		t.Fatalf("expected lockout to expire, got %s", result.Reason)
	}
	if limiter.RecordLoginFailure(address, ip) {
		t.Fatal("first failure after an expired lockout should start a fresh count")
	}
}

func TestResetLoginFailures(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{LoginMaxAttempts: 3, LoginLockout: 5 * time.Minute, LoginMaxIPPerHour: 30, Clock: clock})
	defer limiter.Close()

	const address, ip = "reset@example.com", "192.168.1.5"
	limiter.RecordLoginFailure(address, ip)
	limiter.RecordLoginFailure(address, ip)
	limiter.ResetLoginFailures(address)

	limiter.RecordLoginFailure(address, ip)
	limiter.RecordLoginFailure(address, ip)
	if result := limiter.CheckLogin(address, ip); !result.Allowed {
		t.Fatalf("two failures after a reset should not lock, got %s", result.Reason)
	}
	if !limiter.RecordLoginFailure(address, ip) {
		t.Fatal("third failure after a reset should lock")
	}
}

func TestLoginIPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{LoginMaxAttempts: 100, LoginLockout: 5 * time.Minute, LoginMaxIPPerHour: 2, Clock: clock})
	defer limiter.Close()

	const ip = "192.168.1.6"
	limiter.RecordLoginFailure("a@example.com", ip)
	limiter.RecordLoginFailure("b@example.com", ip)

	result := limiter.CheckLogin("c@example.com", ip)
	if result.Allowed || result.Reason != "ip_hourly_limit" {
		t.Fatalf("expected ip_hourly_limit, got %+v", result)
	}

	clock.Advance(time.Hour)
	if result := limiter.CheckLogin("c@example.com", ip); !result.Allowed {
		t.Fatalf("ip window should reopen after an hour, got %s", result.Reason)
	}
}

func TestPruneDropsStaleCounters(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{ResetCooldown: time.Minute, ResetMaxPerHour: 5, ResetMaxIPPerHour: 20,
		LoginMaxAttempts: 1, LoginLockout: 30 * time.Minute, LoginMaxIPPerHour: 30, Clock: clock})
	defer limiter.Close()

	limiter.RecordResetRequest("old@example.com", "10.0.0.1")
	limiter.RecordLoginFailure("locked@example.com", "10.0.0.1")
	limiter.RecordLoginFailure("locked@example.com", "10.0.0.1")

	clock.Advance(time.Hour + time.Minute)
	limiter.prune()

	limiter.mu.RLock()
	resets, logins := len(limiter.resetAddr), len(limiter.loginAddr)
	limiter.mu.RUnlock()
	if resets != 0 {
		t.Fatalf("expected stale reset counters pruned, have %d", resets)
	}
	if logins != 1 {
		t.Fatalf("expected locked address kept through its lockout, have %d", logins)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	want := Config{
		ResetCooldown:     60 * time.Second,
		ResetMaxPerHour:   5,
		ResetMaxIPPerHour: 20,
		LoginMaxAttempts:  5,
		LoginLockout:      15 * time.Minute,
		LoginMaxIPPerHour: 30,
	}
	if *cfg != want {
		t.Fatalf("DefaultConfig() = %+v, want %+v", *cfg, want)
	}

	limiter := New(nil)
	defer limiter.Close()
	if limiter.config.ResetCooldown != want.ResetCooldown {
		t.Fatal("New(nil) should use the default config")
	}
}

func TestLimiterCloseStopsPruning(t *testing.T) {
	limiter := New(nil)
	limiter.CheckResetRequest("test@example.com", "1.2.3.4")

	done := make(chan struct{})
	go func() {
		limiter.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close() did not return")
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ResetCooldown:     time.Millisecond,
		ResetMaxPerHour:   1000,
		ResetMaxIPPerHour: 1000,
		LoginMaxAttempts:  1000,
		LoginLockout:      5 * time.Minute,
		LoginMaxIPPerHour: 1000,
		Clock:             clock,
	})
	defer limiter.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if limiter.CheckResetRequest("user@example.com", "192.168.1.1").Allowed {
					limiter.RecordResetRequest("user@example.com", "192.168.1.1")
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if limiter.CheckLogin("login@example.com", "192.168.1.2").Allowed {
					limiter.RecordLoginFailure("login@example.com", "192.168.1.2")
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				limiter.ResetLoginFailures("login@example.com")
			}
		}()
	}
	wg.Wait()
}
