// Package ratelimit throttles login attempts and password reset requests.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const pruneInterval = 5 * time.Minute

// Clock lets tests control time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds the limits. Zero values are not replaced with defaults;
// use DefaultConfig or New(nil) for those.
type Config struct {
	// ResetCooldown is the minimum gap between reset e-mails to one address.
	ResetCooldown     time.Duration
	ResetMaxPerHour   int
	ResetMaxIPPerHour int

	// LoginMaxAttempts failures lock the address for LoginLockout.
	LoginMaxAttempts  int
	LoginLockout      time.Duration
	LoginMaxIPPerHour int

	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		ResetCooldown:     60 * time.Second,
		ResetMaxPerHour:   5,
		ResetMaxIPPerHour: 20,
		LoginMaxAttempts:  5,
		LoginLockout:      15 * time.Minute,
		LoginMaxIPPerHour: 30,
	}
}

// LimitResult is the answer to a Check call. Reason is only for logs.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

func allowed() LimitResult { return LimitResult{Allowed: true} }

func blocked(reason string, retryAfter time.Duration) LimitResult {
	return LimitResult{RetryAfter: retryAfter, Reason: reason}
}

type counter struct {
	count    int
	firstAt  time.Time
	lastAt   time.Time
	lockedAt time.Time
}

// hourlyRetry returns how long until c's hour window reopens, or false when
// c is still under limit.
func (c *counter) hourlyRetry(now time.Time, limit int) (time.Duration, bool) {
	if c == nil {
		return 0, false
	}
	age := now.Sub(c.firstAt)
	if age < time.Hour && c.count >= limit {
		return time.Hour - age, true
	}
	return 0, false
}

// counters maps hashed keys to their counters.
type counters map[string]*counter

// hit counts one event for key within an hour window starting at the first
// event.
func (m counters) hit(key string, now time.Time) *counter {
	c := m[key]
	if c == nil || now.Sub(c.firstAt) >= time.Hour {
		c = &counter{firstAt: now}
		m[key] = c
	}
	c.count++
	c.lastAt = now
	return c
}

func (m counters) prune(now time.Time, maxAge time.Duration) {
	for key, c := range m {
		if now.Sub(c.lastAt) > maxAge {
			delete(m, key)
		}
	}
}

// Limiter keeps in-memory counters per address and per client IP. Keys are
// hashed so raw e-mail addresses are never held.
type Limiter struct {
	config *Config
	clock  Clock

	mu        sync.RWMutex
	resetAddr counters
	resetIP   counters
	loginAddr counters
	loginIP   counters

	pruneCtx  context.Context
	stop      context.CancelFunc
	pruneOnce sync.Once
	pruneWg   sync.WaitGroup
}

// New returns a Limiter. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:    cfg,
		clock:     clock,
		resetAddr: counters{},
		resetIP:   counters{},
		loginAddr: counters{},
		loginIP:   counters{},
		pruneCtx:  ctx,
		stop:      cancel,
	}
}

// Close stops the background pruning.
func (l *Limiter) Close() {
	l.stop()
	l.pruneWg.Wait()
}

// CheckResetRequest reports whether a reset e-mail may be sent. It does not
// count the request; call RecordResetRequest for that.
func (l *Limiter) CheckResetRequest(address, ip string) LimitResult {
	l.startPruning()
	now := l.clock.Now()
	addrKey, ipKey := resetKeys(address, ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if c := l.resetAddr[addrKey]; c != nil {
		if since := now.Sub(c.lastAt); since < l.config.ResetCooldown {
			return blocked("cooldown", l.config.ResetCooldown-since)
		}
		if wait, full := c.hourlyRetry(now, l.config.ResetMaxPerHour); full {
			return blocked("hourly_limit", wait)
		}
	}
	if wait, full := l.resetIP[ipKey].hourlyRetry(now, l.config.ResetMaxIPPerHour); full {
		return blocked("ip_hourly_limit", wait)
	}
	return allowed()
}

// RecordResetRequest counts a reset request. Unknown addresses are counted
// too so the limiter gives nothing away about which accounts exist.
func (l *Limiter) RecordResetRequest(address, ip string) {
	now := l.clock.Now()
	addrKey, ipKey := resetKeys(address, ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetAddr.hit(addrKey, now)
	l.resetIP.hit(ipKey, now)
}

// CheckLogin reports whether a login attempt may proceed. It does not count
// the attempt; call RecordLoginFailure on a wrong password.
func (l *Limiter) CheckLogin(address, ip string) LimitResult {
	l.startPruning()
	now := l.clock.Now()
	addrKey, ipKey := loginKeys(address, ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if c := l.loginAddr[addrKey]; c != nil {
		switch {
		case !c.lockedAt.IsZero():
			if since := now.Sub(c.lockedAt); since < l.config.LoginLockout {
				return blocked("lockout", l.config.LoginLockout-since)
			}
		case c.count >= l.config.LoginMaxAttempts:
			return blocked("max_attempts", l.config.LoginLockout)
		}
	}
	if wait, full := l.loginIP[ipKey].hourlyRetry(now, l.config.LoginMaxIPPerHour); full {
		return blocked("ip_hourly_limit", wait)
	}
	return allowed()
}

// RecordLoginFailure counts a failed login and reports whether this failure
// started a lockout.
func (l *Limiter) RecordLoginFailure(address, ip string) (lockedOut bool) {
	now := l.clock.Now()
	addrKey, ipKey := loginKeys(address, ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.loginAddr[addrKey]
	expired := c != nil && !c.lockedAt.IsZero() && now.Sub(c.lockedAt) >= l.config.LoginLockout
	if c == nil || expired {
		l.loginAddr[addrKey] = &counter{count: 1, firstAt: now, lastAt: now}
	} else {
		c.count++
		c.lastAt = now
		if c.count >= l.config.LoginMaxAttempts && c.lockedAt.IsZero() {
			c.lockedAt = now
			lockedOut = true
		}
	}

	l.loginIP.hit(ipKey, now)
	return lockedOut
}

// ResetLoginFailures forgets an address's failures after a good login.
func (l *Limiter) ResetLoginFailures(address string) {
	addrKey, _ := loginKeys(address, "")
	l.mu.Lock()
	delete(l.loginAddr, addrKey)
	l.mu.Unlock()
}

func resetKeys(address, ip string) (string, string) {
	return hashKey("reset:addr:", normalizeAddress(address)), hashKey("reset:ip:", ip)
}

func loginKeys(address, ip string) (string, string) {
	return hashKey("login:addr:", normalizeAddress(address)), hashKey("login:ip:", ip)
}

func hashKey(prefix, value string) string {
	sum := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(sum[:8])
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (l *Limiter) startPruning() {
	l.pruneOnce.Do(func() {
		l.pruneWg.Add(1)
		go func() {
			defer l.pruneWg.Done()
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-l.pruneCtx.Done():
					return
				case <-ticker.C:
					l.prune()
				}
			}
		}()
	})
}

func (l *Limiter) prune() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetAddr.prune(now, time.Hour)
	l.resetIP.prune(now, time.Hour)
	// Locked addresses must survive the whole lockout.
	l.loginAddr.prune(now, l.config.LoginLockout+time.Hour)
	l.loginIP.prune(now, time.Hour)
}
