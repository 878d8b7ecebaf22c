// Package abuse guards the join path against access-code guessing.
//
// Failures are tracked per requester key (client IP + access code) on a
// sliding window. A key that reaches MaxAttempts failures is blocked until
// the window elapses. Independently, an IP whose failures across all codes
// reach SuspiciousThreshold is blocked as a whole.
package abuse

import (
	"math"
	"sync"
	"time"
)

const (
	defaultWindow              = 15 * time.Minute
	defaultMaxAttempts         = 5
	defaultSuspiciousThreshold = 20
)

// Config tunes the Guard.
type Config struct {
	Window              time.Duration
	MaxAttempts         int
	SuspiciousThreshold int
}

// DefaultConfig returns the join-path defaults (15 minutes, 5 attempts).
func DefaultConfig() Config {
	return Config{
		Window:              defaultWindow,
		MaxAttempts:         defaultMaxAttempts,
		SuspiciousThreshold: defaultSuspiciousThreshold,
	}
}

// Key identifies a requester on the join path.
type Key struct {
	IP         string
	AccessCode string
}

// String renders the requester key as "ip:code".
func (k Key) String() string { return k.IP + ":" + k.AccessCode }

// Reason names why a request was rejected.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonAttempts   Reason = "attempts"
	ReasonSuspicious Reason = "suspicious"
)

// Decision is the outcome of Check, Acquire and RecordFailure.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     Reason
}

// RetryAfterMinutes returns the retry estimate in whole minutes, rounded up.
func (d Decision) RetryAfterMinutes() int {
	if d.Allowed || d.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(d.RetryAfter.Minutes()))
}

type entry struct {
	failures     []time.Time
	blockedUntil time.Time
}

func (e *entry) prune(now time.Time, window time.Duration) {
	cut := now.Add(-window)
	dst := e.failures[:0]
	for _, t := range e.failures {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	e.failures = dst
}

func (e *entry) charge(now time.Time, window time.Duration, limit int) {
	e.prune(now, window)
	e.failures = append(e.failures, now)
	if len(e.failures) >= limit && e.blockedFor(now) == 0 {
		e.blockedUntil = now.Add(window)
	}
}

func (e *entry) refund(at time.Time, window time.Duration, limit int) {
	if e == nil {
		return
	}
	for i := len(e.failures) - 1; i >= 0; i-- {
		if e.failures[i].Equal(at) {
			e.failures = append(e.failures[:i], e.failures[i+1:]...)
			break
		}
	}
	if len(e.failures) < limit && e.blockedUntil.Equal(at.Add(window)) {
		e.blockedUntil = time.Time{}
	}
}

func (e *entry) blockedFor(now time.Time) time.Duration {
	if e == nil || !now.Before(e.blockedUntil) {
		return 0
	}
	return e.blockedUntil.Sub(now)
}

// Guard is safe for concurrent use.
type Guard struct {
	cfg Config

	mu   sync.Mutex
	keys map[string]*entry
	ips  map[string]*entry
}

// NewGuard constructs a Guard; invalid config values fall back to defaults.
func NewGuard(cfg Config) *Guard {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.SuspiciousThreshold <= 0 {
		cfg.SuspiciousThreshold = defaultSuspiciousThreshold
	}
	return &Guard{
		cfg:  cfg,
		keys: make(map[string]*entry),
		ips:  make(map[string]*entry),
	}
}

// Config returns the effective configuration.
func (g *Guard) Config() Config { return g.cfg }

// SweepInterval is half the window.
func (g *Guard) SweepInterval() time.Duration { return g.cfg.Window / 2 }

// Check reports whether k may attempt a join at now. It does not record anything.
func (g *Guard) Check(k Key, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.decideLocked(k, now)
}

// RecordFailure counts a failed attempt for k and returns the resulting decision.
func (g *Guard) RecordFailure(k Key, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.chargeLocked(k, now)
	return g.decideLocked(k, now)
}

// Acquire admits an attempt for k and charges it as a failure in the same
// critical section, so concurrent attempts never exceed MaxAttempts.
// Blocked attempts are not charged. Callers undo the charge with Refund when
// the attempt turns out not to be a failure.
func (g *Guard) Acquire(k Key, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if d := g.decideLocked(k, now); !d.Allowed {
		return d
	}
	g.chargeLocked(k, now)
	return Decision{Allowed: true}
}

// Refund removes the strike Acquire charged for k at at, lifting a block
// that strike caused.
func (g *Guard) Refund(k Key, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.keys[k.String()].refund(at, g.cfg.Window, g.cfg.MaxAttempts)
	if k.IP != "" {
		g.ips[k.IP].refund(at, g.cfg.Window, g.cfg.SuspiciousThreshold)
	}
}

func (g *Guard) chargeLocked(k Key, now time.Time) {
	ke := g.keys[k.String()]
	if ke == nil {
		ke = &entry{}
		g.keys[k.String()] = ke
	}
	ke.charge(now, g.cfg.Window, g.cfg.MaxAttempts)

	if k.IP != "" {
		ie := g.ips[k.IP]
		if ie == nil {
			ie = &entry{}
			g.ips[k.IP] = ie
		}
		ie.charge(now, g.cfg.Window, g.cfg.SuspiciousThreshold)
	}
}

// Reset clears the failure history of k. The per-IP tracker is kept.
func (g *Guard) Reset(k Key) {
	g.mu.Lock()
	delete(g.keys, k.String())
	g.mu.Unlock()
}

// Sweep removes fully expired, non-blocked entries and returns how many were dropped.
func (g *Guard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for _, m := range []map[string]*entry{g.keys, g.ips} {
		for k, e := range m {
			e.prune(now, g.cfg.Window)
			if len(e.failures) == 0 && e.blockedFor(now) == 0 {
				delete(m, k)
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of tracked requester keys.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}

func (g *Guard) decideLocked(k Key, now time.Time) Decision {
	if k.IP != "" {
		if d := g.ips[k.IP].blockedFor(now); d > 0 {
			return Decision{Allowed: false, RetryAfter: d, Reason: ReasonSuspicious}
		}
	}
	if d := g.keys[k.String()].blockedFor(now); d > 0 {
		return Decision{Allowed: false, RetryAfter: d, Reason: ReasonAttempts}
	}
	return Decision{Allowed: true}
}
