package abuse

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func TestGuard_BlocksAfterMaxAttempts(t *testing.T) {
	g := NewGuard(Config{Window: 15 * time.Minute, MaxAttempts: 5})
	k := Key{IP: "10.0.0.1", AccessCode: "123456"}

	for i := 0; i < 4; i++ {
		require.True(t, g.Check(k, t0).Allowed)
		d := g.RecordFailure(k, t0.Add(time.Duration(i)*time.Second))
		require.True(t, d.Allowed, "attempt %d", i+1)
	}

	d := g.RecordFailure(k, t0.Add(4*time.Second))
	require.False(t, d.Allowed)
	require.Equal(t, ReasonAttempts, d.Reason)

	d = g.Check(k, t0.Add(5*time.Second))
	require.False(t, d.Allowed)
	require.Equal(t, 15, d.RetryAfterMinutes())

	// A different code from the same IP is unaffected.
	require.True(t, g.Check(Key{IP: "10.0.0.1", AccessCode: "654321"}, t0).Allowed)
}

func TestGuard_BlockLiftsAfterWindow(t *testing.T) {
	g := NewGuard(Config{Window: time.Minute, MaxAttempts: 2})
	k := Key{IP: "10.0.0.2", AccessCode: "111111"}

	g.RecordFailure(k, t0)
	require.False(t, g.RecordFailure(k, t0).Allowed)

	require.False(t, g.Check(k, t0.Add(59*time.Second)).Allowed)
	require.True(t, g.Check(k, t0.Add(time.Minute)).Allowed)
}

func TestGuard_SlidingWindowForgetsOldFailures(t *testing.T) {
	g := NewGuard(Config{Window: time.Minute, MaxAttempts: 3})
	k := Key{IP: "10.0.0.3", AccessCode: "222222"}

	g.RecordFailure(k, t0)
	g.RecordFailure(k, t0.Add(10*time.Second))
	// The first failure has slid out of the window.
	d := g.RecordFailure(k, t0.Add(61*time.Second))
	require.True(t, d.Allowed)
}

func TestGuard_ResetClearsKey(t *testing.T) {
	g := NewGuard(Config{Window: time.Minute, MaxAttempts: 2})
	k := Key{IP: "10.0.0.4", AccessCode: "333333"}

	g.RecordFailure(k, t0)
	g.Reset(k)
	require.True(t, g.RecordFailure(k, t0).Allowed)
}

func TestGuard_SuspiciousIPBlockedAcrossCodes(t *testing.T) {
	g := NewGuard(Config{Window: 15 * time.Minute, MaxAttempts: 5, SuspiciousThreshold: 4})

	for i := 0; i < 4; i++ {
		g.RecordFailure(Key{IP: "10.9.9.9", AccessCode: fmt.Sprintf("%06d", i)}, t0)
	}

	d := g.Check(Key{IP: "10.9.9.9", AccessCode: "999999"}, t0.Add(time.Second))
	require.False(t, d.Allowed)
	require.Equal(t, ReasonSuspicious, d.Reason)

	require.True(t, g.Check(Key{IP: "10.1.1.1", AccessCode: "999999"}, t0).Allowed)
}

func TestGuard_SweepDropsExpiredEntries(t *testing.T) {
	g := NewGuard(Config{Window: time.Minute, MaxAttempts: 5})

	g.RecordFailure(Key{IP: "a", AccessCode: "000001"}, t0)
	g.RecordFailure(Key{IP: "b", AccessCode: "000002"}, t0.Add(50*time.Second))
	require.Equal(t, 2, g.Len())

	g.Sweep(t0.Add(70 * time.Second))
	require.Equal(t, 1, g.Len())

	g.Sweep(t0.Add(5 * time.Minute))
	require.Zero(t, g.Len())
}

func TestGuard_SweepKeepsBlockedEntries(t *testing.T) {
	g := NewGuard(Config{Window: time.Minute, MaxAttempts: 1})
	k := Key{IP: "c", AccessCode: "000003"}

	g.RecordFailure(k, t0)
	g.Sweep(t0.Add(30 * time.Second))
	require.Equal(t, 1, g.Len())
	require.False(t, g.Check(k, t0.Add(30*time.Second)).Allowed)
}

func TestNewGuard_Defaults(t *testing.T) {
	g := NewGuard(Config{})
	require.Equal(t, DefaultConfig(), g.Config())
	require.Equal(t, 7*time.Minute+30*time.Second, g.SweepInterval())
}

func TestGuard_ConcurrentFailures(t *testing.T) {
	g := NewGuard(Config{Window: time.Hour, MaxAttempts: 1000, SuspiciousThreshold: 1000})
	k := Key{IP: "10.0.0.5", AccessCode: "444444"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				g.RecordFailure(k, t0)
			}
		}()
	}
	wg.Wait()

	require.False(t, g.Check(k, t0).Allowed)
}

func TestGuard_AcquireAdmitsAtMostMaxAttempts(t *testing.T) {
	g := NewGuard(Config{Window: 15 * time.Minute, MaxAttempts: 5})
	k := Key{IP: "10.0.0.6", AccessCode: "999999"}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Acquire(k, t0).Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, admitted)
	require.False(t, g.Check(k, t0).Allowed)
}

func TestGuard_RefundLiftsBlockItCaused(t *testing.T) {
	g := NewGuard(Config{Window: time.Minute, MaxAttempts: 2})
	k := Key{IP: "10.0.0.7", AccessCode: "555555"}

	require.True(t, g.Acquire(k, t0).Allowed)
	at := t0.Add(time.Second)
	require.True(t, g.Acquire(k, at).Allowed)
	require.False(t, g.Check(k, at).Allowed)

	g.Refund(k, at)
	require.True(t, g.Check(k, at).Allowed)

	// The earlier strike is still counted.
	g.RecordFailure(k, at.Add(time.Second))
	require.False(t, g.Check(k, at.Add(2*time.Second)).Allowed)
}

func TestGuard_BlockedAcquireIsNotCharged(t *testing.T) {
	g := NewGuard(Config{Window: time.Minute, MaxAttempts: 1, SuspiciousThreshold: 3})
	k := Key{IP: "10.0.0.8", AccessCode: "666666"}

	require.True(t, g.Acquire(k, t0).Allowed)
	for i := 0; i < 10; i++ {
		require.False(t, g.Acquire(k, t0).Allowed)
	}

	// Only the admitted attempt counts toward the IP threshold.
	require.True(t, g.Check(Key{IP: "10.0.0.8", AccessCode: "777777"}, t0).Allowed)
}
