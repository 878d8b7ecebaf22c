package app

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"livedeck/cmd/internal/abuse"
	"livedeck/cmd/internal/participant"
)

type fakeParticipants struct {
	calls   atomic.Int32
	maxIdle atomic.Int64
	evict   []participant.Session
}

func (f *fakeParticipants) CleanupInactive(_ context.Context, maxIdle time.Duration) []participant.Session {
	f.calls.Add(1)
	f.maxIdle.Store(int64(maxIdle))
	return f.evict
}

type releaseCall struct{ presentationID, socketID string }

type fakeReleaser struct{ calls []releaseCall }

func (f *fakeReleaser) ReleaseParticipant(presentationID, socketID string) {
	f.calls = append(f.calls, releaseCall{presentationID, socketID})
}

func discardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_SweepParticipants(t *testing.T) {
	t.Parallel()

	fp := &fakeParticipants{evict: []participant.Session{{SessionID: "a"}, {SessionID: "b"}}}
	s := NewSweeper(discardLogger(), fp, nil, abuse.NewGuard(abuse.DefaultConfig()), 30*time.Minute, time.Minute)

	if got := s.SweepParticipants(context.Background()); got != 2 {
		t.Fatalf("evicted=%d want=2", got)
	}
	if got := time.Duration(fp.maxIdle.Load()); got != 30*time.Minute {
		t.Fatalf("maxIdle=%s want=30m", got)
	}
}

func TestSweeper_SweepParticipantsReleasesSockets(t *testing.T) {
	t.Parallel()

	fp := &fakeParticipants{evict: []participant.Session{
		{SessionID: "a", PresentationID: "p1", SocketID: "sock-1"},
		{SessionID: "b", PresentationID: "p2"},
	}}
	rel := &fakeReleaser{}
	s := NewSweeper(discardLogger(), fp, rel, abuse.NewGuard(abuse.DefaultConfig()), time.Minute, time.Minute)

	s.SweepParticipants(context.Background())
	if len(rel.calls) != 1 || rel.calls[0] != (releaseCall{"p1", "sock-1"}) {
		t.Fatalf("released=%+v want only p1/sock-1", rel.calls)
	}
}

func TestSweeper_SweepGuardDropsExpiredEntries(t *testing.T) {
	t.Parallel()

	guard := abuse.NewGuard(abuse.Config{Window: time.Minute, MaxAttempts: 5, SuspiciousThreshold: 20})
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	guard.RecordFailure(abuse.Key{IP: "10.0.0.1", AccessCode: "123456"}, start)

	s := NewSweeper(discardLogger(), &fakeParticipants{}, nil, guard, 30*time.Minute, time.Minute)

	s.now = func() time.Time { return start.Add(10 * time.Second) }
	if got := s.SweepGuard(); got != 0 {
		t.Fatalf("removed=%d before window elapsed", got)
	}

	s.now = func() time.Time { return start.Add(2 * time.Minute) }
	// One requester entry plus its per-IP tracker.
	if got := s.SweepGuard(); got != 2 {
		t.Fatalf("removed=%d want=2", got)
	}
	if guard.Len() != 0 {
		t.Fatalf("guard still holds %d entries", guard.Len())
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	fp := &fakeParticipants{}
	s := NewSweeper(discardLogger(), fp, nil, abuse.NewGuard(abuse.DefaultConfig()), time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fp.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fp.calls.Load() == 0 {
		t.Fatalf("participant sweep never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
