package app

import (
	"context"
	"time"

	"livedeck/cmd/internal/participant"
)

// ParticipantSweeper evicts idle participant sessions (typically *join.Coordinator).
type ParticipantSweeper interface {
	CleanupInactive(ctx context.Context, maxIdle time.Duration) []participant.Session
}

// ParticipantReleaser unsubscribes an evicted session's socket from its
// presentation (typically *realtime.Hub).
type ParticipantReleaser interface {
	ReleaseParticipant(presentationID, socketID string)
}

// GuardSweeper drops expired abuse-guard entries (typically *abuse.Guard).
type GuardSweeper interface {
	Sweep(now time.Time) int
	SweepInterval() time.Duration
}

// Sweeper owns the periodic maintenance tickers. Both sweeps are also
// callable directly.
type Sweeper struct {
	log          Logger
	participants ParticipantSweeper
	releaser     ParticipantReleaser
	guard        GuardSweeper

	idle         time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

// NewSweeper constructs a Sweeper. idle is the participant inactivity limit.
// releaser may be nil.
func NewSweeper(log Logger, participants ParticipantSweeper, releaser ParticipantReleaser, guard GuardSweeper, idle, cleanupEvery time.Duration) *Sweeper {
	return &Sweeper{
		log:          log,
		participants: participants,
		releaser:     releaser,
		guard:        guard,
		idle:         idle,
		cleanupEvery: cleanupEvery,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SweepParticipants runs one idle-participant pass and returns the eviction count.
func (s *Sweeper) SweepParticipants(ctx context.Context) int {
	evicted := s.participants.CleanupInactive(ctx, s.idle)
	if s.releaser != nil {
		for _, sess := range evicted {
			if sess.SocketID != "" {
				s.releaser.ReleaseParticipant(sess.PresentationID, sess.SocketID)
			}
		}
	}
	if len(evicted) > 0 {
		s.log.Info("sweep.participants", "evicted", len(evicted), "max_idle", s.idle.String())
	}
	return len(evicted)
}

// SweepGuard runs one abuse-guard pass and returns the number of dropped entries.
func (s *Sweeper) SweepGuard() int {
	n := s.guard.Sweep(s.now())
	if n > 0 {
		s.log.Debug("sweep.guard", "removed", n)
	}
	return n
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	cleanup := time.NewTicker(nonZeroDuration(s.cleanupEvery, time.Minute))
	defer cleanup.Stop()
	guard := time.NewTicker(nonZeroDuration(s.guard.SweepInterval(), time.Minute))
	defer guard.Stop()

	s.log.Info("sweep.start",
		"participant_interval", nonZeroDuration(s.cleanupEvery, time.Minute).String(),
		"guard_interval", nonZeroDuration(s.guard.SweepInterval(), time.Minute).String(),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			s.SweepParticipants(ctx)
		case <-guard.C:
			s.SweepGuard()
		}
	}
}
