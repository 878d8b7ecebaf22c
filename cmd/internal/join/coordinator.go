// Package join orchestrates participant join / leave against access-code
// validation, the abuse guard, the presentation repository and the
// participant registry.
package join

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"livedeck/cmd/internal/abuse"
	"livedeck/cmd/internal/accesscode"
	"livedeck/cmd/internal/control"
	"livedeck/cmd/internal/metrics"
	"livedeck/cmd/internal/participant"
	"livedeck/cmd/internal/presentation"
	v1 "livedeck/contracts/realtime/v1"
)

// Notifier receives participant-count changes (typically *control.Coordinator).
type Notifier interface {
	NotifyParticipantCountUpdate(ctx context.Context, presentationID, sessionID string, change control.ParticipantChange)
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	log      *slog.Logger
	repo     presentation.Repository
	registry *participant.Registry
	guard    *abuse.Guard
	notifier Notifier

	codeTTL time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithCodeTTL sets the access-code expiration window (0 = never expires).
func WithCodeTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.codeTTL = d
		}
	}
}

// WithNotifier sets the participant-count notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithClock overrides the clock (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics attaches metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New constructs a Coordinator.
func New(log *slog.Logger, repo presentation.Repository, registry *participant.Registry, guard *abuse.Guard, opts ...Option) (*Coordinator, error) {
	if repo == nil || registry == nil || guard == nil {
		return nil, ErrInvalidInput
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		log:      log,
		repo:     repo,
		registry: registry,
		guard:    guard,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Execute runs one join attempt. The guard charges a strike against
// (client IP, access code) before the repository is touched; success refunds
// it and clears the key.
func (c *Coordinator) Execute(ctx context.Context, req Request) Result {
	now := c.now()
	key := abuse.Key{IP: req.ClientIP, AccessCode: accesscode.Normalize(req.AccessCode)}

	if d := c.guard.Acquire(key, now); !d.Allowed {
		c.metrics.AbuseRejected(string(d.Reason))
		c.metrics.Join(label(false, abuse.ErrRateLimited))
		c.log.Warn("join.rate_limited",
			"client_ip", req.ClientIP,
			"reason", string(d.Reason),
			"retry_after_minutes", d.RetryAfterMinutes(),
		)
		return Result{
			Message:           MsgRateLimited,
			RetryAfterMinutes: d.RetryAfterMinutes(),
			Err:               abuse.ErrRateLimited,
		}
	}

	res := c.execute(ctx, req, now)
	c.metrics.Join(res.Label())

	if !res.Success {
		c.log.Info("join.fail",
			"client_ip", req.ClientIP,
			"socket_id", req.SocketID,
			"reason", res.Label(),
		)
		return res
	}

	c.guard.Refund(key, now)
	c.guard.Reset(key)
	c.log.Info("join.success",
		"presentation_id", res.Presentation.ID,
		"session_id", res.SessionID,
		"socket_id", req.SocketID,
		"replaced", res.Replaced,
	)
	if c.notifier != nil {
		c.notifier.NotifyParticipantCountUpdate(ctx, res.Presentation.ID, res.SessionID, control.ParticipantJoined)
	}
	return res
}

func (c *Coordinator) execute(ctx context.Context, req Request, now time.Time) Result {
	code, err := accesscode.Parse(req.AccessCode)
	if err != nil {
		return Result{Message: MsgInvalidFormat, Err: err}
	}

	s, res, found := c.findLive(ctx, code.String(), now)
	if !found {
		return res
	}
	if !s.IsActive() {
		return Result{Message: MsgNotActive, Err: presentation.ErrNotActive}
	}

	ps, replaced, err := c.registry.Join(s.ID, req.SocketID, req.ParticipantName)
	if err != nil {
		if errors.Is(err, participant.ErrInvalidInput) {
			return Result{Message: MsgInvalidRequest, Err: ErrInvalidInput}
		}
		return c.internal("join.registry.fail", s.ID, err)
	}

	snap := s.Snapshot()
	return Result{
		Success:      true,
		SessionID:    ps.SessionID,
		Presentation: &snap,
		Participant:  participantSnapshot(ps),
		Replaced:     replaced,
	}
}

// findLive resolves a non-expired session for code.
func (c *Coordinator) findLive(ctx context.Context, code string, now time.Time) (presentation.Session, Result, bool) {
	s, err := c.repo.FindByAccessCode(ctx, code)
	if err != nil {
		if errors.Is(err, presentation.ErrNotFound) {
			return presentation.Session{}, Result{Message: MsgInvalidCode, Err: ErrInvalidCode}, false
		}
		return presentation.Session{}, c.internal("join.lookup.fail", "", err), false
	}
	if c.expired(s, now) {
		return presentation.Session{}, Result{Message: MsgInvalidCode, Err: ErrInvalidCode}, false
	}
	return s, Result{}, true
}

func (c *Coordinator) expired(s presentation.Session, now time.Time) bool {
	if c.codeTTL <= 0 {
		return false
	}
	code, err := s.Code(c.codeTTL)
	if err != nil {
		return true
	}
	return code.IsExpired(now)
}

// Leave removes a participant session. When presentationID is set, the
// session must belong to it.
func (c *Coordinator) Leave(ctx context.Context, presentationID, sessionID string) (participant.Session, bool) {
	if presentationID = strings.TrimSpace(presentationID); presentationID != "" {
		if s, ok := c.registry.Get(sessionID); !ok || s.PresentationID != presentationID {
			return participant.Session{}, false
		}
	}
	s, ok := c.registry.Leave(sessionID)
	if !ok {
		return participant.Session{}, false
	}
	c.departed(ctx, "leave", s)
	return s, true
}

// LeaveSocket drops every session of a closed connection.
func (c *Coordinator) LeaveSocket(ctx context.Context, socketID string) []participant.Session {
	left := c.registry.LeaveSocket(socketID)
	for _, s := range left {
		c.departed(ctx, "disconnect", s)
	}
	return left
}

// CleanupInactive evicts idle sessions and notifies presenters of each departure.
func (c *Coordinator) CleanupInactive(ctx context.Context, maxIdle time.Duration) []participant.Session {
	evicted := c.registry.CleanupInactive(maxIdle)
	for _, s := range evicted {
		c.departed(ctx, "idle", s)
	}
	c.metrics.ParticipantsEvicted(len(evicted))
	return evicted
}

// Touch refreshes a participant's liveness.
func (c *Coordinator) Touch(sessionID string) bool { return c.registry.Touch(sessionID) }

// Count returns the live participant count of a presentation.
func (c *Coordinator) Count(presentationID string) int { return c.registry.Count(presentationID) }

// List returns the live participants of a presentation.
func (c *Coordinator) List(presentationID string) []participant.Session {
	return c.registry.List(presentationID)
}

// LookupAccessCode reports what a code currently points at. Expired codes
// still return presentation data with InfoExpired.
func (c *Coordinator) LookupAccessCode(ctx context.Context, raw, clientIP string) Info {
	now := c.now()
	key := abuse.Key{IP: clientIP, AccessCode: accesscode.Normalize(raw)}

	if d := c.guard.Acquire(key, now); !d.Allowed {
		c.metrics.AbuseRejected(string(d.Reason))
		return Info{Status: InfoNotFound, Message: MsgRateLimited, RetryAfterMinutes: d.RetryAfterMinutes(), Err: abuse.ErrRateLimited}
	}

	code, err := accesscode.Parse(raw)
	if err != nil {
		return Info{Status: InfoNotFound, Message: MsgInvalidFormat, Err: err}
	}

	s, err := c.repo.FindByAccessCode(ctx, code.String())
	if err != nil {
		if errors.Is(err, presentation.ErrNotFound) {
			return Info{Status: InfoNotFound, Message: MsgInvalidCode, Err: ErrInvalidCode}
		}
		c.log.Error("join.lookup.fail", "err", err)
		return Info{Status: InfoNotFound, Message: MsgInternal, Err: err}
	}

	snap := s.Snapshot()
	info := Info{
		Status:           InfoOK,
		Presentation:     &snap,
		ParticipantCount: c.registry.Count(s.ID),
	}
	if c.codeTTL > 0 {
		if bound, err := s.Code(c.codeTTL); err == nil {
			if exp, ok := bound.ExpiresAt(); ok {
				info.ExpiresAt = &exp
			}
			if left, ok := bound.RemainingValidityMinutes(now); ok {
				info.RemainingMinutes = &left
			}
			if bound.IsExpired(now) {
				info.Status = InfoExpired
				info.Message = MsgExpired
			}
		}
	}
	// Expired codes are real codes: refund without clearing earlier strikes.
	c.guard.Refund(key, now)
	if info.Status == InfoOK {
		c.guard.Reset(key)
	}
	return info
}

func (c *Coordinator) departed(ctx context.Context, reason string, s participant.Session) {
	c.metrics.Leave(reason)
	c.log.Info("join.leave",
		"presentation_id", s.PresentationID,
		"session_id", s.SessionID,
		"reason", reason,
	)
	if c.notifier != nil {
		c.notifier.NotifyParticipantCountUpdate(ctx, s.PresentationID, s.SessionID, control.ParticipantLeft)
	}
}

func (c *Coordinator) internal(event, presentationID string, err error) Result {
	c.log.Error(event, "presentation_id", presentationID, "err", err)
	return Result{Message: MsgInternal, Err: err}
}

func participantSnapshot(s participant.Session) *v1.ParticipantSnapshot {
	return &v1.ParticipantSnapshot{
		SessionID:       s.SessionID,
		PresentationID:  s.PresentationID,
		ParticipantName: s.ParticipantName,
		IsAnonymous:     s.IsAnonymous,
		JoinedAt:        s.JoinedAt,
	}
}
