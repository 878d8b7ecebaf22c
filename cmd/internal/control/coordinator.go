// Package control orchestrates presenter-issued lifecycle and navigation
// actions against the presentation repository and the broadcast port.
//
// Every operation returns a Result. Expected domain conditions become
// Success=false with a terse Message; repository failures are logged and
// reported as "internal error".
package control

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"livedeck/cmd/internal/broadcast"
	"livedeck/cmd/internal/metrics"
	"livedeck/cmd/internal/presentation"
	v1 "livedeck/contracts/realtime/v1"
)

// Action names a control operation.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
	ActionNext  Action = "next"
	ActionPrev  Action = "prev"
	ActionGoto  Action = "goto"
	ActionWatch Action = "watch"
)

// ParticipantChange labels a participant-count notification.
type ParticipantChange string

const (
	ParticipantJoined ParticipantChange = "joined"
	ParticipantLeft   ParticipantChange = "left"
)

// Coordinator is safe for concurrent use. Mutating actions on one
// presentation run one at a time from load through broadcast.
type Coordinator struct {
	log     *slog.Logger
	repo    presentation.Repository
	port    broadcast.Port
	now     func() time.Time
	metrics *metrics.Metrics
	locks   keyedMutex
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds
// or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Option configures the Coordinator.
type Option func(*Coordinator)

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
func New(log *slog.Logger, repo presentation.Repository, port broadcast.Port, opts ...Option) (*Coordinator, error) {
	if repo == nil || port == nil {
		return nil, ErrInvalidInput
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		log:  log,
		repo: repo,
		port: port,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Start activates the presentation at slide 0 and notifies both audiences.
func (c *Coordinator) Start(ctx context.Context, presentationID, presenterID string) Result {
	res := c.start(ctx, presentationID, presenterID)
	c.observe(ActionStart, presentationID, presenterID, res)
	return res
}

func (c *Coordinator) start(ctx context.Context, presentationID, presenterID string) Result {
	defer c.locks.lock(presentationID)()
	s, res, loaded := c.load(ctx, ActionStart, presentationID, presenterID)
	if !loaded {
		return res
	}
	if s.IsActive() {
		return fail(presentation.ErrAlreadyActive, MsgAlreadyActive, s)
	}

	first, err := c.repo.FindSlideByOrder(ctx, s.ID, 0)
	if err != nil {
		if errors.Is(err, presentation.ErrSlideNotFound) {
			return fail(ErrNoSlides, MsgNoSlides, s)
		}
		return c.internal(ActionStart, s, err)
	}

	now := c.now()
	next := s
	if err := next.Start(now); err != nil {
		return fail(err, MsgAlreadyActive, s)
	}
	if err := c.repo.Save(ctx, next); err != nil {
		return c.internal(ActionStart, s, err)
	}

	snap := first.Snapshot()
	broadcast.ToBoth(ctx, c.port, next.ID, v1.PresentationStartedEvent{
		PresentationID:    next.ID,
		CurrentSlideIndex: 0,
		CurrentSlide:      &snap,
		Timestamp:         now,
	})
	return ok(next, &first)
}

// Stop deactivates the presentation and notifies both audiences.
func (c *Coordinator) Stop(ctx context.Context, presentationID, presenterID string) Result {
	res := c.stop(ctx, presentationID, presenterID)
	c.observe(ActionStop, presentationID, presenterID, res)
	return res
}

func (c *Coordinator) stop(ctx context.Context, presentationID, presenterID string) Result {
	defer c.locks.lock(presentationID)()
	s, res, loaded := c.load(ctx, ActionStop, presentationID, presenterID)
	if !loaded {
		return res
	}

	now := c.now()
	next := s
	if err := next.Stop(now); err != nil {
		return fail(err, MsgNotActive, s)
	}
	if err := c.repo.Save(ctx, next); err != nil {
		return c.internal(ActionStop, s, err)
	}

	idx := next.CurrentSlideIndex
	broadcast.ToBoth(ctx, c.port, next.ID, v1.PresentationStoppedEvent{
		PresentationID:    next.ID,
		CurrentSlideIndex: &idx,
		Timestamp:         now,
	})
	return ok(next, nil)
}

// Next advances one slide. On the last slide it fails with "last slide".
func (c *Coordinator) Next(ctx context.Context, presentationID, presenterID string) Result {
	res := c.changeSlide(ctx, ActionNext, presentationID, presenterID, func(cur int) (int, error) {
		return cur + 1, nil
	})
	c.observe(ActionNext, presentationID, presenterID, res)
	return res
}

// Prev goes back one slide, clamped at 0.
func (c *Coordinator) Prev(ctx context.Context, presentationID, presenterID string) Result {
	res := c.changeSlide(ctx, ActionPrev, presentationID, presenterID, func(cur int) (int, error) {
		return max(0, cur-1), nil
	})
	c.observe(ActionPrev, presentationID, presenterID, res)
	return res
}

// Goto jumps to index.
func (c *Coordinator) Goto(ctx context.Context, presentationID, presenterID string, index int) Result {
	res := c.changeSlide(ctx, ActionGoto, presentationID, presenterID, func(int) (int, error) {
		if index < 0 {
			return 0, presentation.ErrInvalidIndex
		}
		return index, nil
	})
	c.observe(ActionGoto, presentationID, presenterID, res)
	return res
}

func (c *Coordinator) changeSlide(
	ctx context.Context,
	action Action,
	presentationID, presenterID string,
	target func(cur int) (int, error),
) Result {
	defer c.locks.lock(presentationID)()
	s, res, loaded := c.load(ctx, action, presentationID, presenterID)
	if !loaded {
		return res
	}
	if !s.IsActive() {
		return fail(ErrNotStarted, MsgNotStarted, s)
	}

	candidate, err := target(s.CurrentSlideIndex)
	if err != nil {
		return fail(err, MsgInvalidIndex, s)
	}
	if candidate == s.CurrentSlideIndex {
		return ok(s, nil)
	}

	slide, err := c.repo.FindSlideByOrder(ctx, s.ID, candidate)
	if err != nil {
		if !errors.Is(err, presentation.ErrSlideNotFound) {
			return c.internal(action, s, err)
		}
		if action == ActionNext {
			return fail(ErrLastSlide, MsgLastSlide, s)
		}
		return fail(presentation.ErrSlideNotFound, MsgSlideNotFound, s)
	}

	now := c.now()
	next := s
	if err := next.ChangeCurrentSlide(candidate, now); err != nil {
		return fail(err, MsgInvalidIndex, s)
	}
	if err := c.repo.Save(ctx, next); err != nil {
		return c.internal(action, s, err)
	}

	broadcast.ToBoth(ctx, c.port, next.ID, v1.SlideChangedEvent{
		PresentationID: next.ID,
		SlideID:        slide.ID,
		SlideIndex:     candidate,
		Slide:          slide.Snapshot(),
		Timestamp:      now,
	})
	return ok(next, &slide)
}

// Watch checks that presenterID owns the presentation. Transports call it
// before subscribing a connection to the presenter audience.
func (c *Coordinator) Watch(ctx context.Context, presentationID, presenterID string) Result {
	s, res, loaded := c.load(ctx, ActionWatch, presentationID, presenterID)
	if !loaded {
		return res
	}
	return ok(s, nil)
}

// NotifyParticipantCountUpdate sends the current participant count to
// presenters only. Participants never see join/leave churn.
func (c *Coordinator) NotifyParticipantCountUpdate(ctx context.Context, presentationID, sessionID string, change ParticipantChange) {
	if strings.TrimSpace(presentationID) == "" {
		return
	}
	count := c.port.ParticipantCount(presentationID)
	now := c.now()

	var ev v1.Event
	switch change {
	case ParticipantJoined:
		ev = v1.ParticipantJoinedEvent{PresentationID: presentationID, SessionID: sessionID, ParticipantCount: count, Timestamp: now}
	case ParticipantLeft:
		ev = v1.ParticipantLeftEvent{PresentationID: presentationID, SessionID: sessionID, ParticipantCount: count, Timestamp: now}
	default:
		c.log.Warn("control.participant_count.unknown_change", "presentation_id", presentationID, "change", string(change))
		return
	}
	c.port.BroadcastToPresenters(ctx, presentationID, ev)
}

// load fetches the session and checks ownership.
func (c *Coordinator) load(ctx context.Context, action Action, presentationID, presenterID string) (presentation.Session, Result, bool) {
	if strings.TrimSpace(presentationID) == "" {
		return presentation.Session{}, fail(presentation.ErrNotFound, MsgNotFound, presentation.Session{}), false
	}

	s, err := c.repo.FindByID(ctx, presentationID)
	if err != nil {
		if errors.Is(err, presentation.ErrNotFound) {
			return presentation.Session{}, fail(presentation.ErrNotFound, MsgNotFound, presentation.Session{}), false
		}
		return presentation.Session{}, c.internal(action, presentation.Session{ID: presentationID}, err), false
	}
	if err := s.Authorize(presenterID); err != nil {
		return presentation.Session{}, fail(err, MsgForbidden, presentation.Session{}), false
	}
	return s, Result{}, true
}

func (c *Coordinator) internal(action Action, s presentation.Session, err error) Result {
	c.log.Error("control."+string(action)+".fail",
		"presentation_id", s.ID,
		"err", err,
	)
	return fail(err, MsgInternal, s)
}

func (c *Coordinator) observe(action Action, presentationID, presenterID string, res Result) {
	c.metrics.ControlAction(string(action), res.Label())
	if res.Success {
		c.log.Info("control."+string(action),
			"presentation_id", presentationID,
			"presenter_id", presenterID,
			"slide_index", res.Session.CurrentSlideIndex,
		)
		return
	}
	if res.Message != MsgInternal {
		c.log.Debug("control."+string(action)+".rejected",
			"presentation_id", presentationID,
			"presenter_id", presenterID,
			"reason", res.Label(),
		)
	}
}
