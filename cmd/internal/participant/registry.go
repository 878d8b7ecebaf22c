// Package participant keeps the in-memory table of live participant sessions.
//
// Sessions are bucketed per presentation. Each bucket has its own mutex, so
// joins and leaves on different presentations never contend. Within a bucket
// a socket holds at most one session: a second join from the same socket
// replaces the first.
package participant

import (
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MaxNameRunes bounds participant-provided display names.
const MaxNameRunes = 64

// Session is one joined attendee on one connection.
type Session struct {
	SessionID       string
	SocketID        string
	PresentationID  string
	ParticipantName string
	IsAnonymous     bool
	JoinedAt        time.Time
	LastActivityAt  time.Time
}

type bucket struct {
	mu        sync.Mutex
	bySocket  map[string]*Session
	bySession map[string]string // sessionID -> socketID
	dead      bool
}

// Registry is safe for concurrent use.
type Registry struct {
	now func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket

	idxMu sync.Mutex
	index map[string]string // sessionID -> presentationID
}

// Option configures the Registry.
type Option func(*Registry)

// WithClock overrides the clock (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		now:     func() time.Time { return time.Now().UTC() },
		buckets: make(map[string]*bucket),
		index:   make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Join registers a session for (presentationID, socketID). An empty name
// yields a synthesized anonymous name. replaced reports whether a prior
// session on the same socket was dropped.
func (r *Registry) Join(presentationID, socketID, name string) (s Session, replaced bool, err error) {
	presentationID = strings.TrimSpace(presentationID)
	socketID = strings.TrimSpace(socketID)
	if presentationID == "" || socketID == "" {
		return Session{}, false, ErrInvalidInput
	}

	name = strings.TrimSpace(name)
	anonymous := name == ""
	if anonymous {
		name = AnonymousName()
	} else if utf8.RuneCountInString(name) > MaxNameRunes {
		name = string([]rune(name)[:MaxNameRunes])
	}

	now := r.now()
	ns := &Session{
		SessionID:       uuid.NewString(),
		SocketID:        socketID,
		PresentationID:  presentationID,
		ParticipantName: name,
		IsAnonymous:     anonymous,
		JoinedAt:        now,
		LastActivityAt:  now,
	}

	b := r.lockBucket(presentationID, true)
	if old, ok := b.bySocket[socketID]; ok {
		delete(b.bySession, old.SessionID)
		r.unindex(old.SessionID)
		replaced = true
	}
	b.bySocket[socketID] = ns
	b.bySession[ns.SessionID] = socketID
	r.reindex(ns.SessionID, presentationID)
	b.mu.Unlock()

	return *ns, replaced, nil
}

// Leave removes the session if present and returns the removed record.
func (r *Registry) Leave(sessionID string) (Session, bool) {
	pid, ok := r.lookup(sessionID)
	if !ok {
		return Session{}, false
	}
	b := r.lockBucket(pid, false)
	if b == nil {
		return Session{}, false
	}
	defer r.unlockBucket(pid, b)

	socketID, ok := b.bySession[sessionID]
	if !ok {
		return Session{}, false
	}
	return r.removeLocked(b, socketID), true
}

// LeaveSocket removes every session bound to socketID (connection closed).
func (r *Registry) LeaveSocket(socketID string) []Session {
	if socketID == "" {
		return nil
	}
	var out []Session
	for _, pid := range r.presentationIDs() {
		b := r.lockBucket(pid, false)
		if b == nil {
			continue
		}
		if _, ok := b.bySocket[socketID]; ok {
			out = append(out, r.removeLocked(b, socketID))
		}
		r.unlockBucket(pid, b)
	}
	return out
}

// Touch refreshes lastActivityAt. It reports whether the session exists.
func (r *Registry) Touch(sessionID string) bool {
	pid, ok := r.lookup(sessionID)
	if !ok {
		return false
	}
	b := r.lockBucket(pid, false)
	if b == nil {
		return false
	}
	defer b.mu.Unlock()

	socketID, ok := b.bySession[sessionID]
	if !ok {
		return false
	}
	b.bySocket[socketID].LastActivityAt = r.now()
	return true
}

// Get returns a copy of the session.
func (r *Registry) Get(sessionID string) (Session, bool) {
	pid, ok := r.lookup(sessionID)
	if !ok {
		return Session{}, false
	}
	b := r.lockBucket(pid, false)
	if b == nil {
		return Session{}, false
	}
	defer b.mu.Unlock()

	socketID, ok := b.bySession[sessionID]
	if !ok {
		return Session{}, false
	}
	return *b.bySocket[socketID], true
}

// Count returns the number of live sessions of a presentation.
func (r *Registry) Count(presentationID string) int {
	b := r.lockBucket(presentationID, false)
	if b == nil {
		return 0
	}
	defer b.mu.Unlock()
	return len(b.bySocket)
}

// HasSocket reports whether socketID holds a session in presentationID.
func (r *Registry) HasSocket(presentationID, socketID string) bool {
	b := r.lockBucket(presentationID, false)
	if b == nil {
		return false
	}
	defer b.mu.Unlock()
	_, ok := b.bySocket[socketID]
	return ok
}

// List returns the sessions of a presentation ordered by join time.
func (r *Registry) List(presentationID string) []Session {
	b := r.lockBucket(presentationID, false)
	if b == nil {
		return []Session{}
	}
	out := lo.Map(lo.Values(b.bySocket), func(s *Session, _ int) Session { return *s })
	b.mu.Unlock()

	slices.SortFunc(out, func(a, b Session) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// Total returns the number of live sessions across all presentations.
func (r *Registry) Total() int {
	total := 0
	for _, pid := range r.presentationIDs() {
		total += r.Count(pid)
	}
	return total
}

// CleanupInactive evicts sessions idle for longer than maxIdle and returns them.
// Idleness is evaluated under the bucket lock, so a session touched while the
// scan is in progress is kept.
func (r *Registry) CleanupInactive(maxIdle time.Duration) []Session {
	if maxIdle < 0 {
		maxIdle = 0
	}
	var evicted []Session
	for _, pid := range r.presentationIDs() {
		b := r.lockBucket(pid, false)
		if b == nil {
			continue
		}
		now := r.now()
		stale := lo.Filter(lo.Keys(b.bySocket), func(socketID string, _ int) bool {
			return now.Sub(b.bySocket[socketID].LastActivityAt) > maxIdle
		})
		for _, socketID := range stale {
			evicted = append(evicted, r.removeLocked(b, socketID))
		}
		r.unlockBucket(pid, b)
	}
	return evicted
}

// lockBucket returns the bucket of presentationID locked, or nil when it does
// not exist and create is false.
func (r *Registry) lockBucket(presentationID string, create bool) *bucket {
	for {
		r.mu.RLock()
		b := r.buckets[presentationID]
		r.mu.RUnlock()

		if b == nil {
			if !create {
				return nil
			}
			r.mu.Lock()
			b = r.buckets[presentationID]
			if b == nil {
				b = &bucket{
					bySocket:  make(map[string]*Session),
					bySession: make(map[string]string),
				}
				r.buckets[presentationID] = b
			}
			r.mu.Unlock()
		}

		b.mu.Lock()
		if !b.dead {
			return b
		}
		// Retired concurrently; retry against the map.
		b.mu.Unlock()
	}
}

// unlockBucket retires empty buckets before releasing the lock.
func (r *Registry) unlockBucket(presentationID string, b *bucket) {
	if len(b.bySocket) == 0 {
		b.dead = true
		r.mu.Lock()
		if r.buckets[presentationID] == b {
			delete(r.buckets, presentationID)
		}
		r.mu.Unlock()
	}
	b.mu.Unlock()
}

func (r *Registry) removeLocked(b *bucket, socketID string) Session {
	s := b.bySocket[socketID]
	delete(b.bySocket, socketID)
	delete(b.bySession, s.SessionID)
	r.unindex(s.SessionID)
	return *s
}

func (r *Registry) presentationIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.buckets)
}

func (r *Registry) lookup(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	pid, ok := r.index[sessionID]
	return pid, ok
}

func (r *Registry) reindex(sessionID, presentationID string) {
	r.idxMu.Lock()
	r.index[sessionID] = presentationID
	r.idxMu.Unlock()
}

func (r *Registry) unindex(sessionID string) {
	r.idxMu.Lock()
	delete(r.index, sessionID)
	r.idxMu.Unlock()
}
