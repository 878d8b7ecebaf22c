package presentation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Repository for development and tests.
// Values are copied in and out; callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	slides   map[string][]Slide // presentationID -> slides ordered by Order

	codeTTL time.Duration
	now     func() time.Time
}

// MemoryOption configures MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryCodeTTL sets the access-code expiration window used by ExistsByAccessCode.
func WithMemoryCodeTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.codeTTL = d
		}
	}
}

// WithMemoryClock overrides the clock (tests).
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]Session),
		slides:   make(map[string][]Slide),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Insert adds a new presentation.
func (s *MemoryStore) Insert(_ context.Context, p Session) error {
	if strings.TrimSpace(p.ID) == "" || !p.Status.Valid() {
		return OpError{Op: "presentation.Insert", Kind: ErrInvalidInput}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.ID]; ok {
		return OpError{Op: "presentation.Insert", Kind: ErrInvalidInput, Msg: "duplicate id"}
	}
	s.sessions[p.ID] = p
	return nil
}

// InsertSlide adds a slide to an existing presentation.
func (s *MemoryStore) InsertSlide(_ context.Context, sl Slide) error {
	if strings.TrimSpace(sl.ID) == "" || sl.Order < 0 {
		return OpError{Op: "presentation.InsertSlide", Kind: ErrInvalidInput}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sl.PresentationID]; !ok {
		return OpError{Op: "presentation.InsertSlide", Kind: ErrNotFound}
	}
	list := append(s.slides[sl.PresentationID], sl)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Order < list[j].Order })
	s.slides[sl.PresentationID] = list
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sessions[id]
	if !ok {
		return Session{}, OpError{Op: "presentation.FindByID", Kind: ErrNotFound}
	}
	return p, nil
}

// FindByAccessCode returns the most recently issued session holding code.
func (s *MemoryStore) FindByAccessCode(ctx context.Context, code string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  Session
		found bool
	)
	for _, p := range s.sessions {
		if p.AccessCode != code {
			continue
		}
		if !found || p.AccessCodeIssuedAt.After(best.AccessCodeIssuedAt) {
			best, found = p, true
		}
	}
	if !found {
		return Session{}, OpError{Op: "presentation.FindByAccessCode", Kind: ErrNotFound}
	}
	return best, nil
}

func (s *MemoryStore) ExistsByAccessCode(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.sessions {
		if p.AccessCode != code {
			continue
		}
		if s.codeTTL <= 0 || now.Before(p.AccessCodeIssuedAt.Add(s.codeTTL)) {
			return true, nil
		}
	}
	return false, nil
}

// Save replaces the mutable fields of an existing presentation.
func (s *MemoryStore) Save(ctx context.Context, p Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.Status.Valid() || p.CurrentSlideIndex < 0 {
		return OpError{Op: "presentation.Save", Kind: ErrInvalidInput}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.ID]; !ok {
		return OpError{Op: "presentation.Save", Kind: ErrNotFound}
	}
	s.sessions[p.ID] = p
	return nil
}

func (s *MemoryStore) FindSlideByOrder(ctx context.Context, presentationID string, order int) (Slide, error) {
	if err := ctx.Err(); err != nil {
		return Slide{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sl := range s.slides[presentationID] {
		if sl.Order == order {
			return sl, nil
		}
	}
	return Slide{}, OpError{Op: "presentation.FindSlideByOrder", Kind: ErrSlideNotFound}
}
