package join

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"livedeck/cmd/internal/abuse"
	"livedeck/cmd/internal/accesscode"
	"livedeck/cmd/internal/control"
	"livedeck/cmd/internal/mocks"
	"livedeck/cmd/internal/participant"
	"livedeck/cmd/internal/presentation"
)

var issuedAt = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type notification struct {
	presentationID string
	sessionID      string
	change         control.ParticipantChange
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notification
}

func (n *recordingNotifier) NotifyParticipantCountUpdate(_ context.Context, presentationID, sessionID string, change control.ParticipantChange) {
	n.mu.Lock()
	n.got = append(n.got, notification{presentationID, sessionID, change})
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.got...)
}

type fixture struct {
	store    *presentation.MemoryStore
	registry *participant.Registry
	guard    *abuse.Guard
	notifier *recordingNotifier
	c        *Coordinator
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    presentation.NewMemoryStore(),
		guard:    abuse.NewGuard(abuse.Config{Window: 15 * time.Minute, MaxAttempts: 5}),
		notifier: &recordingNotifier{},
		now:      issuedAt.Add(5 * time.Minute),
	}
	f.registry = participant.NewRegistry(participant.WithClock(func() time.Time { return f.now }))
	require.NoError(t, f.store.Insert(ctx, presentation.Session{
		ID: "live", Title: "Live deck", PresenterID: "owner",
		AccessCode: "123456", AccessCodeIssuedAt: issuedAt, Status: presentation.StatusActive,
	}))
	require.NoError(t, f.store.Insert(ctx, presentation.Session{
		ID: "draft", Title: "Draft deck", PresenterID: "owner",
		AccessCode: "222222", AccessCodeIssuedAt: issuedAt, Status: presentation.StatusDraft,
	}))
	require.NoError(t, f.store.Insert(ctx, presentation.Session{
		ID: "stale", Title: "Old deck", PresenterID: "owner",
		AccessCode: "333333", AccessCodeIssuedAt: issuedAt.Add(-48 * time.Hour), Status: presentation.StatusActive,
	}))

	c, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), f.store, f.registry, f.guard,
		WithCodeTTL(24*time.Hour),
		WithNotifier(f.notifier),
		WithClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	f.c = c
	return f
}

func TestExecute_Success(t *testing.T) {
	f := newFixture(t)

	res := f.c.Execute(context.Background(), Request{AccessCode: "123-456", ParticipantName: "Ada", SocketID: "sock-1", ClientIP: "10.0.0.1"})
	require.True(t, res.Success, res.Message)
	require.NotEmpty(t, res.SessionID)
	require.Equal(t, "live", res.Presentation.ID)
	require.Equal(t, "Ada", res.Participant.ParticipantName)
	require.False(t, res.Participant.IsAnonymous)
	require.Equal(t, 1, f.c.Count("live"))

	got := f.notifier.all()
	require.Len(t, got, 1)
	require.Equal(t, notification{"live", res.SessionID, control.ParticipantJoined}, got[0])
}

func TestExecute_SynthesizesAnonymousName(t *testing.T) {
	f := newFixture(t)

	res := f.c.Execute(context.Background(), Request{AccessCode: "123456", SocketID: "sock-1", ClientIP: "10.0.0.1"})
	require.True(t, res.Success)
	require.True(t, res.Participant.IsAnonymous)
	require.Regexp(t, regexp.MustCompile(`^[A-Za-z]+[A-Za-z]+\d{2}$`), res.Participant.ParticipantName)
}

func TestExecute_SameSocketTwiceCountsOnce(t *testing.T) {
	f := newFixture(t)
	req := Request{AccessCode: "123456", SocketID: "sock-1", ClientIP: "10.0.0.1"}

	first := f.c.Execute(context.Background(), req)
	second := f.c.Execute(context.Background(), req)
	require.True(t, first.Success)
	require.True(t, second.Success)
	require.True(t, second.Replaced)
	require.Equal(t, 1, f.c.Count("live"))
}

func TestExecute_Failures(t *testing.T) {
	cases := []struct {
		name    string
		code    string
		wantMsg string
		wantErr error
	}{
		{name: "draft presentation", code: "222222", wantMsg: "not active", wantErr: presentation.ErrNotActive},
		{name: "unregistered code", code: "999999", wantMsg: "invalid code", wantErr: ErrInvalidCode},
		{name: "expired code", code: "333333", wantMsg: "invalid code", wantErr: ErrInvalidCode},
		{name: "malformed code", code: "12ab", wantMsg: "invalid format", wantErr: accesscode.ErrInvalidFormat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.c.Execute(context.Background(), Request{AccessCode: tc.code, SocketID: "sock-1", ClientIP: "10.0.0.9"})
			require.False(t, res.Success)
			require.Equal(t, tc.wantMsg, res.Message)
			require.ErrorIs(t, res.Err, tc.wantErr)
			require.Nil(t, res.Presentation, "failures carry no presentation data")
			require.Empty(t, f.notifier.all())
			require.Zero(t, f.registry.Total())
		})
	}
}

func TestExecute_RateLimitedBeforeRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	guard := abuse.NewGuard(abuse.Config{Window: 15 * time.Minute, MaxAttempts: 5})

	c, err := New(nil, repo, participant.NewRegistry(), guard, WithClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)

	repo.EXPECT().
		FindByAccessCode(gomock.Any(), "999999").
		Return(presentation.Session{}, presentation.OpError{Op: "presentation.FindByAccessCode", Kind: presentation.ErrNotFound}).
		Times(5)

	req := Request{AccessCode: "999999", SocketID: "sock-1", ClientIP: "10.0.0.7"}
	for i := 0; i < 5; i++ {
		res := c.Execute(context.Background(), req)
		require.Equal(t, "invalid code", res.Message, "attempt %d", i+1)
	}

	res := c.Execute(context.Background(), req)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, abuse.ErrRateLimited)
	require.Equal(t, 15, res.RetryAfterMinutes)
}

func TestExecute_UnexpectedErrorIsAStrike(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	guard := abuse.NewGuard(abuse.Config{Window: time.Minute, MaxAttempts: 1})

	c, err := New(nil, repo, participant.NewRegistry(), guard, WithClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)

	repo.EXPECT().FindByAccessCode(gomock.Any(), "123456").Return(presentation.Session{}, errors.New("db down")).Times(1)

	req := Request{AccessCode: "123456", SocketID: "sock-1", ClientIP: "10.0.0.8"}
	res := c.Execute(context.Background(), req)
	require.Equal(t, "internal error", res.Message)

	res = c.Execute(context.Background(), req)
	require.ErrorIs(t, res.Err, abuse.ErrRateLimited)
}

type slowLookupRepo struct {
	presentation.Repository
	delay   time.Duration
	lookups atomic.Int32
}

func (r *slowLookupRepo) FindByAccessCode(ctx context.Context, code string) (presentation.Session, error) {
	r.lookups.Add(1)
	time.Sleep(r.delay)
	return r.Repository.FindByAccessCode(ctx, code)
}

func TestExecute_ConcurrentGuessesStayWithinMaxAttempts(t *testing.T) {
	repo := &slowLookupRepo{Repository: presentation.NewMemoryStore(), delay: 20 * time.Millisecond}
	guard := abuse.NewGuard(abuse.Config{Window: 15 * time.Minute, MaxAttempts: 5})

	c, err := New(nil, repo, participant.NewRegistry(), guard, WithClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		limited atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.Execute(context.Background(), Request{AccessCode: "999999", SocketID: "sock", ClientIP: "10.0.0.1"})
			if errors.Is(res.Err, abuse.ErrRateLimited) {
				limited.Add(1)
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, repo.lookups.Load(), int32(5))
	require.Equal(t, int32(50)-repo.lookups.Load(), limited.Load())
}

func TestLookupAccessCode_ExpiredCodeIsNotAStrike(t *testing.T) {
	f := newFixture(t)
	f.guard = abuse.NewGuard(abuse.Config{Window: 15 * time.Minute, MaxAttempts: 1})
	c, err := New(nil, f.store, f.registry, f.guard, WithCodeTTL(24*time.Hour), WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		info := c.LookupAccessCode(context.Background(), "333333", "10.0.0.9")
		require.Equal(t, InfoExpired, info.Status, "attempt %d", i+1)
	}
}

func TestExecute_SuccessClearsStrikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := Request{AccessCode: "123456", SocketID: "", ClientIP: "10.0.0.3"}
	good := Request{AccessCode: "123456", SocketID: "sock-1", ClientIP: "10.0.0.3"}

	for i := 0; i < 4; i++ {
		res := f.c.Execute(ctx, bad)
		require.ErrorIs(t, res.Err, ErrInvalidInput)
	}
	require.True(t, f.c.Execute(ctx, good).Success)

	for i := 0; i < 4; i++ {
		f.c.Execute(ctx, bad)
	}
	require.True(t, f.c.Execute(ctx, good).Success, "strikes were reset by the earlier success")
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.c.Execute(ctx, Request{AccessCode: "123456", SocketID: "sock-1", ClientIP: "10.0.0.1"})
	require.True(t, res.Success)

	_, ok := f.c.Leave(ctx, "other", res.SessionID)
	require.False(t, ok, "session belongs to another presentation")

	s, ok := f.c.Leave(ctx, "live", res.SessionID)
	require.True(t, ok)
	require.Equal(t, res.SessionID, s.SessionID)
	require.Zero(t, f.c.Count("live"))

	got := f.notifier.all()
	require.Equal(t, control.ParticipantLeft, got[len(got)-1].change)

	_, ok = f.c.Leave(ctx, "", res.SessionID)
	require.False(t, ok)
}

func TestLeaveSocketAndCleanupNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.c.Execute(ctx, Request{AccessCode: "123456", SocketID: "sock-1", ClientIP: "10.0.0.1"})
	f.c.Execute(ctx, Request{AccessCode: "123456", SocketID: "sock-2", ClientIP: "10.0.0.2"})

	left := f.c.LeaveSocket(ctx, "sock-1")
	require.Len(t, left, 1)
	require.Equal(t, 1, f.c.Count("live"))

	require.Empty(t, f.c.CleanupInactive(ctx, time.Minute))

	f.now = f.now.Add(2 * time.Minute)
	evicted := f.c.CleanupInactive(ctx, time.Minute)
	require.Len(t, evicted, 1)
	require.Zero(t, f.c.Count("live"))

	got := f.notifier.all()
	require.Len(t, got, 4)
	require.Equal(t, notification{"live", evicted[0].SessionID, control.ParticipantLeft}, got[3])
}

func TestLookupAccessCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info := f.c.LookupAccessCode(ctx, "123456", "10.0.0.1")
	require.Equal(t, InfoOK, info.Status)
	require.Equal(t, "live", info.Presentation.ID)
	require.NotNil(t, info.RemainingMinutes)
	require.Equal(t, 24*60-5, *info.RemainingMinutes)

	info = f.c.LookupAccessCode(ctx, "333333", "10.0.0.1")
	require.Equal(t, InfoExpired, info.Status)
	require.NotNil(t, info.Presentation, "expired lookups stay informational")
	require.Equal(t, "stale", info.Presentation.ID)
	require.Zero(t, *info.RemainingMinutes)

	info = f.c.LookupAccessCode(ctx, "999999", "10.0.0.1")
	require.Equal(t, InfoNotFound, info.Status)
	require.Nil(t, info.Presentation)
	require.ErrorIs(t, info.Err, ErrInvalidCode)
}
