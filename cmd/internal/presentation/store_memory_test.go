package presentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	p := Session{ID: "p1", Title: "Deck", PresenterID: "owner", AccessCode: "123456", Status: StatusDraft}
	require.NoError(t, st.Insert(ctx, p))
	require.Error(t, st.Insert(ctx, p))

	got, err := st.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, p, got)

	got.Status = StatusActive
	require.NoError(t, st.Save(ctx, got))

	again, err := st.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, StatusActive, again.Status)

	_, err = st.FindByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, st.Save(ctx, Session{ID: "missing", Status: StatusDraft}), ErrNotFound)
}

func TestMemoryStore_Slides(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Insert(ctx, Session{ID: "p1", Status: StatusDraft}))

	require.NoError(t, st.InsertSlide(ctx, Slide{ID: "s1", PresentationID: "p1", Order: 1}))
	require.NoError(t, st.InsertSlide(ctx, Slide{ID: "s0", PresentationID: "p1", Order: 0}))
	require.ErrorIs(t, st.InsertSlide(ctx, Slide{ID: "x", PresentationID: "nope"}), ErrNotFound)

	sl, err := st.FindSlideByOrder(ctx, "p1", 1)
	require.NoError(t, err)
	require.Equal(t, "s1", sl.ID)

	_, err = st.FindSlideByOrder(ctx, "p1", 2)
	require.ErrorIs(t, err, ErrSlideNotFound)
}

func TestMemoryStore_AccessCodeLookupAndExpiry(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	now := issued.Add(10 * time.Minute)

	st := NewMemoryStore(WithMemoryCodeTTL(time.Hour), WithMemoryClock(func() time.Time { return now }))
	require.NoError(t, st.Insert(ctx, Session{ID: "old", AccessCode: "111111", AccessCodeIssuedAt: issued.Add(-2 * time.Hour), Status: StatusInactive}))

	ok, err := st.ExistsByAccessCode(ctx, "111111")
	require.NoError(t, err)
	require.False(t, ok, "expired holder does not reserve the code")

	require.NoError(t, st.Insert(ctx, Session{ID: "new", AccessCode: "111111", AccessCodeIssuedAt: issued, Status: StatusActive}))
	ok, err = st.ExistsByAccessCode(ctx, "111111")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := st.FindByAccessCode(ctx, "111111")
	require.NoError(t, err)
	require.Equal(t, "new", got.ID)

	_, err = st.FindByAccessCode(ctx, "999999")
	require.ErrorIs(t, err, ErrNotFound)
}
