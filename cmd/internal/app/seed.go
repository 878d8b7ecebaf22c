package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"livedeck/cmd/internal/accesscode"
	"livedeck/cmd/internal/auth/presenter"
	"livedeck/cmd/internal/presentation"

	"github.com/google/uuid"
)

const devSeedTokenTTL = 12 * time.Hour

// seedStore is what the demo seed writes through. Both stores implement it.
type seedStore interface {
	accesscode.Checker
	Insert(ctx context.Context, p presentation.Session) error
	InsertSlide(ctx context.Context, sl presentation.Slide) error
}

// SeedResult describes the demo presentation created at startup.
type SeedResult struct {
	PresentationID string
	PresenterID    string
	AccessCode     accesscode.Code
	// Token is empty when presenter auth is not configured.
	Token string
}

var devSeedSlides = []struct {
	title, kind string
	content     map[string]any
}{
	{"Welcome", "title", map[string]any{"heading": "Welcome to livedeck", "subheading": "Join with the code on screen"}},
	{"Agenda", "bullets", map[string]any{"items": []string{"Why realtime", "How joining works", "Questions"}}},
	{"Thanks", "title", map[string]any{"heading": "Thank you"}},
}

// seedDemo inserts a draft presentation with three slides and a fresh access code.
func seedDemo(ctx context.Context, store seedStore, cfg Config, verifier *presenter.Verifier, now time.Time) (SeedResult, error) {
	code, err := accesscode.GenerateUnique(ctx, store, now, cfg.AccessCodeTTL)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: issue code: %w", err)
	}

	res := SeedResult{
		PresentationID: uuid.NewString(),
		PresenterID:    uuid.NewString(),
		AccessCode:     code,
	}

	err = store.Insert(ctx, presentation.Session{
		ID:                 res.PresentationID,
		Title:              "livedeck demo",
		Description:        "Seeded at startup",
		PresenterID:        res.PresenterID,
		AccessCode:         code.String(),
		AccessCodeIssuedAt: now,
		Status:             presentation.StatusDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: insert presentation: %w", err)
	}

	for i, s := range devSeedSlides {
		content, err := json.Marshal(s.content)
		if err != nil {
			return SeedResult{}, err
		}
		err = store.InsertSlide(ctx, presentation.Slide{
			ID:             uuid.NewString(),
			PresentationID: res.PresentationID,
			Order:          i,
			Title:          s.title,
			Type:           s.kind,
			Content:        content,
			CreatedAt:      now,
		})
		if err != nil {
			return SeedResult{}, fmt.Errorf("seed: insert slide %d: %w", i, err)
		}
	}

	if verifier != nil {
		tok, err := verifier.Sign(res.PresenterID, devSeedTokenTTL)
		if err != nil {
			return SeedResult{}, fmt.Errorf("seed: sign token: %w", err)
		}
		res.Token = tok
	}
	return res, nil
}
