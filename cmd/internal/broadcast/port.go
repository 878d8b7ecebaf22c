// Package broadcast defines the delivery boundary between the coordinators
// and the realtime transport.
package broadcast

import (
	"context"

	v1 "livedeck/contracts/realtime/v1"
)

// Audience is one of the two recipient groups of a presentation.
type Audience string

const (
	AudienceParticipants Audience = "participants"
	AudiencePresenters   Audience = "presenters"
)

// Port delivers events to a presentation's audiences.
//
// Delivery is best-effort and at most once: implementations attempt once,
// log failures and never block the caller on slow receivers.
type Port interface {
	BroadcastToParticipants(ctx context.Context, presentationID string, ev v1.Event)
	BroadcastToPresenters(ctx context.Context, presentationID string, ev v1.Event)
	ParticipantCount(presentationID string) int
}

// ToBoth delivers ev to participants and presenters.
func ToBoth(ctx context.Context, p Port, presentationID string, ev v1.Event) {
	p.BroadcastToParticipants(ctx, presentationID, ev)
	p.BroadcastToPresenters(ctx, presentationID, ev)
}

// Nop discards every event and reports zero participants.
type Nop struct{}

func (Nop) BroadcastToParticipants(context.Context, string, v1.Event) {}
func (Nop) BroadcastToPresenters(context.Context, string, v1.Event)   {}
func (Nop) ParticipantCount(string) int                               { return 0 }
