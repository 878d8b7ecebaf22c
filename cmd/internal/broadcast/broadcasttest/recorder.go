// Package broadcasttest provides an in-memory broadcast.Port for tests.
package broadcasttest

import (
	"context"
	"sync"

	"livedeck/cmd/internal/broadcast"
	v1 "livedeck/contracts/realtime/v1"
)

// Delivery is one recorded broadcast.
type Delivery struct {
	Audience       broadcast.Audience
	PresentationID string
	Event          v1.Event
}

// Recorder records deliveries. CountFunc, when set, answers ParticipantCount.
type Recorder struct {
	CountFunc func(presentationID string) int

	mu         sync.Mutex
	deliveries []Delivery
}

var _ broadcast.Port = (*Recorder)(nil)

func (r *Recorder) BroadcastToParticipants(_ context.Context, presentationID string, ev v1.Event) {
	r.record(broadcast.AudienceParticipants, presentationID, ev)
}

func (r *Recorder) BroadcastToPresenters(_ context.Context, presentationID string, ev v1.Event) {
	r.record(broadcast.AudiencePresenters, presentationID, ev)
}

func (r *Recorder) ParticipantCount(presentationID string) int {
	if r.CountFunc == nil {
		return 0
	}
	return r.CountFunc(presentationID)
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// To returns the deliveries addressed to one audience.
func (r *Recorder) To(a broadcast.Audience) []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries() {
		if d.Audience == a {
			out = append(out, d)
		}
	}
	return out
}

// Reset forgets recorded deliveries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.deliveries = nil
	r.mu.Unlock()
}

func (r *Recorder) record(a broadcast.Audience, presentationID string, ev v1.Event) {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, Delivery{Audience: a, PresentationID: presentationID, Event: ev})
	r.mu.Unlock()
}
