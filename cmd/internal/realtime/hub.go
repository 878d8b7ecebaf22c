package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"livedeck/cmd/internal/broadcast"
	"livedeck/cmd/internal/metrics"
	v1 "livedeck/contracts/realtime/v1"
)

// Counter reports live participant counts (typically *participant.Registry).
type Counter interface {
	Count(presentationID string) int
}

// SocketHolder reports whether a socket still holds a participant session
// (typically *participant.Registry).
type SocketHolder interface {
	HasSocket(presentationID, socketID string) bool
}

// Hub owns the per-presentation rooms and implements broadcast.Port.
type Hub struct {
	log     *slog.Logger
	counter Counter
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	rooms map[string]*Room
}

var _ broadcast.Port = (*Hub)(nil)

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithHubMetrics attaches delivery counters.
func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithHubClock overrides the envelope timestamp clock (tests).
func WithHubClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub constructs a Hub. counter may be nil, in which case counts are zero.
func NewHub(log *slog.Logger, counter Counter, opts ...HubOption) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		log:     log,
		counter: counter,
		now:     func() time.Time { return time.Now().UTC() },
		rooms:   make(map[string]*Room),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscribe adds client to the audience of a presentation.
func (h *Hub) Subscribe(presentationID string, aud broadcast.Audience, client *Client) {
	if presentationID == "" || client == nil {
		return
	}
	h.mu.Lock()
	r, ok := h.rooms[presentationID]
	if !ok {
		r = NewRoom(presentationID)
		h.rooms[presentationID] = r
	}
	r.Join(aud, client)
	h.mu.Unlock()

	h.log.Debug("hub.subscribe", "presentation_id", presentationID, "audience", string(aud), "socket_id", client.ID)
}

// Unsubscribe removes a connection from one audience of a presentation.
func (h *Hub) Unsubscribe(presentationID string, aud broadcast.Audience, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[presentationID]
	if !ok {
		return
	}
	r.Leave(aud, clientID)
	if r.Empty() {
		delete(h.rooms, presentationID)
	}
}

// ReleaseParticipant drops socketID from the participants audience of a
// presentation once its session there is gone. A socket that rejoined keeps
// its subscription. The check runs under the hub lock, and joins register
// with the counter before they subscribe.
func (h *Hub) ReleaseParticipant(presentationID, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if holder, ok := h.counter.(SocketHolder); ok && holder.HasSocket(presentationID, socketID) {
		return
	}
	r, ok := h.rooms[presentationID]
	if !ok {
		return
	}
	r.Leave(broadcast.AudienceParticipants, socketID)
	if r.Empty() {
		delete(h.rooms, presentationID)
	}
	h.log.Debug("hub.release", "presentation_id", presentationID, "socket_id", socketID)
}

// UnsubscribeAll removes a connection from every room.
func (h *Hub) UnsubscribeAll(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, r := range h.rooms {
		r.LeaveAll(clientID)
		if r.Empty() {
			delete(h.rooms, id)
		}
	}
}

// Subscribed reports whether a connection is in the audience of a presentation.
func (h *Hub) Subscribed(presentationID string, aud broadcast.Audience, clientID string) bool {
	return h.room(presentationID).Has(aud, clientID)
}

// Rooms returns the number of presentations with at least one subscriber.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) BroadcastToParticipants(ctx context.Context, presentationID string, ev v1.Event) {
	h.broadcast(ctx, presentationID, broadcast.AudienceParticipants, ev)
}

func (h *Hub) BroadcastToPresenters(ctx context.Context, presentationID string, ev v1.Event) {
	h.broadcast(ctx, presentationID, broadcast.AudiencePresenters, ev)
}

// ParticipantCount returns the registry's live count.
func (h *Hub) ParticipantCount(presentationID string) int {
	if h.counter == nil {
		return 0
	}
	return h.counter.Count(presentationID)
}

func (h *Hub) broadcast(_ context.Context, presentationID string, aud broadcast.Audience, ev v1.Event) {
	r := h.room(presentationID)
	if r == nil {
		return
	}

	now := h.now()
	env, err := v1.EncodeEvent(ev, mustEnvelopeID(now), now)
	if err != nil {
		h.log.Error("hub.encode.fail", "presentation_id", presentationID, "err", err)
		return
	}

	delivered, dropped := r.Broadcast(aud, env)
	h.metrics.BroadcastDelivered(string(aud), delivered)
	if dropped > 0 {
		h.metrics.BroadcastDropped(string(aud), dropped)
		h.log.Warn("hub.broadcast.dropped",
			"presentation_id", presentationID,
			"audience", string(aud),
			"type", env.Type,
			"dropped", dropped,
		)
	}
}

func (h *Hub) room(presentationID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[presentationID]
}
