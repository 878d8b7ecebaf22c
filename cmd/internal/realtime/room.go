package realtime

import (
	"sync"

	"livedeck/cmd/internal/broadcast"
	v1 "livedeck/contracts/realtime/v1"
)

// Room is the in-memory fanout primitive for one presentation: one member set
// per audience.
//
// Join/Leave are safe under concurrent Broadcast. Broadcast never blocks and
// never panics, since Client.Send is never closed.
type Room struct {
	ID string

	mu           sync.RWMutex
	participants map[string]*Client
	presenters   map[string]*Client
}

// NewRoom constructs an empty room.
func NewRoom(id string) *Room {
	return &Room{
		ID:           id,
		participants: make(map[string]*Client),
		presenters:   make(map[string]*Client),
	}
}

func (r *Room) members(aud broadcast.Audience) map[string]*Client {
	if aud == broadcast.AudiencePresenters {
		return r.presenters
	}
	return r.participants
}

// Join adds client to the audience. Re-joining is a no-op.
func (r *Room) Join(aud broadcast.Audience, client *Client) {
	if r == nil || client == nil || client.ID == "" {
		return
	}
	r.mu.Lock()
	r.members(aud)[client.ID] = client
	r.mu.Unlock()
}

// Leave removes a connection from the audience.
func (r *Room) Leave(aud broadcast.Audience, clientID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.members(aud), clientID)
	r.mu.Unlock()
}

// LeaveAll removes a connection from both audiences.
func (r *Room) LeaveAll(clientID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.participants, clientID)
	delete(r.presenters, clientID)
	r.mu.Unlock()
}

// Has reports whether a connection is in the audience.
func (r *Room) Has(aud broadcast.Audience, clientID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members(aud)[clientID]
	return ok
}

// Empty reports whether both audiences are empty.
func (r *Room) Empty() bool {
	if r == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants) == 0 && len(r.presenters) == 0
}

// Broadcast fans env out to the audience. Members with a full queue or that
// are shutting down are skipped and counted as dropped.
func (r *Room) Broadcast(aud broadcast.Audience, env v1.Envelope) (delivered, dropped int) {
	if r == nil {
		return 0, 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members(aud) {
		if m == nil {
			continue
		}
		if m.offer(env) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}
