package v1

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the closed set of broadcast payloads.
// Only the types declared in this file implement it.
type Event interface {
	EventType() string
	isEvent()
}

// PresentationStartedEvent is sent to both audiences when a presenter starts.
type PresentationStartedEvent struct {
	PresentationID    string         `json:"presentationId"`
	CurrentSlideIndex int            `json:"currentSlideIndex"`
	CurrentSlide      *SlideSnapshot `json:"currentSlide,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// PresentationStoppedEvent is sent to both audiences when a presenter stops.
type PresentationStoppedEvent struct {
	PresentationID    string    `json:"presentationId"`
	CurrentSlideIndex *int      `json:"currentSlideIndex,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// SlideChangedEvent is sent to both audiences after navigation.
type SlideChangedEvent struct {
	PresentationID string        `json:"presentationId"`
	SlideID        string        `json:"slideId"`
	SlideIndex     int           `json:"slideIndex"`
	Slide          SlideSnapshot `json:"slide"`
	Timestamp      time.Time     `json:"timestamp"`
}

// ParticipantJoinedEvent is sent to presenters only.
type ParticipantJoinedEvent struct {
	PresentationID   string    `json:"presentationId"`
	SessionID        string    `json:"sessionId"`
	ParticipantCount int       `json:"participantCount"`
	Timestamp        time.Time `json:"timestamp"`
}

// ParticipantLeftEvent is sent to presenters only.
type ParticipantLeftEvent struct {
	PresentationID   string    `json:"presentationId"`
	SessionID        string    `json:"sessionId"`
	ParticipantCount int       `json:"participantCount"`
	Timestamp        time.Time `json:"timestamp"`
}

func (PresentationStartedEvent) EventType() string { return TypePresentationStarted }
func (PresentationStoppedEvent) EventType() string { return TypePresentationStopped }
func (SlideChangedEvent) EventType() string        { return TypeSlideChanged }
func (ParticipantJoinedEvent) EventType() string   { return TypeParticipantJoined }
func (ParticipantLeftEvent) EventType() string     { return TypeParticipantLeft }

func (PresentationStartedEvent) isEvent() {}
func (PresentationStoppedEvent) isEvent() {}
func (SlideChangedEvent) isEvent()        {}
func (ParticipantJoinedEvent) isEvent()   {}
func (ParticipantLeftEvent) isEvent()     {}

// EncodeEvent wraps a broadcast event into an Envelope.
func EncodeEvent(ev Event, id string, ts time.Time) (Envelope, error) {
	if ev == nil {
		return Envelope{}, fmt.Errorf("encode event: nil event")
	}
	return NewEnvelope(ev.EventType(), id, "", ts, ev)
}

// DecodeEvent decodes a broadcast envelope back into its typed event.
func DecodeEvent(env Envelope) (Event, error) {
	var (
		ev  Event
		err error
	)

	switch env.Type {
	case TypePresentationStarted:
		var p PresentationStartedEvent
		err = json.Unmarshal(env.Payload, &p)
		ev = p
	case TypePresentationStopped:
		var p PresentationStoppedEvent
		err = json.Unmarshal(env.Payload, &p)
		ev = p
	case TypeSlideChanged:
		var p SlideChangedEvent
		err = json.Unmarshal(env.Payload, &p)
		ev = p
	case TypeParticipantJoined:
		var p ParticipantJoinedEvent
		err = json.Unmarshal(env.Payload, &p)
		ev = p
	case TypeParticipantLeft:
		var p ParticipantLeftEvent
		err = json.Unmarshal(env.Payload, &p)
		ev = p
	default:
		return nil, fmt.Errorf("not a broadcast event: %q", env.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ev, nil
}
