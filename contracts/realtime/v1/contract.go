// Package v1 defines the livedeck Realtime Protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a connection handshake (client -> server).
	// Presenters attach their bearer token here.
	TypeHello = "hello"
	// TypeHelloAck acknowledges the handshake (server -> client).
	TypeHelloAck = "hello:ack"

	// TypeJoinPresentation joins a live presentation with an access code (participant -> server).
	TypeJoinPresentation = "join:presentation"
	// TypeJoinResult answers a join request (server -> participant).
	TypeJoinResult = "join:result"
	// TypeLeavePresentation leaves a presentation (participant -> server).
	TypeLeavePresentation = "leave:presentation"
	// TypeLeaveResult answers a leave request (server -> participant).
	TypeLeaveResult = "leave:result"
	// TypeHeartbeat refreshes participant liveness (participant -> server).
	TypeHeartbeat = "heartbeat"

	// TypePresenterWatch subscribes a presenter connection to the presenter audience.
	TypePresenterWatch = "presenter:watch"

	// Control requests (presenter -> server).
	TypeControlStart     = "control:start"
	TypeControlStop      = "control:stop"
	TypeControlNextSlide = "control:next-slide"
	TypeControlPrevSlide = "control:prev-slide"
	TypeControlGotoSlide = "control:goto-slide"
	// TypeControlResult answers any control request (server -> presenter).
	TypeControlResult = "control:result"

	// Broadcast events (server -> audiences).
	TypePresentationStarted = "presentation:started"
	TypePresentationStopped = "presentation:stopped"
	TypeSlideChanged        = "slide:changed"
	TypeParticipantJoined   = "participant:joined"
	TypeParticipantLeft     = "participant:left"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
//
// Requests carry a client-chosen ID; every direct response echoes it in CorrID
// so clients can correlate replies without socket callbacks.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	CorrID  string          `json:"corr_id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeJoinPresentation,
		TypeJoinResult,
		TypeLeavePresentation,
		TypeLeaveResult,
		TypeHeartbeat,
		TypePresenterWatch,
		TypeControlStart,
		TypeControlStop,
		TypeControlNextSlide,
		TypeControlPrevSlide,
		TypeControlGotoSlide,
		TypeControlResult,
		TypePresentationStarted,
		TypePresentationStopped,
		TypeSlideChanged,
		TypeParticipantJoined,
		TypeParticipantLeft,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// IsControl reports whether typ is one of the presenter control requests.
func IsControl(typ string) bool {
	switch typ {
	case TypeControlStart, TypeControlStop, TypeControlNextSlide, TypeControlPrevSlide, TypeControlGotoSlide:
		return true
	default:
		return false
	}
}

// NewEnvelope marshals payload and wraps it into an Envelope.
func NewEnvelope(typ, id, corrID string, ts time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Envelope{
		V:       Version,
		Type:    typ,
		ID:      id,
		CorrID:  corrID,
		TS:      ts,
		Payload: raw,
	}, nil
}

// ---- Request / response payloads ----

// HelloPayload is sent by the client to initiate a connection.
// Token is optional; participants connect anonymously.
type HelloPayload struct {
	Token string `json:"token,omitempty"`
}

// HelloAckPayload carries the server-assigned connection id (the socket id).
type HelloAckPayload struct {
	ConnectionID string `json:"connectionId"`
	PresenterID  string `json:"presenterId,omitempty"`
}

// JoinPresentationPayload requests joining a live presentation.
// The socket id is the connection id assigned by the server.
type JoinPresentationPayload struct {
	AccessCode      string `json:"accessCode" validate:"required,max=16"`
	ParticipantName string `json:"participantName,omitempty" validate:"max=64"`
}

// PresentationSnapshot is the participant-safe view of a presentation.
type PresentationSnapshot struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status"`
	CurrentSlideIndex int    `json:"currentSlideIndex"`
}

// ParticipantSnapshot describes the joined participant session.
type ParticipantSnapshot struct {
	SessionID       string    `json:"sessionId"`
	PresentationID  string    `json:"presentationId"`
	ParticipantName string    `json:"participantName"`
	IsAnonymous     bool      `json:"isAnonymous"`
	JoinedAt        time.Time `json:"joinedAt"`
}

// SlideSnapshot is the broadcast view of a slide.
type SlideSnapshot struct {
	ID      string          `json:"id"`
	Order   int             `json:"order"`
	Title   string          `json:"title,omitempty"`
	Type    string          `json:"type,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// JoinResultPayload answers a join request.
type JoinResultPayload struct {
	Success           bool                  `json:"success"`
	Message           string                `json:"message,omitempty"`
	RetryAfterMinutes int                   `json:"retryAfterMinutes,omitempty"`
	SessionID         string                `json:"sessionId,omitempty"`
	Presentation      *PresentationSnapshot `json:"presentation,omitempty"`
	Participant       *ParticipantSnapshot  `json:"participant,omitempty"`
}

// LeavePresentationPayload requests leaving a presentation.
type LeavePresentationPayload struct {
	PresentationID string `json:"presentationId" validate:"required"`
	SessionID      string `json:"sessionId" validate:"required"`
}

// LeaveResultPayload answers a leave request.
type LeaveResultPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HeartbeatPayload refreshes the liveness of a participant session.
type HeartbeatPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// PresenterWatchPayload subscribes to presenter-only events of a presentation.
type PresenterWatchPayload struct {
	PresentationID string `json:"presentationId" validate:"required"`
}

// ControlPayload is the body of start/stop/next/prev requests.
type ControlPayload struct {
	PresentationID string `json:"presentationId" validate:"required"`
}

// ControlGotoSlidePayload is the body of a goto request.
type ControlGotoSlidePayload struct {
	PresentationID string `json:"presentationId" validate:"required"`
	SlideIndex     *int   `json:"slideIndex" validate:"required"`
}

// ControlResultPayload answers a control request.
type ControlResultPayload struct {
	Action            string `json:"action"`
	PresentationID    string `json:"presentationId"`
	Success           bool   `json:"success"`
	Message           string `json:"message,omitempty"`
	CurrentSlideIndex *int   `json:"currentSlideIndex,omitempty"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
