package join

import (
	"errors"
	"time"

	"livedeck/cmd/internal/abuse"
	"livedeck/cmd/internal/accesscode"
	"livedeck/cmd/internal/presentation"
	v1 "livedeck/contracts/realtime/v1"
)

// Participant-facing messages.
const (
	MsgInvalidFormat  = "invalid format"
	MsgInvalidCode    = "invalid code"
	MsgNotActive      = "not active"
	MsgRateLimited    = "too many attempts"
	MsgExpired        = "access code expired"
	MsgInvalidRequest = "invalid request"
	MsgInternal       = "internal error"
)

// Request is one join attempt.
type Request struct {
	AccessCode      string
	ParticipantName string
	SocketID        string
	ClientIP        string
}

// Result is the outcome of Execute.
type Result struct {
	Success           bool
	Message           string
	RetryAfterMinutes int
	Err               error

	SessionID    string
	Presentation *v1.PresentationSnapshot
	Participant  *v1.ParticipantSnapshot
	// Replaced is true when the socket already held a session that this join superseded.
	Replaced bool
}

// Payload renders the wire form of the result.
func (r Result) Payload() v1.JoinResultPayload {
	return v1.JoinResultPayload{
		Success:           r.Success,
		Message:           r.Message,
		RetryAfterMinutes: r.RetryAfterMinutes,
		SessionID:         r.SessionID,
		Presentation:      r.Presentation,
		Participant:       r.Participant,
	}
}

// Label returns a stable metrics/log label for the outcome.
func (r Result) Label() string {
	return label(r.Success, r.Err)
}

// InfoStatus is the three-state outcome of an access-code lookup.
type InfoStatus string

const (
	InfoOK       InfoStatus = "ok"
	InfoExpired  InfoStatus = "expired"
	InfoNotFound InfoStatus = "not_found"
)

// Info answers LookupAccessCode. Presentation is set for ok and expired.
type Info struct {
	Status            InfoStatus
	Message           string
	RetryAfterMinutes int
	Err               error

	Presentation     *v1.PresentationSnapshot
	ParticipantCount int
	ExpiresAt        *time.Time
	RemainingMinutes *int
}

func label(success bool, err error) string {
	if success {
		return "success"
	}
	switch {
	case errors.Is(err, abuse.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, accesscode.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, presentation.ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_request"
	default:
		return "error"
	}
}
