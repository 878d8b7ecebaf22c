// Package presentation holds the presentation session entity, its state
// machine and the repository boundary the coordinators depend on.
package presentation

import (
	"encoding/json"
	"strings"
	"time"

	"livedeck/cmd/internal/accesscode"
)

// Status is the lifecycle state of a presentation.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

// Session is a presentation as seen by the realtime core.
//
// CurrentSlideIndex is only authoritative while Status is Active.
type Session struct {
	ID                 string
	Title              string
	Description        string
	PresenterID        string
	AccessCode         string
	AccessCodeIssuedAt time.Time
	Status             Status
	CurrentSlideIndex  int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Slide is a read-only slide record owned by the CRUD layer.
type Slide struct {
	ID             string
	PresentationID string
	Order          int
	Title          string
	Type           string
	Content        json.RawMessage
	CreatedAt      time.Time
}

// IsActive reports whether the session currently accepts participants and navigation.
func (s *Session) IsActive() bool { return s.Status == StatusActive }

// Authorize checks that requesterID owns the session.
func (s *Session) Authorize(requesterID string) error {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" || requesterID != s.PresenterID {
		return ErrForbidden
	}
	return nil
}

// Start moves the session to Active at slide 0.
func (s *Session) Start(now time.Time) error {
	if s.Status == StatusActive {
		return ErrAlreadyActive
	}
	s.Status = StatusActive
	s.CurrentSlideIndex = 0
	s.UpdatedAt = now
	return nil
}

// Stop moves an Active session to Inactive. The slide pointer is retained.
func (s *Session) Stop(now time.Time) error {
	if s.Status != StatusActive {
		return ErrNotActive
	}
	s.Status = StatusInactive
	s.UpdatedAt = now
	return nil
}

// ChangeCurrentSlide moves the slide pointer. Existence of the target slide is
// the caller's concern.
func (s *Session) ChangeCurrentSlide(index int, now time.Time) error {
	if s.Status != StatusActive {
		return ErrNotActive
	}
	if index < 0 {
		return ErrInvalidIndex
	}
	s.CurrentSlideIndex = index
	s.UpdatedAt = now
	return nil
}

// Code returns the session's access code bound to the given expiration window.
func (s *Session) Code(validFor time.Duration) (accesscode.Code, error) {
	return accesscode.New(s.AccessCode, s.AccessCodeIssuedAt, validFor)
}
