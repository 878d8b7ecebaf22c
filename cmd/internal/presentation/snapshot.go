package presentation

import v1 "livedeck/contracts/realtime/v1"

// Snapshot is the participant-safe wire view of the session.
func (s *Session) Snapshot() v1.PresentationSnapshot {
	return v1.PresentationSnapshot{
		ID:                s.ID,
		Title:             s.Title,
		Description:       s.Description,
		Status:            string(s.Status),
		CurrentSlideIndex: s.CurrentSlideIndex,
	}
}

// Snapshot is the broadcast wire view of the slide.
func (sl Slide) Snapshot() v1.SlideSnapshot {
	return v1.SlideSnapshot{
		ID:      sl.ID,
		Order:   sl.Order,
		Title:   sl.Title,
		Type:    sl.Type,
		Content: sl.Content,
	}
}
