package models

import "time"

// Status is a 24h story post.
type Status struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	SongURL   string    `json:"songUrl,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	Views     *int      `json:"views,omitempty"`
	Viewers   []string  `json:"viewers,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ForViewer strips view accounting unless viewerID owns the status.
func (s Status) ForViewer(viewerID string) Status {
	if s.UserID == viewerID {
		if s.Views == nil {
			zero := 0
			s.Views = &zero
		}
		return s
	}
	s.Views = nil
	s.Viewers = nil
	return s
}

func (s *Status) HasViewer(userID string) bool {
	for _, v := range s.Viewers {
		if v == userID {
			return true
		}
	}
	return false
}
