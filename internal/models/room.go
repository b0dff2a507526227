package models

import "time"

// Room is a night-mode chat room.
type Room struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatorID       string    `json:"creator"`
	Participants    []string  `json:"participants"`
	PendingRequests []string  `json:"pendingRequests"`
	IsNightRoom     bool      `json:"isNightRoom"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (r *Room) IsParticipant(userID string) bool {
	return contains(r.Participants, userID)
}

func (r *Room) IsPending(userID string) bool {
	return contains(r.PendingRequests, userID)
}

type RoomComment struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room"`
	AuthorID  string     `json:"author"`
	Content   string     `json:"content,omitempty"`
	MediaURL  string     `json:"mediaUrl,omitempty"`
	MediaType string     `json:"mediaType,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (c *RoomComment) HasMedia() bool {
	return c.MediaURL != ""
}

// Expired reports whether the comment's TTL has passed at now.
func (c *RoomComment) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
