package models

import (
	"time"

	"github.com/goccy/go-json"
)

// MessageStatus is the advisory delivery state, ordered sent < delivered < seen.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

func (s MessageStatus) Valid() bool {
	return s == StatusSent || s == StatusDelivered || s == StatusSeen
}

// Rank orders statuses; unknown values rank 0.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	}
	return 0
}

// Message is a private message when GroupID is empty and a group message
// otherwise.
type Message struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"senderId"`
	ReceiverID  string        `json:"receiverId,omitempty"`
	GroupID     string        `json:"groupId,omitempty"`
	Body        string        `json:"message,omitempty"`
	MediaURL    string        `json:"mediaUrl,omitempty"`
	MediaType   string        `json:"mediaType,omitempty"`
	VoiceURL    string        `json:"voiceUrl,omitempty"`
	VoiceGender string        `json:"voiceGender,omitempty"`
	Status      MessageStatus `json:"status"`
	Reactions   Reactions     `json:"reactions"`
	Deleted     bool          `json:"isDeleted,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// Preview is the short text used in notifications and conversation lists.
func (m *Message) Preview() string {
	switch {
	case m.VoiceURL != "" && m.Body != "":
		return "[Voice message] " + m.Body
	case m.Body != "":
		return m.Body
	case m.VoiceURL != "":
		return "[Voice]"
	default:
		return "[Media message]"
	}
}

// MessageEnvelope is what clients receive for a delivered message.
type MessageEnvelope struct {
	ID          string        `json:"id"`
	GroupID     string        `json:"groupId,omitempty"`
	SenderID    string        `json:"senderId"`
	Sender      UserInfo      `json:"sender"`
	ReceiverID  string        `json:"receiverId,omitempty"`
	Body        string        `json:"message,omitempty"`
	MediaURL    string        `json:"mediaUrl,omitempty"`
	MediaType   string        `json:"mediaType,omitempty"`
	VoiceURL    string        `json:"voiceUrl,omitempty"`
	VoiceGender string        `json:"voiceGender,omitempty"`
	Status      MessageStatus `json:"status"`
	Reactions   Reactions     `json:"reactions"`
	CreatedAt   time.Time     `json:"createdAt"`
	LocalID     string        `json:"localId,omitempty"`
}

func NewEnvelope(m *Message, sender UserInfo, localID string) MessageEnvelope {
	return MessageEnvelope{
		ID:          m.ID,
		GroupID:     m.GroupID,
		SenderID:    m.SenderID,
		Sender:      sender,
		ReceiverID:  m.ReceiverID,
		Body:        m.Body,
		MediaURL:    m.MediaURL,
		MediaType:   m.MediaType,
		VoiceURL:    m.VoiceURL,
		VoiceGender: m.VoiceGender,
		Status:      m.Status,
		Reactions:   m.Reactions,
		CreatedAt:   m.CreatedAt,
		LocalID:     localID,
	}
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	UserID          string    `json:"userId"`
	User            *UserInfo `json:"user,omitempty"`
	Online          bool      `json:"isOnline"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	MessageID       string    `json:"messageId"`
}

// Frame is the websocket wire unit in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutFrame is an outbound frame whose payload is marshalled lazily.
type OutFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}
