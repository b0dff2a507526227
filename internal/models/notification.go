package models

import "time"

type NotificationType string

const (
	NotifyLike     NotificationType = "like"
	NotifyComment  NotificationType = "comment"
	NotifyFollow   NotificationType = "follow"
	NotifyMessage  NotificationType = "message"
	NotifyMention  NotificationType = "mention"
	NotifyPost     NotificationType = "post"
	NotifyReaction NotificationType = "reaction"
)

type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId"`
	FromUserID string           `json:"fromUserId,omitempty"`
	FromUser   *UserInfo        `json:"fromUser,omitempty"`
	Type       NotificationType `json:"type"`
	Content    string           `json:"content,omitempty"`
	PostID     string           `json:"postId,omitempty"`
	CommentID  string           `json:"commentId,omitempty"`
	MessageID  string           `json:"messageId,omitempty"`
	Read       bool             `json:"isRead"`
	ReadAt     *time.Time       `json:"readAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// NotificationRefs are optional links to the entity that caused a notification.
type NotificationRefs struct {
	PostID    string
	CommentID string
	MessageID string
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	Unread        int            `json:"unread"`
}
