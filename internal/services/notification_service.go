package services

import (
	"context"
	"time"

	"nightcircle/internal/logging"
	"nightcircle/internal/metrics"
	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/store"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

var notificationTypes = map[models.NotificationType]struct{}{
	models.NotifyLike: {}, models.NotifyComment: {}, models.NotifyFollow: {}, models.NotifyMessage: {},
	models.NotifyMention: {}, models.NotifyPost: {}, models.NotifyReaction: {},
}

// NotifyInput describes a notification to create.
type NotifyInput struct {
	UserID     string `validate:"required"`
	FromUserID string
	Type       models.NotificationType `validate:"required"`
	Content    string
	Refs       models.NotificationRefs
}

// Notifier is the fire-and-forget side of NotificationService.
type Notifier interface {
	Dispatch(ctx context.Context, in NotifyInput)
}

type NotificationService struct {
	notifications store.Notifications
	users         store.Users
	emitter       realtime.Emitter
	now           func() time.Time
}

var _ Notifier = (*NotificationService)(nil)

func NewNotificationService(notifications store.Notifications, users store.Users, emitter realtime.Emitter) *NotificationService {
	return &NotificationService{notifications: notifications, users: users, emitter: emitter, now: time.Now}
}

type notificationPayload struct {
	ID        string                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Content   string                  `json:"content"`
	FromUser  *models.UserInfo        `json:"fromUser,omitempty"`
	PostID    string                  `json:"postId,omitempty"`
	CommentID string                  `json:"commentId,omitempty"`
	MessageID string                  `json:"messageId,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	IsRead    bool                    `json:"isRead"`
}

// Notify persists a notification and pushes it to the target's channel.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if _, ok := notificationTypes[in.Type]; !ok {
		return nil, invalid("unknown notification type %q", in.Type)
	}

	n := &models.Notification{
		UserID:     in.UserID,
		FromUserID: in.FromUserID,
		Type:       in.Type,
		Content:    in.Content,
		PostID:     in.Refs.PostID,
		CommentID:  in.Refs.CommentID,
		MessageID:  in.Refs.MessageID,
		CreatedAt:  s.now(),
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return nil, storeErr("create notification", err)
	}

	if in.FromUserID != "" {
		if from, err := s.users.GetUser(ctx, in.FromUserID); err == nil {
			info := from.Info()
			n.FromUser = &info
		}
	}

	s.emitter.Emit(realtime.UserChannel(n.UserID), realtime.EventNotificationNew, notificationPayload{
		ID:        n.ID,
		Type:      n.Type,
		Content:   n.Content,
		FromUser:  n.FromUser,
		PostID:    n.PostID,
		CommentID: n.CommentID,
		MessageID: n.MessageID,
		CreatedAt: n.CreatedAt,
		IsRead:    false,
	})
	return n, nil
}

// Dispatch is Notify for callers that must not fail because of it.
func (s *NotificationService) Dispatch(ctx context.Context, in NotifyInput) {
	if _, err := s.Notify(ctx, in); err != nil {
		metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).
			Str("user_id", in.UserID).
			Str("type", string(in.Type)).
			Msg("notification dropped")
		return
	}
	metrics.NotificationsDispatched.WithLabelValues("ok").Inc()
}

func (s *NotificationService) List(ctx context.Context, userID string, limit, skip int) (models.NotificationPage, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	if skip < 0 {
		skip = 0
	}
	page, err := s.notifications.ListNotifications(ctx, userID, limit, skip)
	if err != nil {
		return page, storeErr("list notifications", err)
	}
	return page, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.notifications.MarkNotificationRead(ctx, userID, id, s.now())
	if err != nil {
		return nil, storeErr("mark read", err)
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.notifications.MarkAllNotificationsRead(ctx, userID, s.now())
	return n, storeErr("mark all read", err)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	return storeErr("delete notification", s.notifications.DeleteNotification(ctx, userID, id))
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID string) (int, error) {
	n, err := s.notifications.DeleteAllNotifications(ctx, userID)
	return n, storeErr("delete notifications", err)
}
