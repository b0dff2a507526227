// Package store holds the persistence contracts and their Postgres,
// in-memory and Redis implementations.
package store

import (
	"context"
	"errors"
	"time"

	"nightcircle/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SetOnline(ctx context.Context, id string, online bool) error
	UpdateLocation(ctx context.Context, id string, p models.Point) error
	SetVisible(ctx context.Context, id string, visible bool) error
	// UsersWithin returns users whose last location is within radius meters
	// of p, nearest first.
	UsersWithin(ctx context.Context, p models.Point, radius float64) ([]models.NearbyUser, error)
	// EnterNightMode marks the user in night mode since at.
	EnterNightMode(ctx context.Context, id string, at time.Time) error
	// ExitNightMode clears the session and records the exit time.
	ExitNightMode(ctx context.Context, id string, at time.Time) error
}

type Groups interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	GetGroupByName(ctx context.Context, name string) (*models.Group, error)
	// AddMembers is idempotent.
	AddMembers(ctx context.Context, groupID string, userIDs []string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	GroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	// GroupsNear returns groups anchored within radius meters of p.
	GroupsNear(ctx context.Context, p models.Point, radius float64) ([]models.Group, error)
}

type Messages interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status models.MessageStatus) error
	UpdateReactions(ctx context.Context, id string, r models.Reactions) error
	SoftDeleteMessage(ctx context.Context, id string) error
	// PrivateHistory returns the latest limit messages between a and b,
	// oldest first. Deleted messages are excluded.
	PrivateHistory(ctx context.Context, a, b string, limit int) ([]models.Message, error)
	GroupHistory(ctx context.Context, groupID string, limit int) ([]models.Message, error)
	// LatestPerPeer returns the newest private message exchanged with each
	// peer of userID, newest first.
	LatestPerPeer(ctx context.Context, userID string, limit int) ([]models.Message, error)
}

type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit, skip int) (models.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	DeleteAllNotifications(ctx context.Context, userID string) (int, error)
}

type Statuses interface {
	CreateStatus(ctx context.Context, s *models.Status) error
	// GetStatus returns ErrNotFound for expired statuses.
	GetStatus(ctx context.Context, id string, now time.Time) (*models.Status, error)
	// AddStatusViewer appends viewer once and bumps the view count.
	// Returns false when the viewer was already recorded.
	AddStatusViewer(ctx context.Context, id, viewer string) (bool, error)
	DeleteStatus(ctx context.Context, id string) error
	StatusesByUsers(ctx context.Context, userIDs []string, now time.Time) ([]models.Status, error)
	DeleteExpiredStatuses(ctx context.Context, now time.Time) (int, error)
}

type Rooms interface {
	CreateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	ListNightRooms(ctx context.Context) ([]models.Room, error)
	AddJoinRequest(ctx context.Context, roomID, userID string) error
	// ApproveJoinRequest moves userID from pending to participants.
	ApproveJoinRequest(ctx context.Context, roomID, userID string) error
	RoomsCreatedBefore(ctx context.Context, t time.Time) ([]models.Room, error)
	DeleteRoom(ctx context.Context, id string) error

	CreateComment(ctx context.Context, c *models.RoomComment) error
	// RoomComments returns every comment of a room, expired ones included.
	RoomComments(ctx context.Context, roomID string) ([]models.RoomComment, error)
	DeleteRoomComments(ctx context.Context, roomID string) (int, error)
	DeleteExpiredComments(ctx context.Context, now time.Time) (int, error)
}

// Store is the single backing store.
type Store interface {
	Users
	Groups
	Messages
	Notifications
	Statuses
	Rooms
	Ping(ctx context.Context) error
	Close()
}

// PresenceCache mirrors who is online for out-of-process readers.
type PresenceCache interface {
	SetOnline(ctx context.Context, userID string, connections int) error
	SetOffline(ctx context.Context, userID string) error
	OnlineUsers(ctx context.Context) ([]string, error)
}

// MediaStore removes uploaded files referenced by URL.
type MediaStore interface {
	Delete(ctx context.Context, url string) error
}

// NopPresence is used when no cache is configured.
type NopPresence struct{}

func (NopPresence) SetOnline(context.Context, string, int) error  { return nil }
func (NopPresence) SetOffline(context.Context, string) error      { return nil }
func (NopPresence) OnlineUsers(context.Context) ([]string, error) { return nil, nil }
