package services

import (
	"context"
	"strings"
	"time"

	"nightcircle/internal/logging"
	"nightcircle/internal/metrics"
	"nightcircle/internal/models"
	"nightcircle/internal/nightmode"
	"nightcircle/internal/store"
)

const (
	RoomLifetime = 12 * time.Hour
	CommentTTL   = 10 * time.Second
)

// NightStatus is a user's night mode state at a point in time.
type NightStatus struct {
	InNightMode   bool           `json:"isInNightMode"`
	CanEnter      bool           `json:"canEnterNightMode"`
	EnteredAt     *time.Time     `json:"nightModeEnteredAt,omitempty"`
	SessionEndsAt *time.Time     `json:"sessionEndsAt,omitempty"`
	TimeInfo      nightmode.Info `json:"timeInfo"`
}

type CreateRoomInput struct {
	Name string `json:"name" validate:"max=100"`
}

type PostCommentInput struct {
	Content   string `json:"content" validate:"max=2000"`
	MediaURL  string `json:"mediaUrl" validate:"max=2048"`
	MediaType string `json:"mediaType" validate:"max=32"`
}

// RoomDetails is a room with the caller's relation to it.
type RoomDetails struct {
	models.Room
	IsCreator     bool `json:"isCreator"`
	IsParticipant bool `json:"isParticipant"`
	IsPending     bool `json:"isPending"`
}

// NightService owns night mode sessions and the ephemeral rooms that only
// exist during them.
type NightService struct {
	users store.Users
	rooms store.Rooms
	media store.MediaStore
	clock *nightmode.Clock
}

func NewNightService(users store.Users, rooms store.Rooms, media store.MediaStore, clock *nightmode.Clock) *NightService {
	return &NightService{users: users, rooms: rooms, media: media, clock: clock}
}

// Enter starts a session. Only allowed inside the entry window.
func (s *NightService) Enter(ctx context.Context, userID string) (*NightStatus, error) {
	now := s.clock.Now()
	if !nightmode.CanEnter(now) {
		return nil, ErrNightModeClosed
	}
	if err := s.users.EnterNightMode(ctx, userID, now); err != nil {
		return nil, storeErr("enter night mode", err)
	}
	return s.Status(ctx, userID)
}

// Exit ends the session and sweeps rooms that have outlived the night.
func (s *NightService) Exit(ctx context.Context, userID string) (*NightStatus, error) {
	if err := s.users.ExitNightMode(ctx, userID, s.clock.Now()); err != nil {
		return nil, storeErr("exit night mode", err)
	}
	if _, err := s.CleanupExpiredRooms(ctx); err != nil {
		logging.Warn().Err(err).Msg("room cleanup after exit failed")
	}
	return s.Status(ctx, userID)
}

// Status reports the session state, clearing a stale flag left behind by a
// session that ran out.
func (s *NightService) Status(ctx context.Context, userID string) (*NightStatus, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	now := s.clock.Now()
	valid := user.InNightMode && nightmode.SessionValid(user.NightModeEnteredAt, now)
	if user.InNightMode && !valid {
		if err := s.users.ExitNightMode(ctx, userID, now); err != nil {
			logging.Warn().Err(err).Str("user_id", userID).Msg("failed to clear stale night mode")
		}
	}

	st := &NightStatus{
		InNightMode: valid,
		CanEnter:    nightmode.CanEnter(now),
		TimeInfo:    nightmode.InfoAt(now),
	}
	if valid {
		entered := *user.NightModeEnteredAt
		end := nightmode.SessionEnd(entered.In(now.Location()))
		st.EnteredAt = &entered
		st.SessionEndsAt = &end
	}
	return st, nil
}

func (s *NightService) Time() nightmode.Info {
	return s.clock.Info()
}

// inSession reports whether the user holds a valid session right now.
func (s *NightService) inSession(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return false, storeErr("load user", err)
	}
	now := s.clock.Now()
	return user.InNightMode && nightmode.IsActive(now) && nightmode.SessionValid(user.NightModeEnteredAt, now), nil
}

// CreateRoom opens a room owned by userID; requires a valid session.
func (s *NightService) CreateRoom(ctx context.Context, userID string, in CreateRoomInput) (*models.Room, error) {
	ok, err := s.inSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNightModeClosed
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("room name is required")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	room := &models.Room{
		Name:            name,
		CreatorID:       userID,
		Participants:    []string{userID},
		PendingRequests: []string{},
		IsNightRoom:     true,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, storeErr("create room", err)
	}
	return room, nil
}

// ListRooms returns the night rooms that have not yet expired.
func (s *NightService) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms, err := s.rooms.ListNightRooms(ctx)
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	cutoff := s.clock.Now().Add(-RoomLifetime)
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.CreatedAt.After(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *NightService) Details(ctx context.Context, userID, roomID string) (*RoomDetails, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr("load room", err)
	}
	return &RoomDetails{
		Room:          *room,
		IsCreator:     room.CreatorID == userID,
		IsParticipant: room.IsParticipant(userID),
		IsPending:     room.IsPending(userID),
	}, nil
}

// JoinState is the outcome of a join request.
type JoinState string

const (
	JoinRequested JoinState = "requested"
	JoinPending   JoinState = "pending"
	JoinJoined    JoinState = "joined"
)

func (s *NightService) RequestJoin(ctx context.Context, userID, roomID string) (JoinState, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return "", storeErr("load room", err)
	}
	switch {
	case room.IsParticipant(userID):
		return JoinJoined, nil
	case room.IsPending(userID):
		return JoinPending, nil
	}
	if err := s.rooms.AddJoinRequest(ctx, roomID, userID); err != nil {
		return "", storeErr("request join", err)
	}
	return JoinRequested, nil
}

// Approve admits a requester; only the creator may.
func (s *NightService) Approve(ctx context.Context, approverID, roomID, userID string) (*models.Room, error) {
	if userID == "" {
		return nil, invalid("userId is required")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr("load room", err)
	}
	if room.CreatorID != approverID {
		return nil, ErrForbidden
	}
	if err := s.rooms.ApproveJoinRequest(ctx, roomID, userID); err != nil {
		return nil, storeErr("approve join", err)
	}
	room, err = s.rooms.GetRoom(ctx, roomID)
	return room, storeErr("load room", err)
}

// PostComment adds a comment from a participant. Text comments float away
// after CommentTTL; media comments stay until the room is swept and only the
// creator may post them.
func (s *NightService) PostComment(ctx context.Context, userID, roomID string, in PostCommentInput) (*models.RoomComment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.MediaURL == "" {
		return nil, invalid("comment content or media is required")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr("load room", err)
	}
	if !room.IsParticipant(userID) {
		return nil, ErrForbidden
	}
	if in.MediaURL != "" && room.CreatorID != userID {
		return nil, ErrForbidden
	}

	now := s.clock.Now()
	c := &models.RoomComment{
		RoomID:    roomID,
		AuthorID:  userID,
		Content:   content,
		MediaURL:  in.MediaURL,
		MediaType: in.MediaType,
		CreatedAt: now,
	}
	if in.MediaURL == "" {
		exp := now.Add(CommentTTL)
		c.ExpiresAt = &exp
	}
	if err := s.rooms.CreateComment(ctx, c); err != nil {
		return nil, storeErr("create comment", err)
	}
	return c, nil
}

// ListComments returns a room's comments that have not expired yet.
func (s *NightService) ListComments(ctx context.Context, roomID string) ([]models.RoomComment, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, storeErr("load room", err)
	}
	all, err := s.rooms.RoomComments(ctx, roomID)
	if err != nil {
		return nil, storeErr("list comments", err)
	}
	now := s.clock.Now()
	out := make([]models.RoomComment, 0, len(all))
	for i := range all {
		if !all[i].Expired(now) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// CanSendMedia reports whether userID may post media in the room.
func (s *NightService) CanSendMedia(ctx context.Context, userID, roomID string) (bool, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return false, storeErr("load room", err)
	}
	return room.CreatorID == userID, nil
}

// CleanupExpiredRooms deletes night rooms older than RoomLifetime along with
// their comments and media files. A failing file or room does not stop the
// sweep. Returns the number of rooms removed.
func (s *NightService) CleanupExpiredRooms(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-RoomLifetime)
	rooms, err := s.rooms.RoomsCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, storeErr("list expired rooms", err)
	}

	removed := 0
	for _, room := range rooms {
		if !room.IsNightRoom {
			continue
		}
		if err := s.removeRoom(ctx, room.ID); err != nil {
			metrics.RoomsSwept.WithLabelValues("failed").Inc()
			logging.Error().Err(err).Str("room_id", room.ID).Msg("failed to delete expired room")
			continue
		}
		metrics.RoomsSwept.WithLabelValues("deleted").Inc()
		removed++
	}
	if removed > 0 {
		logging.Info().Int("rooms", removed).Msg("cleaned up expired night rooms")
	}
	return removed, nil
}

func (s *NightService) removeRoom(ctx context.Context, roomID string) error {
	comments, err := s.rooms.RoomComments(ctx, roomID)
	if err != nil {
		return err
	}
	for i := range comments {
		c := &comments[i]
		if !c.HasMedia() || s.media == nil {
			continue
		}
		if err := s.media.Delete(ctx, c.MediaURL); err != nil {
			logging.Warn().Err(err).Str("comment_id", c.ID).Msg("failed to remove media file")
		}
	}
	if _, err := s.rooms.DeleteRoomComments(ctx, roomID); err != nil {
		return err
	}
	return s.rooms.DeleteRoom(ctx, roomID)
}
