package services

import (
	"context"
	"time"

	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/store"
	"nightcircle/internal/utils"
)

const (
	StatusTTL       = 24 * time.Hour
	nearbyStatusMax = 50
)

type CreateStatusInput struct {
	Content  string `json:"content" validate:"max=1000"`
	MediaURL string `json:"mediaUrl" validate:"max=2048"`
	SongURL  string `json:"songUrl" validate:"max=2048"`
}

// StatusService manages 24h statuses and their owner-only view counts.
type StatusService struct {
	statuses store.Statuses
	users    store.Users
	emitter  realtime.Emitter
	now      func() time.Time
}

func NewStatusService(statuses store.Statuses, users store.Users, emitter realtime.Emitter) *StatusService {
	return &StatusService{statuses: statuses, users: users, emitter: emitter, now: time.Now}
}

type statusEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	SongURL   string    `json:"songUrl,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type statusRef struct {
	ID string `json:"id"`
	By string `json:"by,omitempty"`
}

// Create posts a status and announces it to users within NearbyRadius of
// the owner's last location.
func (s *StatusService) Create(ctx context.Context, userID string, in CreateStatusInput) (*models.Status, error) {
	if in.Content == "" && in.MediaURL == "" && in.SongURL == "" {
		return nil, invalid("nothing to post")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	st := &models.Status{
		UserID:    userID,
		Content:   in.Content,
		MediaURL:  in.MediaURL,
		SongURL:   in.SongURL,
		ExpiresAt: now.Add(StatusTTL),
		CreatedAt: now,
	}
	if err := s.statuses.CreateStatus(ctx, st); err != nil {
		return nil, storeErr("create status", err)
	}

	s.announce(ctx, st)
	out := st.ForViewer(userID)
	return &out, nil
}

func (s *StatusService) announce(ctx context.Context, st *models.Status) {
	owner, err := s.users.GetUser(ctx, st.UserID)
	if err != nil {
		utils.LogError(err, "StatusService.announce GetUser")
		return
	}
	if owner.Location == nil {
		return
	}
	nearby, err := s.users.UsersWithin(ctx, *owner.Location, NearbyRadius)
	if err != nil {
		utils.LogError(err, "StatusService.announce UsersWithin")
		return
	}
	ev := statusEvent{
		ID:        st.ID,
		UserID:    st.UserID,
		Content:   st.Content,
		MediaURL:  st.MediaURL,
		SongURL:   st.SongURL,
		ExpiresAt: st.ExpiresAt,
		CreatedAt: st.CreatedAt,
	}
	for _, u := range nearby {
		s.emitter.Emit(realtime.UserChannel(u.ID), realtime.EventStatusNew, ev)
	}
}

// RecordView counts viewer once per status. Owners viewing their own
// status are ignored. Returns whether a new view was recorded.
func (s *StatusService) RecordView(ctx context.Context, statusID, viewerID string) (bool, error) {
	st, err := s.statuses.GetStatus(ctx, statusID, s.now())
	if err != nil {
		return false, storeErr("load status", err)
	}
	if st.UserID == viewerID || st.HasViewer(viewerID) {
		return false, nil
	}
	added, err := s.statuses.AddStatusViewer(ctx, statusID, viewerID)
	if err != nil {
		return false, storeErr("record view", err)
	}
	if added {
		s.emitter.Emit(realtime.UserChannel(st.UserID), realtime.EventStatusView, statusRef{ID: statusID, By: viewerID})
	}
	return added, nil
}

// Delete removes a status; only the owner may.
func (s *StatusService) Delete(ctx context.Context, userID, statusID string) error {
	st, err := s.statuses.GetStatus(ctx, statusID, s.now())
	if err != nil {
		return storeErr("load status", err)
	}
	if st.UserID != userID {
		return ErrForbidden
	}
	if err := s.statuses.DeleteStatus(ctx, statusID); err != nil {
		return storeErr("delete status", err)
	}
	s.emitter.EmitAll(realtime.EventStatusDeleted, statusRef{ID: statusID})
	return nil
}

// Get returns a live status as seen by viewerID.
func (s *StatusService) Get(ctx context.Context, viewerID, statusID string) (*models.Status, error) {
	st, err := s.statuses.GetStatus(ctx, statusID, s.now())
	if err != nil {
		return nil, storeErr("load status", err)
	}
	out := st.ForViewer(viewerID)
	return &out, nil
}

// ListNearby returns live statuses of users around p plus the viewer's own.
func (s *StatusService) ListNearby(ctx context.Context, viewerID string, p models.Point) ([]models.Status, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	nearby, err := s.users.UsersWithin(ctx, p, NearbyRadius)
	if err != nil {
		return nil, storeErr("nearby users", err)
	}
	ids := make([]string, 0, len(nearby)+1)
	ids = append(ids, viewerID)
	for _, u := range nearby {
		if u.ID != viewerID {
			ids = append(ids, u.ID)
		}
	}

	statuses, err := s.statuses.StatusesByUsers(ctx, ids, s.now())
	if err != nil {
		return nil, storeErr("list statuses", err)
	}
	if len(statuses) > nearbyStatusMax {
		statuses = statuses[:nearbyStatusMax]
	}
	out := make([]models.Status, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, st.ForViewer(viewerID))
	}
	return out, nil
}
