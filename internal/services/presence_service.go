package services

import (
	"context"
	"errors"
	"sync"

	"nightcircle/internal/logging"
	"nightcircle/internal/realtime"
	"nightcircle/internal/store"
	"nightcircle/internal/utils"
)

// PresenceService ties live connections to persisted online state and
// channel subscriptions.
type PresenceService struct {
	hub    *realtime.Hub
	users  store.Users
	groups store.Groups
	cache  store.PresenceCache
	locks  userLocks
}

// userLocks serializes presence transitions per user so a reconnect cannot
// interleave with the offline write of a previous last disconnect.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		if ul.refs--; ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func NewPresenceService(hub *realtime.Hub, users store.Users, groups store.Groups, cache store.PresenceCache) *PresenceService {
	if cache == nil {
		cache = store.NopPresence{}
	}
	return &PresenceService{hub: hub, users: users, groups: groups, cache: cache}
}

type presencePayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// Connect registers an authenticated connection, marks its user online and
// subscribes it to the personal channel and every group the user is in.
func (s *PresenceService) Connect(ctx context.Context, c *realtime.Client) error {
	defer s.locks.lock(c.UserID)()

	first := s.hub.Register(c)
	s.hub.Join(realtime.UserChannel(c.UserID), c.ID)

	if err := s.users.SetOnline(ctx, c.UserID, true); err != nil {
		utils.LogError(err, "PresenceService.Connect SetOnline")
	}
	s.hub.EmitAll(realtime.EventPresenceUpdate, presencePayload{UserID: c.UserID, IsOnline: true})
	if err := s.cache.SetOnline(ctx, c.UserID, s.hub.CountUserConnections(c.UserID)); err != nil {
		utils.LogError(err, "PresenceService.Connect cache")
	}

	groups, err := s.groups.GroupsForUser(ctx, c.UserID)
	if err != nil {
		return storeErr("load groups", err)
	}
	for _, g := range groups {
		s.hub.Join(realtime.GroupChannel(g.ID), c.ID)
	}

	logging.Debug().
		Str("user_id", c.UserID).
		Str("conn_id", c.ID).
		Bool("first", first).
		Int("groups", len(groups)).
		Msg("connection registered")
	return nil
}

// Disconnect drops a connection; the user goes offline with its last one.
func (s *PresenceService) Disconnect(ctx context.Context, connID string) {
	c, ok := s.hub.Client(connID)
	if !ok {
		return
	}
	defer s.locks.lock(c.UserID)()

	userID, last := s.hub.Unregister(connID)
	if userID == "" {
		return
	}
	if !last {
		if err := s.cache.SetOnline(ctx, userID, s.hub.CountUserConnections(userID)); err != nil {
			utils.LogError(err, "PresenceService.Disconnect cache")
		}
		return
	}

	if err := s.users.SetOnline(ctx, userID, false); err != nil {
		utils.LogError(err, "PresenceService.Disconnect SetOnline")
	}
	if err := s.cache.SetOffline(ctx, userID); err != nil {
		utils.LogError(err, "PresenceService.Disconnect cache")
	}
	s.hub.EmitAll(realtime.EventPresenceUpdate, presencePayload{UserID: userID, IsOnline: false})
	logging.Debug().Str("user_id", userID).Msg("user offline")
}

type groupPayload struct {
	GroupID string `json:"groupId"`
	Error   string `json:"error,omitempty"`
}

// Subscribe joins a connection to a group channel after a live membership
// check. The outcome is reported to that connection only.
func (s *PresenceService) Subscribe(ctx context.Context, connID, groupID string) error {
	c, ok := s.hub.Client(connID)
	if !ok {
		return ErrUnauthenticated
	}
	if groupID == "" {
		s.hub.EmitConn(connID, realtime.EventGroupSubscribeError, groupPayload{Error: "groupId is required"})
		return invalid("groupId is required")
	}

	member, err := s.groups.IsMember(ctx, groupID, c.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.hub.EmitConn(connID, realtime.EventGroupSubscribeError, groupPayload{GroupID: groupID, Error: "failed to subscribe"})
		return storeErr("check membership", err)
	}
	if !member {
		s.hub.EmitConn(connID, realtime.EventGroupSubscribeError, groupPayload{GroupID: groupID, Error: ErrNotMember.Error()})
		return ErrNotMember
	}

	s.hub.Join(realtime.GroupChannel(groupID), connID)
	s.hub.EmitConn(connID, realtime.EventGroupSubscribed, groupPayload{GroupID: groupID})
	return nil
}

// OnlineUsers lists users with a live connection in this process.
func (s *PresenceService) OnlineUsers() []string {
	return s.hub.OnlineUserIDs()
}
