package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nightcircle/internal/geo"
	"nightcircle/internal/models"
)

// Memory is a process-local Store used in development and tests.
// Returned values are copies; callers may mutate them freely.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	groups        map[string]*models.Group
	messages      map[string]*models.Message
	notifications map[string]*models.Notification
	statuses      map[string]*models.Status
	rooms         map[string]*models.Room
	comments      map[string]*models.RoomComment
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]*models.User),
		groups:        make(map[string]*models.Group),
		messages:      make(map[string]*models.Message),
		notifications: make(map[string]*models.Notification),
		statuses:      make(map[string]*models.Status),
		rooms:         make(map[string]*models.Room),
		comments:      make(map[string]*models.RoomComment),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close()                     {}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// --- users ---

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return ErrConflict
		}
	}
	u.ID = newID(u.ID)
	u.CreatedAt = stamp(u.CreatedAt)
	m.users[u.ID] = copyUser(u)
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SetOnline(_ context.Context, id string, online bool) error {
	return m.updateUser(id, func(u *models.User) { u.Online = online })
}

func (m *Memory) UpdateLocation(_ context.Context, id string, p models.Point) error {
	return m.updateUser(id, func(u *models.User) { u.Location = &p })
}

func (m *Memory) SetVisible(_ context.Context, id string, visible bool) error {
	return m.updateUser(id, func(u *models.User) { u.Visible = visible })
}

func (m *Memory) EnterNightMode(_ context.Context, id string, at time.Time) error {
	return m.updateUser(id, func(u *models.User) {
		u.InNightMode = true
		u.NightModeEnteredAt = &at
	})
}

func (m *Memory) ExitNightMode(_ context.Context, id string, at time.Time) error {
	return m.updateUser(id, func(u *models.User) {
		u.InNightMode = false
		u.NightModeEnteredAt = nil
		u.LastNightModeExit = &at
	})
}

func (m *Memory) updateUser(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	return nil
}

func (m *Memory) UsersWithin(_ context.Context, p models.Point, radius float64) ([]models.NearbyUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.NearbyUser
	for _, u := range m.users {
		if u.Location == nil {
			continue
		}
		d := geo.Distance(p, *u.Location)
		if d <= radius {
			out = append(out, models.NearbyUser{UserInfo: u.Info(), Online: u.Online, Visible: u.Visible, DistanceMeters: d})
		}
	}
	sortNearby(out)
	return out, nil
}

// --- groups ---

func (m *Memory) CreateGroup(_ context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.groups {
		if existing.Name == g.Name {
			return ErrConflict
		}
	}
	g.ID = newID(g.ID)
	g.CreatedAt = stamp(g.CreatedAt)
	m.groups[g.ID] = copyGroup(g)
	return nil
}

func (m *Memory) GetGroup(_ context.Context, id string) (*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGroup(g), nil
}

func (m *Memory) GetGroupByName(_ context.Context, name string) (*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.groups {
		if g.Name == name {
			return copyGroup(g), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) AddMembers(_ context.Context, groupID string, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	for _, id := range userIDs {
		if !g.HasMember(id) {
			g.Members = append(g.Members, id)
		}
	}
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	g.Members = without(g.Members, userID)
	return nil
}

func (m *Memory) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[groupID]
	if !ok {
		return false, ErrNotFound
	}
	return g.HasMember(userID), nil
}

func (m *Memory) GroupsForUser(_ context.Context, userID string) ([]models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Group
	for _, g := range m.groups {
		if g.HasMember(userID) {
			out = append(out, *copyGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GroupsNear(_ context.Context, p models.Point, radius float64) ([]models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Group
	for _, g := range m.groups {
		if geo.Within(p, g.Anchor, radius) {
			out = append(out, *copyGroup(g))
		}
	}
	sortGroupsByDistance(p, out)
	return out, nil
}

// --- messages ---

func (m *Memory) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = newID(msg.ID)
	msg.CreatedAt = stamp(msg.CreatedAt)
	m.messages[msg.ID] = copyMessage(msg)
	return nil
}

func (m *Memory) GetMessage(_ context.Context, id string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMessage(msg), nil
}

func (m *Memory) UpdateMessageStatus(_ context.Context, id string, status models.MessageStatus) error {
	return m.updateMessage(id, func(msg *models.Message) { msg.Status = status })
}

func (m *Memory) UpdateReactions(_ context.Context, id string, r models.Reactions) error {
	return m.updateMessage(id, func(msg *models.Message) { msg.Reactions = r.Clone() })
}

func (m *Memory) SoftDeleteMessage(_ context.Context, id string) error {
	return m.updateMessage(id, func(msg *models.Message) { msg.Deleted = true })
}

func (m *Memory) updateMessage(id string, fn func(*models.Message)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return ErrNotFound
	}
	fn(msg)
	return nil
}

func (m *Memory) PrivateHistory(_ context.Context, a, b string, limit int) ([]models.Message, error) {
	return m.history(limit, func(msg *models.Message) bool {
		return !msg.IsGroup() &&
			((msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a))
	}), nil
}

func (m *Memory) GroupHistory(_ context.Context, groupID string, limit int) ([]models.Message, error) {
	return m.history(limit, func(msg *models.Message) bool { return msg.GroupID == groupID }), nil
}

func (m *Memory) history(limit int, match func(*models.Message) bool) []models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Message
	for _, msg := range m.messages {
		if !msg.Deleted && match(msg) {
			out = append(out, *copyMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (m *Memory) LatestPerPeer(_ context.Context, userID string, limit int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[string]*models.Message)
	for _, msg := range m.messages {
		if msg.IsGroup() || msg.Deleted {
			continue
		}
		var peer string
		switch userID {
		case msg.SenderID:
			peer = msg.ReceiverID
		case msg.ReceiverID:
			peer = msg.SenderID
		default:
			continue
		}
		if cur, ok := latest[peer]; !ok || msg.CreatedAt.After(cur.CreatedAt) {
			latest[peer] = msg
		}
	}
	out := make([]models.Message, 0, len(latest))
	for _, msg := range latest {
		out = append(out, *copyMessage(msg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- notifications ---

func (m *Memory) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = newID(n.ID)
	n.CreatedAt = stamp(n.CreatedAt)
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, userID string, limit, skip int) (models.NotificationPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page := models.NotificationPage{Notifications: []models.Notification{}}
	var all []models.Notification
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		all = append(all, *n)
		if !n.Read {
			page.Unread++
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	page.Total = len(all)
	if skip < len(all) {
		all = all[skip:]
		if limit > 0 && len(all) > limit {
			all = all[:limit]
		}
		page.Notifications = all
	}
	return page, nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, userID, id string, at time.Time) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return nil, ErrNotFound
	}
	n.Read = true
	n.ReadAt = &at
	cp := *n
	return &cp, nil
}

func (m *Memory) MarkAllNotificationsRead(_ context.Context, userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			readAt := at
			n.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteNotification(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(m.notifications, id)
	return nil
}

func (m *Memory) DeleteAllNotifications(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, n := range m.notifications {
		if n.UserID == userID {
			delete(m.notifications, id)
			count++
		}
	}
	return count, nil
}

// --- statuses ---

func (m *Memory) CreateStatus(_ context.Context, s *models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = newID(s.ID)
	s.CreatedAt = stamp(s.CreatedAt)
	if s.Views == nil {
		zero := 0
		s.Views = &zero
	}
	m.statuses[s.ID] = copyStatus(s)
	return nil
}

func (m *Memory) GetStatus(_ context.Context, id string, now time.Time) (*models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[id]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	return copyStatus(s), nil
}

func (m *Memory) AddStatusViewer(_ context.Context, id, viewer string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.HasViewer(viewer) {
		return false, nil
	}
	s.Viewers = append(s.Viewers, viewer)
	views := len(s.Viewers)
	s.Views = &views
	return true, nil
}

func (m *Memory) DeleteStatus(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return ErrNotFound
	}
	delete(m.statuses, id)
	return nil
}

func (m *Memory) StatusesByUsers(_ context.Context, userIDs []string, now time.Time) ([]models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	var out []models.Status
	for _, s := range m.statuses {
		if _, ok := want[s.UserID]; ok && s.ExpiresAt.After(now) {
			out = append(out, *copyStatus(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteExpiredStatuses(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, s := range m.statuses {
		if !s.ExpiresAt.After(now) {
			delete(m.statuses, id)
			count++
		}
	}
	return count, nil
}

// --- rooms ---

func (m *Memory) CreateRoom(_ context.Context, r *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = newID(r.ID)
	r.CreatedAt = stamp(r.CreatedAt)
	m.rooms[r.ID] = copyRoom(r)
	return nil
}

func (m *Memory) GetRoom(_ context.Context, id string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(r), nil
}

func (m *Memory) ListNightRooms(_ context.Context) ([]models.Room, error) {
	return m.listRooms(func(r *models.Room) bool { return r.IsNightRoom }), nil
}

func (m *Memory) RoomsCreatedBefore(_ context.Context, t time.Time) ([]models.Room, error) {
	return m.listRooms(func(r *models.Room) bool { return r.CreatedAt.Before(t) }), nil
}

func (m *Memory) listRooms(match func(*models.Room) bool) []models.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Room
	for _, r := range m.rooms {
		if match(r) {
			out = append(out, *copyRoom(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Memory) AddJoinRequest(_ context.Context, roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if !r.IsPending(userID) && !r.IsParticipant(userID) {
		r.PendingRequests = append(r.PendingRequests, userID)
	}
	return nil
}

func (m *Memory) ApproveJoinRequest(_ context.Context, roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	r.PendingRequests = without(r.PendingRequests, userID)
	if !r.IsParticipant(userID) {
		r.Participants = append(r.Participants, userID)
	}
	return nil
}

func (m *Memory) DeleteRoom(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *Memory) CreateComment(_ context.Context, c *models.RoomComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = newID(c.ID)
	c.CreatedAt = stamp(c.CreatedAt)
	m.comments[c.ID] = copyComment(c)
	return nil
}

func (m *Memory) RoomComments(_ context.Context, roomID string) ([]models.RoomComment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RoomComment
	for _, c := range m.comments {
		if c.RoomID == roomID {
			out = append(out, *copyComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteRoomComments(_ context.Context, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, c := range m.comments {
		if c.RoomID == roomID {
			delete(m.comments, id)
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteExpiredComments(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, c := range m.comments {
		if c.Expired(now) {
			delete(m.comments, id)
			count++
		}
	}
	return count, nil
}

// --- copies ---

func copyUser(u *models.User) *models.User {
	cp := *u
	if u.Location != nil {
		loc := *u.Location
		cp.Location = &loc
	}
	cp.NightModeEnteredAt = copyTime(u.NightModeEnteredAt)
	cp.LastNightModeExit = copyTime(u.LastNightModeExit)
	return &cp
}

func copyGroup(g *models.Group) *models.Group {
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	return &cp
}

func copyMessage(msg *models.Message) *models.Message {
	cp := *msg
	cp.Reactions = msg.Reactions.Clone()
	return &cp
}

func copyStatus(s *models.Status) *models.Status {
	cp := *s
	if s.Views != nil {
		v := *s.Views
		cp.Views = &v
	}
	cp.Viewers = append([]string(nil), s.Viewers...)
	return &cp
}

func copyRoom(r *models.Room) *models.Room {
	cp := *r
	cp.Participants = append([]string(nil), r.Participants...)
	cp.PendingRequests = append([]string(nil), r.PendingRequests...)
	return &cp
}

func copyComment(c *models.RoomComment) *models.RoomComment {
	cp := *c
	cp.ExpiresAt = copyTime(c.ExpiresAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sortNearby(users []models.NearbyUser) {
	sort.Slice(users, func(i, j int) bool { return users[i].DistanceMeters < users[j].DistanceMeters })
}

func sortGroupsByDistance(p models.Point, groups []models.Group) {
	sort.Slice(groups, func(i, j int) bool {
		return geo.Distance(p, groups[i].Anchor) < geo.Distance(p, groups[j].Anchor)
	})
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
