package realtime

import (
	"sync"

	"nightcircle/internal/metrics"
	"nightcircle/internal/models"
	"nightcircle/internal/utils"
)

// Emitter delivers events to channels and connections. Delivery is
// best-effort and never blocks on a slow receiver.
type Emitter interface {
	Emit(channel, event string, payload interface{})
	EmitExcept(channel, exceptConnID, event string, payload interface{})
	EmitConn(connID, event string, payload interface{})
	EmitAll(event string, payload interface{})
}

// Hub tracks live connections, the channels they are subscribed to and
// which user owns each connection.
type Hub struct {
	mu sync.RWMutex
	// channel -> connID -> client
	channels map[string]map[string]*Client
	// connID -> client
	conns map[string]*Client
	// userID -> connID -> client
	users map[string]map[string]*Client
}

var _ Emitter = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[string]*Client),
		conns:    make(map[string]*Client),
		users:    make(map[string]map[string]*Client),
	}
}

// Register adds a connection. Returns true if this is the user's first
// live connection (the user just came online).
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID] = c
	byUser, ok := h.users[c.UserID]
	if !ok {
		byUser = make(map[string]*Client)
		h.users[c.UserID] = byUser
	}
	first := len(byUser) == 0
	byUser[c.ID] = c

	metrics.Connections.Set(float64(len(h.conns)))
	metrics.OnlineUsers.Set(float64(len(h.users)))
	return first
}

// Unregister removes a connection from the hub and every channel. Returns
// the owning user and whether that was the user's last connection.
func (h *Hub) Unregister(connID string) (userID string, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return "", false
	}
	delete(h.conns, connID)

	for name, members := range h.channels {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.channels, name)
			}
		}
	}

	if byUser, ok := h.users[c.UserID]; ok {
		delete(byUser, connID)
		if len(byUser) == 0 {
			delete(h.users, c.UserID)
			last = true
		}
	}

	metrics.Connections.Set(float64(len(h.conns)))
	metrics.OnlineUsers.Set(float64(len(h.users)))
	return c.UserID, last
}

// Join subscribes a registered connection to a channel.
func (h *Hub) Join(channel, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	h.join(channel, c)
	return true
}

// JoinUser subscribes every live connection of a user to a channel.
func (h *Hub) JoinUser(channel, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.users[userID] {
		h.join(channel, c)
	}
}

func (h *Hub) join(channel string, c *Client) {
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[string]*Client)
		h.channels[channel] = members
	}
	members[c.ID] = c
}

func (h *Hub) Leave(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(channel, connID)
}

// LeaveUser unsubscribes every connection of a user from a channel.
func (h *Hub) LeaveUser(channel, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.users[userID] {
		h.leave(channel, connID)
	}
}

func (h *Hub) leave(channel, connID string) {
	if members, ok := h.channels[channel]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) InChannel(channel, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[channel][connID]
	return ok
}

// Client returns the connection with the given id.
func (h *Hub) Client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	return c, ok
}

func (h *Hub) IsUserOnline(userID string) bool {
	return h.CountUserConnections(userID) > 0
}

func (h *Hub) CountUserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// OnlineUserIDs lists every user with at least one live connection.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) Emit(channel, event string, payload interface{}) {
	h.EmitExcept(channel, "", event, payload)
}

func (h *Hub) EmitExcept(channel, exceptConnID, event string, payload interface{}) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.channels[channel] {
		if id == exceptConnID {
			continue
		}
		c.Enqueue(frame)
	}
}

func (h *Hub) EmitConn(connID, event string, payload interface{}) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	c, found := h.conns[connID]
	h.mu.RUnlock()
	if found {
		c.Enqueue(frame)
	}
}

func (h *Hub) EmitAll(event string, payload interface{}) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.Enqueue(frame)
	}
}

// CloseAll closes every connection's writer. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.Close()
	}
}

func encode(event string, payload interface{}) ([]byte, bool) {
	b := utils.ToJSON(models.OutFrame{Event: event, Data: payload})
	return b, b != nil
}
