package realtime

import (
	"testing"

	"github.com/goccy/go-json"

	"nightcircle/internal/models"
)

func newTestClient(t *testing.T, h *Hub, userID string) *Client {
	t.Helper()
	c := NewClient(userID, userID, ClientOptions{QueueSize: 16})
	h.Register(c)
	return c
}

func events(t *testing.T, c *Client) []string {
	t.Helper()
	var out []string
	for _, raw := range c.Drain() {
		var f models.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		out = append(out, f.Event)
	}
	return out
}

func TestRegisterUnregisterFirstLast(t *testing.T) {
	h := NewHub()
	a1 := NewClient("alice", "alice", ClientOptions{})
	a2 := NewClient("alice", "alice", ClientOptions{})

	if !h.Register(a1) {
		t.Fatal("first connection should report first=true")
	}
	if h.Register(a2) {
		t.Fatal("second connection should report first=false")
	}
	if got := h.CountUserConnections("alice"); got != 2 {
		t.Fatalf("CountUserConnections = %d, want 2", got)
	}

	if uid, last := h.Unregister(a1.ID); uid != "alice" || last {
		t.Fatalf("Unregister(a1) = %q,%v want alice,false", uid, last)
	}
	if !h.IsUserOnline("alice") {
		t.Fatal("alice should still be online")
	}
	if uid, last := h.Unregister(a2.ID); uid != "alice" || !last {
		t.Fatalf("Unregister(a2) = %q,%v want alice,true", uid, last)
	}
	if h.IsUserOnline("alice") {
		t.Fatal("alice should be offline")
	}
	if uid, last := h.Unregister("missing"); uid != "" || last {
		t.Fatalf("Unregister(missing) = %q,%v", uid, last)
	}
}

func TestEmitScopes(t *testing.T) {
	h := NewHub()
	a := newTestClient(t, h, "alice")
	b := newTestClient(t, h, "bob")
	c := newTestClient(t, h, "carol")

	g := GroupChannel("g1")
	h.Join(g, a.ID)
	h.Join(g, b.ID)

	h.Emit(g, EventGroupMessage, map[string]string{"message": "hi"})
	if got := events(t, a); len(got) != 1 || got[0] != EventGroupMessage {
		t.Fatalf("alice got %v", got)
	}
	if got := events(t, b); len(got) != 1 {
		t.Fatalf("bob got %v", got)
	}
	if got := events(t, c); len(got) != 0 {
		t.Fatalf("carol outside the channel got %v", got)
	}

	h.EmitExcept(g, a.ID, EventTyping, nil)
	if got := events(t, a); len(got) != 0 {
		t.Fatalf("excluded connection got %v", got)
	}
	if got := events(t, b); len(got) != 1 {
		t.Fatalf("bob got %v", got)
	}

	h.EmitConn(c.ID, EventPong, nil)
	if got := events(t, c); len(got) != 1 || got[0] != EventPong {
		t.Fatalf("carol got %v", got)
	}

	h.EmitAll(EventPresenceUpdate, nil)
	for _, cl := range []*Client{a, b, c} {
		if got := events(t, cl); len(got) != 1 {
			t.Fatalf("%s got %v on broadcast", cl.UserID, got)
		}
	}
}

func TestJoinUserLeaveUser(t *testing.T) {
	h := NewHub()
	a1 := newTestClient(t, h, "alice")
	a2 := newTestClient(t, h, "alice")
	ch := GroupChannel("g")

	h.JoinUser(ch, "alice")
	if !h.InChannel(ch, a1.ID) || !h.InChannel(ch, a2.ID) {
		t.Fatal("JoinUser should subscribe every connection")
	}
	h.LeaveUser(ch, "alice")
	if h.InChannel(ch, a1.ID) || h.InChannel(ch, a2.ID) {
		t.Fatal("LeaveUser should unsubscribe every connection")
	}
	if h.Join(ch, "nope") {
		t.Fatal("Join of unknown connection should fail")
	}
}

func TestUnregisterRemovesChannels(t *testing.T) {
	h := NewHub()
	a := newTestClient(t, h, "alice")
	ch := UserChannel("alice")
	h.Join(ch, a.ID)
	h.Unregister(a.ID)
	if h.InChannel(ch, a.ID) {
		t.Fatal("connection still subscribed after Unregister")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := NewClient("u", "u", ClientOptions{QueueSize: 1})
	if !c.Enqueue([]byte("a")) {
		t.Fatal("first enqueue should succeed")
	}
	if c.Enqueue([]byte("b")) {
		t.Fatal("enqueue on a full queue should drop")
	}
	c.Close()
	c.Drain()
	if c.Enqueue([]byte("c")) {
		t.Fatal("enqueue after Close should drop")
	}
}

func TestClientRateLimit(t *testing.T) {
	c := NewClient("u", "u", ClientOptions{RatePerSecond: 1, Burst: 2})
	if !c.Allow() || !c.Allow() {
		t.Fatal("burst should be allowed")
	}
	if c.Allow() {
		t.Fatal("third immediate event should be limited")
	}

	unlimited := NewClient("u", "u", ClientOptions{})
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatal("unlimited client was limited")
		}
	}
}
