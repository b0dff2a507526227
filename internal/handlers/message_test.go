package handlers

import (
	"context"
	"testing"

	"github.com/goccy/go-json"

	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/services"
	"nightcircle/internal/store"
)

type dispatchEnv struct {
	store      *store.Memory
	hub        *realtime.Hub
	presence   *services.PresenceService
	dispatcher *Dispatcher
}

func newDispatchEnv(t *testing.T, users ...string) *dispatchEnv {
	t.Helper()
	mem := store.NewMemory()
	hub := realtime.NewHub()
	notify := services.NewNotificationService(mem, mem, hub)
	chat := services.NewChatService(mem, mem, mem, hub, notify)
	presence := services.NewPresenceService(hub, mem, mem, store.NopPresence{})
	for _, id := range users {
		if err := mem.CreateUser(context.Background(), &models.User{ID: id, Username: id, Visible: true}); err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
	}
	return &dispatchEnv{
		store:      mem,
		hub:        hub,
		presence:   presence,
		dispatcher: NewDispatcher(presence, chat, hub),
	}
}

func (e *dispatchEnv) connect(t *testing.T, userID string, opts realtime.ClientOptions) *realtime.Client {
	t.Helper()
	if opts.QueueSize == 0 {
		opts.QueueSize = 32
	}
	c := realtime.NewClient(userID, userID, opts)
	if err := e.presence.Connect(context.Background(), c); err != nil {
		t.Fatalf("connect %s: %v", userID, err)
	}
	return c
}

func drainAll(clients ...*realtime.Client) {
	for _, c := range clients {
		c.Drain()
	}
}

type outFrame struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func received(t *testing.T, c *realtime.Client) []outFrame {
	t.Helper()
	var out []outFrame
	for _, raw := range c.Drain() {
		var f outFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame %s: %v", raw, err)
		}
		out = append(out, f)
	}
	return out
}

func frame(t *testing.T, event string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return raw
}

func TestDispatchErrorsStayOnConnection(t *testing.T) {
	tests := []struct {
		name      string
		raw       func(t *testing.T) []byte
		wantEvent string
		wantField string
		wantValue string
	}{
		{
			name:      "not json",
			raw:       func(*testing.T) []byte { return []byte("{nope") },
			wantEvent: realtime.EventError,
			wantField: "error",
			wantValue: "invalid frame",
		},
		{
			name:      "unknown event",
			raw:       func(t *testing.T) []byte { return frame(t, "dance", map[string]string{}) },
			wantEvent: realtime.EventError,
			wantField: "event",
			wantValue: "dance",
		},
		{
			name: "empty private message",
			raw: func(t *testing.T) []byte {
				return frame(t, realtime.EventPrivateMessage, map[string]string{"toUserId": "b", "localId": "l-1"})
			},
			wantEvent: realtime.EventPrivateMessageError,
			wantField: "localId",
			wantValue: "l-1",
		},
		{
			name: "group message to unknown group",
			raw: func(t *testing.T) []byte {
				return frame(t, realtime.EventGroupMessage, map[string]string{"groupId": "g-1", "message": "hi", "localId": "l-2"})
			},
			wantEvent: realtime.EventGroupMessageError,
			wantField: "localId",
			wantValue: "l-2",
		},
		{
			name: "reaction on unknown message",
			raw: func(t *testing.T) []byte {
				return frame(t, realtime.EventMessageReaction, map[string]string{"messageId": "m-404", "emoji": "like"})
			},
			wantEvent: realtime.EventMessageError,
			wantField: "messageId",
			wantValue: "m-404",
		},
		{
			name:      "missing data",
			raw:       func(*testing.T) []byte { return []byte(`{"event":"message:delete"}`) },
			wantEvent: realtime.EventMessageError,
			wantField: "error",
			wantValue: "missing data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newDispatchEnv(t, "a", "b")
			a := env.connect(t, "a", realtime.ClientOptions{})
			a2 := env.connect(t, "a", realtime.ClientOptions{})
			b := env.connect(t, "b", realtime.ClientOptions{})
			drainAll(a, a2, b)

			env.dispatcher.Handle(context.Background(), a, tt.raw(t))

			got := received(t, a)
			if len(got) != 1 {
				t.Fatalf("origin got %d frames, want 1: %+v", len(got), got)
			}
			if got[0].Event != tt.wantEvent {
				t.Errorf("event = %q, want %q", got[0].Event, tt.wantEvent)
			}
			if v, _ := got[0].Data[tt.wantField].(string); v != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantField, v, tt.wantValue)
			}
			if n := len(a2.Drain()) + len(b.Drain()); n != 0 {
				t.Errorf("error leaked to %d other frames", n)
			}
		})
	}
}

func TestDispatchPrivateMessage(t *testing.T) {
	env := newDispatchEnv(t, "a", "b")
	a := env.connect(t, "a", realtime.ClientOptions{})
	b := env.connect(t, "b", realtime.ClientOptions{})
	drainAll(a, b)

	env.dispatcher.Handle(context.Background(), a, frame(t, realtime.EventPrivateMessage, map[string]string{
		"toUserId": "b",
		"message":  "hello",
		"localId":  "l-1",
	}))

	fromA := received(t, a)
	if len(fromA) != 1 || fromA[0].Event != realtime.EventPrivateMessageSent {
		t.Errorf("sender frames = %+v", fromA)
	}
	var sawMessage bool
	for _, f := range received(t, b) {
		if f.Event == realtime.EventPrivateMessage {
			sawMessage = true
		}
	}
	if !sawMessage {
		t.Error("recipient did not receive private:message")
	}
}

func TestDispatchPing(t *testing.T) {
	env := newDispatchEnv(t, "a")
	a := env.connect(t, "a", realtime.ClientOptions{})
	drainAll(a)

	env.dispatcher.Handle(context.Background(), a, []byte(`{"event":"ping"}`))

	got := received(t, a)
	if len(got) != 1 || got[0].Event != realtime.EventPong {
		t.Fatalf("frames = %+v", got)
	}
	if ts, _ := got[0].Data["time"].(float64); ts <= 0 {
		t.Errorf("pong time = %v", got[0].Data["time"])
	}
}

func TestDispatchRateLimit(t *testing.T) {
	env := newDispatchEnv(t, "a")
	a := env.connect(t, "a", realtime.ClientOptions{RatePerSecond: 0.001, Burst: 1})
	drainAll(a)

	env.dispatcher.Handle(context.Background(), a, []byte(`{"event":"ping"}`))
	env.dispatcher.Handle(context.Background(), a, []byte(`{"event":"ping"}`))

	got := received(t, a)
	if len(got) != 2 {
		t.Fatalf("frames = %+v", got)
	}
	if got[0].Event != realtime.EventPong {
		t.Errorf("first frame = %q, want pong", got[0].Event)
	}
	if got[1].Event != realtime.EventError || got[1].Data["error"] != "rate limit exceeded" {
		t.Errorf("second frame = %+v", got[1])
	}
}
