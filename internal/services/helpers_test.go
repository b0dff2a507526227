package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"nightcircle/internal/geo"
	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/store"
)

var origin = models.Point{Lat: 0, Lng: 0}

type testEnv struct {
	store  *store.Memory
	hub    *realtime.Hub
	notify *NotificationService
	chat   *ChatService
	geo    *GeoService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	hub := realtime.NewHub()
	notify := NewNotificationService(mem, mem, hub)
	resolver := geo.NewResolver(stubGeocoder{place: geo.Place{Area: "Downtown", PostalCode: "10001"}}, 0)
	return &testEnv{
		store:  mem,
		hub:    hub,
		notify: notify,
		chat:   NewChatService(mem, mem, mem, hub, notify),
		geo:    NewGeoService(mem, mem, resolver, hub),
	}
}

func (e *testEnv) addUser(t *testing.T, id string, loc *models.Point) {
	t.Helper()
	u := &models.User{ID: id, Username: id, Visible: true, Location: loc}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

// connect registers a live connection for userID on its personal channel.
func (e *testEnv) connect(t *testing.T, userID string) *realtime.Client {
	t.Helper()
	c := realtime.NewClient(userID, userID, realtime.ClientOptions{QueueSize: 32})
	e.hub.Register(c)
	e.hub.Join(realtime.UserChannel(userID), c.ID)
	return c
}

func frames(t *testing.T, c *realtime.Client) []models.Frame {
	t.Helper()
	var out []models.Frame
	for _, raw := range c.Drain() {
		var f models.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

func eventNames(t *testing.T, c *realtime.Client) []string {
	t.Helper()
	var out []string
	for _, f := range frames(t, c) {
		out = append(out, f.Event)
	}
	return out
}

func count(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type stubGeocoder struct {
	place geo.Place
	err   error
}

func (s stubGeocoder) Reverse(context.Context, float64, float64) (geo.Place, error) {
	return s.place, s.err
}

type stubVoice struct {
	url string
	err error
}

func (s stubVoice) Synthesize(context.Context, string, string) (string, error) {
	return s.url, s.err
}

type stubMedia struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
}

func (s *stubMedia) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, url)
	if s.fail[url] {
		return store.ErrForeignMedia
	}
	return nil
}

type recordingCache struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{counts: map[string]int{}}
}

func (r *recordingCache) SetOnline(_ context.Context, userID string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[userID] = n
	return nil
}

func (r *recordingCache) SetOffline(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counts, userID)
	return nil
}

func (r *recordingCache) OnlineUsers(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.counts))
	for id := range r.counts {
		out = append(out, id)
	}
	return out, nil
}
