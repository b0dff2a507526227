package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
)

func TestSendPrivateFanOut(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)
	e.addUser(t, "bob", nil)
	a1 := e.connect(t, "alice")
	a2 := e.connect(t, "alice")
	b1 := e.connect(t, "bob")

	env, err := e.chat.SendPrivate(ctx, SendPrivateInput{
		SenderID:       "alice",
		SenderConnID:   a1.ID,
		ToUserID:       "bob",
		MessageContent: MessageContent{Body: "hi", LocalID: "tmp-1"},
	})
	if err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}
	if env.LocalID != "tmp-1" || env.Sender.Username != "alice" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	tests := []struct {
		name   string
		client *realtime.Client
		event  string
		want   int
	}{
		{"issuing connection gets one ack", a1, realtime.EventPrivateMessageSent, 1},
		{"issuing connection gets no copy", a1, realtime.EventPrivateMessage, 0},
		{"other sender connection syncs", a2, realtime.EventPrivateMessageSent, 1},
		{"recipient receives", b1, realtime.EventPrivateMessage, 1},
		{"recipient notified", b1, realtime.EventNotificationNew, 1},
	}
	got := map[*realtime.Client][]string{
		a1: eventNames(t, a1),
		a2: eventNames(t, a2),
		b1: eventNames(t, b1),
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n := count(got[tt.client], tt.event); n != tt.want {
				t.Fatalf("%s count = %d, want %d (events %v)", tt.event, n, tt.want, got[tt.client])
			}
		})
	}

	history, err := e.chat.PrivateHistory(ctx, "bob", "alice", 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("PrivateHistory = %d, %v", len(history), err)
	}
}

func TestSendPrivateToSelfSkipsNotification(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)
	a1 := e.connect(t, "alice")

	_, err := e.chat.SendPrivate(context.Background(), SendPrivateInput{
		SenderID:       "alice",
		SenderConnID:   a1.ID,
		ToUserID:       "alice",
		MessageContent: MessageContent{Body: "note to self"},
	})
	if err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}
	if n := count(eventNames(t, a1), realtime.EventNotificationNew); n != 0 {
		t.Fatalf("got %d notifications for a self message", n)
	}
}

func TestSendPrivateRejects(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)

	tests := []struct {
		name string
		in   SendPrivateInput
		want error
	}{
		{"missing recipient", SendPrivateInput{SenderID: "alice", MessageContent: MessageContent{Body: "x"}}, ErrValidation},
		{"empty content", SendPrivateInput{SenderID: "alice", ToUserID: "alice"}, ErrValidation},
		{"unknown recipient", SendPrivateInput{SenderID: "alice", ToUserID: "ghost", MessageContent: MessageContent{Body: "x"}}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.chat.SendPrivate(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSendGroupRequiresMembership(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)
	e.addUser(t, "bob", nil)
	g := &models.Group{Name: "DOW-10001-1KM", Tier: models.TierNear, Anchor: origin, Members: []string{"alice"}}
	if err := e.store.CreateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	a1 := e.connect(t, "alice")
	a2 := e.connect(t, "alice")
	b1 := e.connect(t, "bob")
	e.hub.JoinUser(realtime.GroupChannel(g.ID), "alice")

	_, err := e.chat.SendGroup(ctx, SendGroupInput{SenderID: "bob", SenderConnID: b1.ID, GroupID: g.ID, MessageContent: MessageContent{Body: "let me in"}})
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("non-member send: err = %v, want ErrNotMember", err)
	}

	if _, err := e.chat.SendGroup(ctx, SendGroupInput{SenderID: "alice", SenderConnID: a1.ID, GroupID: g.ID, MessageContent: MessageContent{Body: "hello"}}); err != nil {
		t.Fatalf("member send: %v", err)
	}
	if got := eventNames(t, a1); len(got) != 1 || got[0] != realtime.EventGroupMessageSent {
		t.Fatalf("issuing connection events = %v", got)
	}
	if got := eventNames(t, a2); len(got) != 1 || got[0] != realtime.EventGroupMessage {
		t.Fatalf("other member connection events = %v", got)
	}
	if got := eventNames(t, b1); len(got) != 0 {
		t.Fatalf("outsider received %v", got)
	}

	if _, err := e.chat.GroupHistory(ctx, "bob", g.ID, 0); !errors.Is(err, ErrNotMember) {
		t.Fatalf("GroupHistory for outsider: err = %v", err)
	}
}

func TestToggleReaction(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)
	e.addUser(t, "bob", nil)
	env, err := e.chat.SendPrivate(ctx, SendPrivateInput{SenderID: "alice", ToUserID: "bob", MessageContent: MessageContent{Body: "hey"}})
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		emoji      models.Emoji
		wantAction string
		wantCount  int
		wantErr    error
	}{
		{"❤️", "added", 1, nil},
		{"❤️", "removed", 0, nil},
		{"❤️", "added", 1, nil},
		{"🔥", "", 0, ErrAlreadyReacted},
		{"🍕", "", 0, ErrValidation},
	}
	for i, s := range steps {
		update, err := e.chat.ToggleReaction(ctx, "bob", env.ID, s.emoji)
		if s.wantErr != nil {
			if !errors.Is(err, s.wantErr) {
				t.Fatalf("step %d: err = %v, want %v", i, err, s.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if update.Action != s.wantAction || update.Reactions.Counts[s.emoji] != s.wantCount {
			t.Fatalf("step %d: action=%s count=%d", i, update.Action, update.Reactions.Counts[s.emoji])
		}
	}

	if _, err := e.chat.ToggleReaction(ctx, "mallory", env.ID, "❤️"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger reaction: err = %v", err)
	}

	page, err := e.notify.List(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Fatalf("alice reaction notifications = %d, want 2", page.Total)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)
	e.addUser(t, "bob", nil)
	env, err := e.chat.SendPrivate(ctx, SendPrivateInput{SenderID: "alice", ToUserID: "bob", MessageContent: MessageContent{Body: "hey"}})
	if err != nil {
		t.Fatal(err)
	}
	a1 := e.connect(t, "alice")

	if err := e.chat.UpdateStatus(ctx, "mallory", env.ID, models.StatusSeen); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: err = %v", err)
	}
	if err := e.chat.UpdateStatus(ctx, "bob", env.ID, "read"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status: err = %v", err)
	}
	if err := e.chat.UpdateStatus(ctx, "bob", env.ID, models.StatusSeen); err != nil {
		t.Fatal(err)
	}
	// Backwards moves are accepted.
	if err := e.chat.UpdateStatus(ctx, "bob", env.ID, models.StatusDelivered); err != nil {
		t.Fatal(err)
	}
	if n := count(eventNames(t, a1), realtime.EventPrivateStatus); n != 2 {
		t.Fatalf("sender got %d status events, want 2", n)
	}
	msg, _ := e.store.GetMessage(ctx, env.ID)
	if msg.Status != models.StatusDelivered {
		t.Fatalf("status = %s, want delivered", msg.Status)
	}
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)
	e.addUser(t, "bob", nil)
	env, err := e.chat.SendPrivate(ctx, SendPrivateInput{SenderID: "alice", ToUserID: "bob", MessageContent: MessageContent{Body: "oops"}})
	if err != nil {
		t.Fatal(err)
	}
	a1 := e.connect(t, "alice")
	b1 := e.connect(t, "bob")

	if err := e.chat.DeleteMessage(ctx, "bob", env.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete by receiver: err = %v", err)
	}
	if err := e.chat.DeleteMessage(ctx, "alice", env.ID); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*realtime.Client{a1, b1} {
		if n := count(eventNames(t, c), realtime.EventMessageDeleted); n != 1 {
			t.Fatalf("%s got %d delete events", c.UserID, n)
		}
	}
	if err := e.chat.DeleteMessage(ctx, "alice", env.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}
	history, _ := e.chat.PrivateHistory(ctx, "alice", "bob", 0)
	if len(history) != 0 {
		t.Fatalf("deleted message still in history")
	}
}

func TestVoiceMessages(t *testing.T) {
	tests := []struct {
		name  string
		voice VoiceSynth
		want  string
	}{
		{"converted", stubVoice{url: "/uploads/voice/a.mp3"}, "/uploads/voice/a.mp3"},
		{"conversion failure still sends", stubVoice{err: errors.New("tts down")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.addUser(t, "alice", nil)
			e.addUser(t, "bob", nil)
			e.chat.WithVoice(tt.voice)

			env, err := e.chat.SendPrivate(context.Background(), SendPrivateInput{
				SenderID:       "alice",
				ToUserID:       "bob",
				MessageContent: MessageContent{Body: "hello", IsVoice: true, VoiceGender: "female"},
			})
			if err != nil {
				t.Fatal(err)
			}
			if env.VoiceURL != tt.want {
				t.Fatalf("VoiceURL = %q, want %q", env.VoiceURL, tt.want)
			}
		})
	}
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		e.addUser(t, id, nil)
	}
	e.chat.now = steppingClock(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	sends := []SendPrivateInput{
		{SenderID: "alice", ToUserID: "bob", MessageContent: MessageContent{Body: "1"}},
		{SenderID: "carol", ToUserID: "alice", MessageContent: MessageContent{Body: "2"}},
		{SenderID: "bob", ToUserID: "alice", MessageContent: MessageContent{Body: "3"}},
	}
	for _, in := range sends {
		if _, err := e.chat.SendPrivate(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	convs, err := e.chat.Conversations(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}
	for _, c := range convs {
		if c.UserID == "bob" && c.LastMessage != "3" {
			t.Fatalf("bob last message = %q, want 3", c.LastMessage)
		}
	}
}
