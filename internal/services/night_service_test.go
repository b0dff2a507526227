package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"nightcircle/internal/models"
	"nightcircle/internal/nightmode"
)

type nightFixture struct {
	*testEnv
	now   time.Time
	media *stubMedia
	night *NightService
}

func newNightFixture(t *testing.T, start time.Time) *nightFixture {
	t.Helper()
	f := &nightFixture{testEnv: newTestEnv(t), now: start, media: &stubMedia{fail: map[string]bool{}}}
	clock := nightmode.NewClock(time.UTC, func() time.Time { return f.now })
	f.night = NewNightService(f.store, f.store, f.media, clock)
	return f
}

// lateEvening is inside the entry window.
var lateEvening = time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)

func TestEnterNightMode(t *testing.T) {
	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{"midday", time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), ErrNightModeClosed},
		{"after last entry", time.Date(2026, 10, 20, 4, 0, 0, 0, time.UTC), ErrNightModeClosed},
		{"window open", lateEvening, nil},
		{"last entry minute", time.Date(2026, 10, 20, 3, 30, 0, 0, time.UTC), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newNightFixture(t, tt.at)
			f.addUser(t, "alice", nil)
			st, err := f.night.Enter(context.Background(), "alice")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && !st.InNightMode {
				t.Fatal("session not active after entering")
			}
		})
	}
}

func TestNightStatusExpiresAtDayStart(t *testing.T) {
	ctx := context.Background()
	f := newNightFixture(t, lateEvening)
	f.addUser(t, "alice", nil)

	st, err := f.night.Enter(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	wantEnd := time.Date(2026, 10, 20, 5, 0, 0, 0, time.UTC)
	if st.SessionEndsAt == nil || !st.SessionEndsAt.Equal(wantEnd) {
		t.Fatalf("SessionEndsAt = %v, want %v", st.SessionEndsAt, wantEnd)
	}

	f.now = wantEnd.Add(30 * time.Minute)
	st, err = f.night.Status(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if st.InNightMode {
		t.Fatal("session survived day start")
	}
	u, _ := f.store.GetUser(ctx, "alice")
	if u.InNightMode || u.NightModeEnteredAt != nil {
		t.Fatal("stale night mode flag not cleared")
	}
}

func TestNightRoomLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newNightFixture(t, lateEvening)
	for _, id := range []string{"alice", "bob", "carol"} {
		f.addUser(t, id, nil)
	}
	if _, err := f.night.Enter(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.night.CreateRoom(ctx, "bob", CreateRoomInput{Name: "insomnia"}); !errors.Is(err, ErrNightModeClosed) {
		t.Fatalf("create without session: err = %v", err)
	}
	if _, err := f.night.CreateRoom(ctx, "alice", CreateRoomInput{Name: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name: err = %v", err)
	}
	room, err := f.night.CreateRoom(ctx, "alice", CreateRoomInput{Name: "insomnia"})
	if err != nil {
		t.Fatal(err)
	}

	joins := []struct {
		user string
		want JoinState
	}{
		{"bob", JoinRequested},
		{"bob", JoinPending},
		{"alice", JoinJoined},
	}
	for _, j := range joins {
		got, err := f.night.RequestJoin(ctx, j.user, room.ID)
		if err != nil || got != j.want {
			t.Fatalf("RequestJoin(%s) = %s, %v want %s", j.user, got, err, j.want)
		}
	}

	if _, err := f.night.Approve(ctx, "bob", room.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self approval: err = %v", err)
	}
	approved, err := f.night.Approve(ctx, "alice", room.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !approved.IsParticipant("bob") || approved.IsPending("bob") {
		t.Fatalf("bob not moved to participants: %+v", approved)
	}

	details, err := f.night.Details(ctx, "bob", room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if details.IsCreator || !details.IsParticipant {
		t.Fatalf("details = %+v", details)
	}

	rooms, err := f.night.ListRooms(ctx)
	if err != nil || len(rooms) != 1 {
		t.Fatalf("ListRooms = %d, %v", len(rooms), err)
	}
}

func TestRoomComments(t *testing.T) {
	ctx := context.Background()
	f := newNightFixture(t, lateEvening)
	for _, id := range []string{"alice", "bob", "carol"} {
		f.addUser(t, id, nil)
	}
	if _, err := f.night.Enter(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	room, err := f.night.CreateRoom(ctx, "alice", CreateRoomInput{Name: "insomnia"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.night.Approve(ctx, "alice", room.ID, "bob"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		user    string
		in      PostCommentInput
		wantErr error
	}{
		{"empty", "bob", PostCommentInput{}, ErrValidation},
		{"outsider", "carol", PostCommentInput{Content: "hi"}, ErrForbidden},
		{"media from participant", "bob", PostCommentInput{MediaURL: "/uploads/b.jpg"}, ErrForbidden},
		{"text from participant", "bob", PostCommentInput{Content: "can't sleep"}, nil},
		{"media from creator", "alice", PostCommentInput{MediaURL: "/uploads/a.jpg", MediaType: "image"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.night.PostComment(ctx, tt.user, room.ID, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	comments, err := f.night.ListComments(ctx, room.ID)
	if err != nil || len(comments) != 2 {
		t.Fatalf("ListComments = %d, %v", len(comments), err)
	}

	f.now = f.now.Add(CommentTTL + time.Second)
	comments, err = f.night.ListComments(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || !comments[0].HasMedia() {
		t.Fatalf("after expiry = %+v, want only the media comment", comments)
	}

	for user, want := range map[string]bool{"alice": true, "bob": false} {
		got, err := f.night.CanSendMedia(ctx, user, room.ID)
		if err != nil || got != want {
			t.Fatalf("CanSendMedia(%s) = %v, %v", user, got, err)
		}
	}
}

func TestCleanupExpiredRooms(t *testing.T) {
	ctx := context.Background()
	f := newNightFixture(t, lateEvening)
	f.addUser(t, "alice", nil)
	if _, err := f.night.Enter(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	old, err := f.night.CreateRoom(ctx, "alice", CreateRoomInput{Name: "last night"})
	if err != nil {
		t.Fatal(err)
	}
	for _, url := range []string{"/uploads/broken.jpg", "/uploads/ok.jpg"} {
		if _, err := f.night.PostComment(ctx, "alice", old.ID, PostCommentInput{MediaURL: url}); err != nil {
			t.Fatal(err)
		}
	}
	f.media.fail["/uploads/broken.jpg"] = true

	f.now = lateEvening.Add(RoomLifetime + 30*time.Minute)
	young := &models.Room{Name: "fresh", CreatorID: "alice", Participants: []string{"alice"}, IsNightRoom: true, CreatedAt: f.now.Add(-time.Hour)}
	if err := f.store.CreateRoom(ctx, young); err != nil {
		t.Fatal(err)
	}

	removed, err := f.night.CleanupExpiredRooms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed %d rooms, want 1", removed)
	}
	if len(f.media.deleted) != 2 {
		t.Fatalf("media deletions attempted = %v, want both files", f.media.deleted)
	}
	if _, err := f.store.GetRoom(ctx, old.ID); err == nil {
		t.Fatal("expired room still stored")
	}
	if left, _ := f.store.RoomComments(ctx, old.ID); len(left) != 0 {
		t.Fatalf("%d comments survived their room", len(left))
	}
	if _, err := f.store.GetRoom(ctx, young.ID); err != nil {
		t.Fatalf("young room removed: %v", err)
	}
}

func TestExitRunsCleanup(t *testing.T) {
	ctx := context.Background()
	f := newNightFixture(t, lateEvening)
	f.addUser(t, "alice", nil)
	stale := &models.Room{Name: "stale", CreatorID: "alice", IsNightRoom: true, CreatedAt: lateEvening.Add(-13 * time.Hour)}
	if err := f.store.CreateRoom(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if _, err := f.night.Enter(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	st, err := f.night.Exit(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if st.InNightMode {
		t.Fatal("still in night mode after exit")
	}
	if _, err := f.store.GetRoom(ctx, stale.ID); err == nil {
		t.Fatal("exit did not sweep the stale room")
	}
}
