package services

import (
	"context"
	"errors"
	"testing"

	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
)

func TestNotifyPushesToTarget(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)
	e.addUser(t, "bob", nil)
	b1 := e.connect(t, "bob")

	n, err := e.notify.Notify(ctx, NotifyInput{UserID: "bob", FromUserID: "alice", Type: models.NotifyFollow, Content: "followed you"})
	if err != nil {
		t.Fatal(err)
	}
	if n.FromUser == nil || n.FromUser.Username != "alice" {
		t.Fatalf("FromUser = %+v", n.FromUser)
	}
	if got := eventNames(t, b1); len(got) != 1 || got[0] != realtime.EventNotificationNew {
		t.Fatalf("events = %v", got)
	}
}

func TestNotifyRejectsInvalid(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name string
		in   NotifyInput
	}{
		{"missing user", NotifyInput{Type: models.NotifyLike}},
		{"missing type", NotifyInput{UserID: "bob"}},
		{"unknown type", NotifyInput{UserID: "bob", Type: "poke"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.notify.Notify(context.Background(), tt.in); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
	// Dispatch never surfaces the failure.
	e.notify.Dispatch(context.Background(), NotifyInput{})
}

func TestNotificationInbox(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "bob", nil)
	e.notify.now = steppingClock(e.notify.now())
	var ids []string
	for i := 0; i < 5; i++ {
		n, err := e.notify.Notify(ctx, NotifyInput{UserID: "bob", Type: models.NotifyLike})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, n.ID)
	}

	page, err := e.notify.List(ctx, "bob", 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || page.Unread != 5 || len(page.Notifications) != 2 {
		t.Fatalf("page = total %d unread %d len %d", page.Total, page.Unread, len(page.Notifications))
	}

	if _, err := e.notify.MarkRead(ctx, "alice", ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign mark read: err = %v", err)
	}
	read, err := e.notify.MarkRead(ctx, "bob", ids[0])
	if err != nil || !read.Read {
		t.Fatalf("MarkRead = %+v, %v", read, err)
	}
	if n, _ := e.notify.MarkAllRead(ctx, "bob"); n != 4 {
		t.Fatalf("MarkAllRead = %d, want 4", n)
	}
	if err := e.notify.Delete(ctx, "bob", ids[1]); err != nil {
		t.Fatal(err)
	}
	if n, _ := e.notify.DeleteAll(ctx, "bob"); n != 4 {
		t.Fatalf("DeleteAll = %d, want 4", n)
	}
}
