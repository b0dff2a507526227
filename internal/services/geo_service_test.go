package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"nightcircle/internal/geo"
	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
)

// at returns the point meters due north of origin.
func at(meters float64) *models.Point {
	return &models.Point{Lat: origin.Lat + meters/geo.EarthRadius*180/math.Pi, Lng: origin.Lng}
}

func groupsByTier(t *testing.T, e *testEnv, userID string) map[models.Tier]models.Group {
	t.Helper()
	groups, err := e.store.GroupsForUser(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[models.Tier]models.Group, len(groups))
	for _, g := range groups {
		out[g.Tier] = g
	}
	return out
}

func TestUpdateLocationCreatesBothTiersOnce(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", nil)

	res, err := e.geo.UpdateLocation(ctx, "alice", origin)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 2 {
		t.Fatalf("created %d groups, want 2", len(res.Created))
	}
	for _, tier := range models.Tiers {
		name := geo.GroupName("DOW", "10001", tier)
		g, err := e.store.GetGroupByName(ctx, name)
		if err != nil {
			t.Fatalf("group %s: %v", name, err)
		}
		if !g.HasMember("alice") {
			t.Fatalf("alice missing from %s", name)
		}
	}

	res, err = e.geo.UpdateLocation(ctx, "alice", origin)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 0 {
		t.Fatalf("second update created %d groups", len(res.Created))
	}
}

func TestMovingOutOfNearTierKeepsFarTier(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", &origin)
	e.addUser(t, "bob", at(500))
	a1 := e.connect(t, "alice")
	b1 := e.connect(t, "bob")

	if _, err := e.geo.UpdateLocation(ctx, "alice", origin); err != nil {
		t.Fatal(err)
	}
	before := groupsByTier(t, e, "bob")
	if len(before) != 2 {
		t.Fatalf("bob in %d groups, want 2", len(before))
	}
	near := before[models.TierNear]
	if !e.hub.InChannel(realtime.GroupChannel(near.ID), b1.ID) {
		t.Fatal("bob's connection should be subscribed to the near group")
	}
	a1.Drain()
	b1.Drain()

	res, err := e.geo.UpdateLocation(ctx, "bob", *at(1500))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Left) != 1 || res.Left[0] != near.ID {
		t.Fatalf("left = %v, want [%s]", res.Left, near.ID)
	}
	after := groupsByTier(t, e, "bob")
	if _, ok := after[models.TierNear]; ok {
		t.Fatal("bob still in near group")
	}
	if _, ok := after[models.TierFar]; !ok {
		t.Fatal("bob dropped from far group")
	}
	if e.hub.InChannel(realtime.GroupChannel(near.ID), b1.ID) {
		t.Fatal("bob's connection still subscribed to the near group")
	}
	if n := count(eventNames(t, b1), realtime.EventGroupLeft); n != 1 {
		t.Fatalf("bob got %d group:left events", n)
	}
	if n := count(eventNames(t, a1), realtime.EventGroupMemberLeft); n != 1 {
		t.Fatalf("alice got %d group:member:left events", n)
	}
}

func TestReconcileMembershipBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		wantLeft []models.Tier
	}{
		{"inside both", 999, nil},
		{"outside near", 1001, []models.Tier{models.TierNear}},
		{"inside far edge", 1999, []models.Tier{models.TierNear}},
		{"outside both", 2001, []models.Tier{models.TierNear, models.TierFar}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEnv(t)
			e.addUser(t, "bob", &origin)
			ids := map[string]models.Tier{}
			for _, tier := range models.Tiers {
				g := &models.Group{Name: "G-" + string(tier), Tier: tier, Anchor: origin, Members: []string{"bob"}}
				if err := e.store.CreateGroup(ctx, g); err != nil {
					t.Fatal(err)
				}
				ids[g.ID] = tier
			}

			left, err := e.geo.ReconcileMembership(ctx, "bob", *at(tt.distance))
			if err != nil {
				t.Fatal(err)
			}
			if len(left) != len(tt.wantLeft) {
				t.Fatalf("left %d groups, want %d", len(left), len(tt.wantLeft))
			}
			for _, id := range left {
				found := false
				for _, want := range tt.wantLeft {
					if ids[id] == want {
						found = true
					}
				}
				if !found {
					t.Fatalf("unexpectedly left %s group", ids[id])
				}
			}
		})
	}
}

func TestJoinGroup(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "nowhere", nil)
	e.addUser(t, "far", at(1500))
	e.addUser(t, "close", at(300))
	g := &models.Group{Name: "G-1KM", Tier: models.TierNear, Anchor: origin}
	if err := e.store.CreateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	if _, err := e.geo.JoinGroup(ctx, "nowhere", g.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("no location: err = %v", err)
	}
	if _, err := e.geo.JoinGroup(ctx, "far", g.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("out of range: err = %v", err)
	}
	if _, err := e.geo.JoinGroup(ctx, "close", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing group: err = %v", err)
	}

	already, err := e.geo.JoinGroup(ctx, "close", g.ID)
	if err != nil || already {
		t.Fatalf("first join = %v, %v", already, err)
	}
	already, err = e.geo.JoinGroup(ctx, "close", g.ID)
	if err != nil || !already {
		t.Fatalf("second join = %v, %v", already, err)
	}

	if err := e.geo.LeaveGroup(ctx, "close", g.ID); err != nil {
		t.Fatal(err)
	}
	if member, _ := e.store.IsMember(ctx, g.ID, "close"); member {
		t.Fatal("still a member after leaving")
	}
}

func TestListAvailableGroups(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", &origin)
	if _, err := e.geo.UpdateLocation(ctx, "alice", origin); err != nil {
		t.Fatal(err)
	}

	listing, err := e.geo.ListAvailableGroups(ctx, "bob", *at(1500))
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 || listing[0].Tier != models.TierFar {
		t.Fatalf("listing = %+v, want only the far group", listing)
	}
	if listing[0].IsMember {
		t.Fatal("bob reported as member")
	}
}

func TestNearbyUsersHidesSelfAndInvisible(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "alice", &origin)
	e.addUser(t, "bob", at(100))
	e.addUser(t, "ghost", at(200))
	e.addUser(t, "remote", at(5000))
	if err := e.store.SetVisible(ctx, "ghost", false); err != nil {
		t.Fatal(err)
	}

	users, err := e.geo.NearbyUsers(ctx, "alice", origin)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].ID != "bob" {
		t.Fatalf("nearby = %+v, want only bob", users)
	}
	if users[0].DistanceMeters != 100 {
		t.Fatalf("distance = %v, want 100", users[0].DistanceMeters)
	}
}

func TestGeocoderFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.geo.resolver = geo.NewResolver(stubGeocoder{err: errors.New("upstream down")}, 0)
	e.addUser(t, "alice", nil)

	res, err := e.geo.UpdateLocation(ctx, "alice", origin)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 2 {
		t.Fatalf("created %d groups, want 2", len(res.Created))
	}
	for _, g := range res.Created {
		if g.AreaCode != geo.FallbackArea {
			t.Fatalf("area = %q, want %q", g.AreaCode, geo.FallbackArea)
		}
	}
}
