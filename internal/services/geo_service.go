package services

import (
	"context"
	"errors"
	"math"

	"nightcircle/internal/geo"
	"nightcircle/internal/logging"
	"nightcircle/internal/metrics"
	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/store"
	"nightcircle/internal/utils"
)

// NearbyRadius bounds user and status discovery.
const NearbyRadius = 2000.0

// Broadcaster is an Emitter that can also move a user's connections in and
// out of channels.
type Broadcaster interface {
	realtime.Emitter
	JoinUser(channel, userID string)
	LeaveUser(channel, userID string)
}

// GeoService assigns users to proximity groups and keeps memberships
// within each group's radius.
type GeoService struct {
	users    store.Users
	groups   store.Groups
	resolver *geo.Resolver
	hub      Broadcaster
}

func NewGeoService(users store.Users, groups store.Groups, resolver *geo.Resolver, hub Broadcaster) *GeoService {
	return &GeoService{users: users, groups: groups, resolver: resolver, hub: hub}
}

// EnsureGroupsForLocation makes sure both tier groups exist for the area of
// p and adds every user within radius of each group's anchor. Returns the
// groups created by this call.
func (s *GeoService) EnsureGroupsForLocation(ctx context.Context, p models.Point) ([]models.Group, error) {
	area := s.resolver.Resolve(ctx, p)

	var created []models.Group
	for _, tier := range models.Tiers {
		g, isNew, err := s.findOrCreate(ctx, area, tier, p)
		if err != nil {
			return created, err
		}
		if isNew {
			created = append(created, *g)
		}

		if err := s.populate(ctx, g); err != nil {
			logging.Warn().Err(err).Str("group", g.Name).Msg("failed to populate group members")
		}
	}
	return created, nil
}

func (s *GeoService) findOrCreate(ctx context.Context, area geo.Area, tier models.Tier, p models.Point) (*models.Group, bool, error) {
	name := geo.GroupName(area.Code, area.PostalCode, tier)
	g, err := s.groups.GetGroupByName(ctx, name)
	if err == nil {
		return g, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, storeErr("find group", err)
	}

	g = &models.Group{
		Name:       name,
		AreaCode:   area.Code,
		PostalCode: area.PostalCode,
		Tier:       tier,
		Anchor:     p,
	}
	err = s.groups.CreateGroup(ctx, g)
	if errors.Is(err, store.ErrConflict) {
		// Lost a creation race; the other writer's group wins.
		g, err = s.groups.GetGroupByName(ctx, name)
		return g, false, storeErr("find group", err)
	}
	if err != nil {
		return nil, false, storeErr("create group", err)
	}
	metrics.GroupsCreated.WithLabelValues(string(tier)).Inc()
	logging.Info().Str("group", name).Bool("fallback", area.Fallback).Msg("group created")
	return g, true, nil
}

func (s *GeoService) populate(ctx context.Context, g *models.Group) error {
	nearby, err := s.users.UsersWithin(ctx, g.Anchor, g.Tier.Radius())
	if err != nil {
		return err
	}
	var added []string
	for _, u := range nearby {
		if !g.HasMember(u.ID) {
			added = append(added, u.ID)
		}
	}
	if len(added) == 0 {
		return nil
	}
	if err := s.groups.AddMembers(ctx, g.ID, added); err != nil {
		return err
	}
	g.Members = append(g.Members, added...)
	for _, id := range added {
		s.hub.JoinUser(realtime.GroupChannel(g.ID), id)
	}
	return nil
}

// ReconcileMembership removes userID from every group whose radius no
// longer covers p. Returns the ids of the groups left.
func (s *GeoService) ReconcileMembership(ctx context.Context, userID string, p models.Point) ([]string, error) {
	groups, err := s.groups.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load groups", err)
	}

	var left []string
	for _, g := range groups {
		if geo.InTier(g.Anchor, p, g.Tier) {
			continue
		}
		if err := s.groups.RemoveMember(ctx, g.ID, userID); err != nil {
			utils.LogError(err, "GeoService.ReconcileMembership RemoveMember")
			continue
		}
		channel := realtime.GroupChannel(g.ID)
		s.hub.Emit(channel, realtime.EventGroupMemberLeft, memberLeftPayload{GroupID: g.ID, UserID: userID})
		s.hub.Emit(realtime.UserChannel(userID), realtime.EventGroupLeft, groupPayload{GroupID: g.ID})
		s.hub.LeaveUser(channel, userID)

		metrics.MembersEvicted.Inc()
		left = append(left, g.ID)
	}
	return left, nil
}

type memberLeftPayload struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// LocationUpdate reports the side effects of a location change.
type LocationUpdate struct {
	Location models.Point   `json:"location"`
	Created  []models.Group `json:"createdGroups"`
	Left     []string       `json:"leftGroups"`
}

// UpdateLocation persists p, then grows groups around it and finally evicts
// the user from groups it moved out of.
func (s *GeoService) UpdateLocation(ctx context.Context, userID string, p models.Point) (*LocationUpdate, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	if err := s.users.UpdateLocation(ctx, userID, p); err != nil {
		return nil, storeErr("update location", err)
	}

	res := &LocationUpdate{Location: p, Created: []models.Group{}, Left: []string{}}
	created, err := s.EnsureGroupsForLocation(ctx, p)
	if err != nil {
		utils.LogError(err, "GeoService.UpdateLocation EnsureGroupsForLocation")
	}
	res.Created = append(res.Created, created...)

	left, err := s.ReconcileMembership(ctx, userID, p)
	if err != nil {
		return res, err
	}
	res.Left = append(res.Left, left...)
	return res, nil
}

// ListAvailableGroups returns the nearest group of each tier whose radius
// covers p, flagged with the caller's membership.
func (s *GeoService) ListAvailableGroups(ctx context.Context, userID string, p models.Point) ([]models.GroupListing, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	groups, err := s.groups.GroupsNear(ctx, p, models.TierFar.Radius())
	if err != nil {
		return nil, storeErr("list groups", err)
	}

	out := []models.GroupListing{}
	seen := make(map[models.Tier]bool, len(models.Tiers))
	for _, g := range groups {
		if seen[g.Tier] || !geo.InTier(g.Anchor, p, g.Tier) {
			continue
		}
		seen[g.Tier] = true
		out = append(out, models.GroupListing{
			ID:             g.ID,
			Name:           g.Name,
			AreaCode:       g.AreaCode,
			PostalCode:     g.PostalCode,
			Tier:           g.Tier,
			DistanceMeters: int(math.Round(geo.Distance(p, g.Anchor))),
			IsMember:       g.HasMember(userID),
		})
		if len(seen) == len(models.Tiers) {
			break
		}
	}
	return out, nil
}

// JoinGroup adds userID when its last location is inside the group's
// radius. Returns true if the user already was a member.
func (s *GeoService) JoinGroup(ctx context.Context, userID, groupID string) (bool, error) {
	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return false, storeErr("load group", err)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return false, storeErr("load user", err)
	}
	if user.Location == nil {
		return false, invalid("user location required")
	}
	if !geo.InTier(g.Anchor, *user.Location, g.Tier) {
		return false, ErrForbidden
	}
	if g.HasMember(userID) {
		return true, nil
	}
	if err := s.groups.AddMembers(ctx, groupID, []string{userID}); err != nil {
		return false, storeErr("join group", err)
	}
	s.hub.JoinUser(realtime.GroupChannel(groupID), userID)
	return false, nil
}

func (s *GeoService) LeaveGroup(ctx context.Context, userID, groupID string) error {
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		return storeErr("load group", err)
	}
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return storeErr("leave group", err)
	}
	s.hub.LeaveUser(realtime.GroupChannel(groupID), userID)
	return nil
}

// NearbyUsers lists visible users within NearbyRadius of p, excluding the
// caller.
func (s *GeoService) NearbyUsers(ctx context.Context, userID string, p models.Point) ([]models.NearbyUser, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	users, err := s.users.UsersWithin(ctx, p, NearbyRadius)
	if err != nil {
		return nil, storeErr("nearby users", err)
	}
	out := make([]models.NearbyUser, 0, len(users))
	for _, u := range users {
		if u.ID == userID || !u.Visible {
			continue
		}
		u.DistanceMeters = math.Round(u.DistanceMeters)
		out = append(out, u)
	}
	return out, nil
}
