package services

import (
	"context"

	"nightcircle/internal/models"
	"nightcircle/internal/store"
)

// OnlineChecker answers whether a user has a live connection.
type OnlineChecker interface {
	IsUserOnline(userID string) bool
}

type UserService struct {
	users  store.Users
	online OnlineChecker
}

func NewUserService(users store.Users, online OnlineChecker) *UserService {
	return &UserService{users: users, online: online}
}

// Profile returns the user with live presence folded in.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	if s.online != nil {
		u.Online = s.online.IsUserOnline(userID)
	}
	return u, nil
}

// SetVisible toggles whether the user shows up in nearby searches.
func (s *UserService) SetVisible(ctx context.Context, userID string, visible bool) (*models.User, error) {
	if err := s.users.SetVisible(ctx, userID, visible); err != nil {
		return nil, storeErr("update visibility", err)
	}
	return s.Profile(ctx, userID)
}
