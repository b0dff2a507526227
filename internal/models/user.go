package models

import (
	"strings"
	"time"
)

// Point is a WGS84 coordinate. On the wire it is GeoJSON-ordered [lng, lat].
type Point struct {
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
}

type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Name               string     `json:"name,omitempty"`
	PasswordHash       string     `json:"-"`
	Location           *Point     `json:"location,omitempty"`
	Visible            bool       `json:"visible"`
	Online             bool       `json:"isOnline"`
	InNightMode        bool       `json:"isInNightMode"`
	NightModeEnteredAt *time.Time `json:"nightModeEnteredAt,omitempty"`
	LastNightModeExit  *time.Time `json:"lastNightModeExit,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// UserInfo is the profile snippet embedded in envelopes and notifications.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (u *User) Info() UserInfo {
	if u == nil {
		return UserInfo{}
	}
	return UserInfo{ID: u.ID, Username: u.Username, Name: u.Name}
}

// NearbyUser is a user returned by a radius query together with its distance.
type NearbyUser struct {
	UserInfo
	Online         bool    `json:"isOnline"`
	Visible        bool    `json:"-"`
	DistanceMeters float64 `json:"distanceMeters"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name" validate:"max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// Handshake is the transport-independent view of a connection attempt.
type Handshake struct {
	Headers map[string]string
	Auth    map[string]string
}

// Header does a case-insensitive header lookup.
func (h Handshake) Header(name string) string {
	if v, ok := h.Headers[name]; ok {
		return v
	}
	for k, v := range h.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
