package models

import "time"

// Tier is a proximity radius bucket.
type Tier string

const (
	TierNear Tier = "1KM"
	TierFar  Tier = "2KM"
)

// Tiers lists every tier, nearest first.
var Tiers = []Tier{TierNear, TierFar}

// Radius returns the inclusive membership radius in meters.
func (t Tier) Radius() float64 {
	switch t {
	case TierNear:
		return 1000
	case TierFar:
		return 2000
	}
	return 0
}

func (t Tier) Valid() bool {
	return t == TierNear || t == TierFar
}

type Group struct {
	ID         string    `json:"id"`
	Name       string    `json:"groupName"`
	AreaCode   string    `json:"areaCode"`
	PostalCode string    `json:"pincode"`
	Tier       Tier      `json:"distanceRange"`
	Anchor     Point     `json:"location"`
	Members    []string  `json:"members,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// GroupListing is a nearby group as shown to a prospective member.
type GroupListing struct {
	ID             string `json:"id"`
	Name           string `json:"groupName"`
	AreaCode       string `json:"areaCode"`
	PostalCode     string `json:"pincode"`
	Tier           Tier   `json:"distanceRange"`
	DistanceMeters int    `json:"distanceMeters"`
	IsMember       bool   `json:"isMember"`
}
