package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/models"
	"nightcircle/internal/services"
)

// GetProfileHandler returns the authenticated user's profile.
func GetProfileHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := users.Profile(c.Context(), currentUser(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(u)
	}
}

// UpdateVisibilityHandler hides or shows the user in nearby searches.
func UpdateVisibilityHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Visible *bool `json:"visible"`
		}
		if err := c.BodyParser(&body); err != nil || body.Visible == nil {
			return badRequest(c, "visible is required")
		}
		u, err := users.SetVisible(c.Context(), currentUser(c), *body.Visible)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(u)
	}
}

// UpdateLocationHandler stores the user's position and reconciles group
// membership around it.
func UpdateLocationHandler(geoSvc *services.GeoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		}
		if err := c.BodyParser(&body); err != nil || body.Lat == nil || body.Lng == nil {
			return badRequest(c, "lat and lng are required")
		}
		res, err := geoSvc.UpdateLocation(c.Context(), currentUser(c), models.Point{Lat: *body.Lat, Lng: *body.Lng})
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(res)
	}
}

// NearbyUsersHandler lists visible users around ?lat&lng, or around the
// caller's last known location.
func NearbyUsersHandler(users *services.UserService, geoSvc *services.GeoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := resolvePoint(c, users)
		if err != nil {
			return httpError(c, err)
		}
		nearby, err := geoSvc.NearbyUsers(c.Context(), currentUser(c), p)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"users": nearby, "count": len(nearby)})
	}
}

func OnlineUsersHandler(presence *services.PresenceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"users": presence.OnlineUsers()})
	}
}

// resolvePoint prefers explicit coordinates over the stored location.
func resolvePoint(c *fiber.Ctx, users *services.UserService) (models.Point, error) {
	p, ok, err := queryPoint(c)
	if err != nil {
		return p, &services.ValidationError{Reason: "invalid coordinates"}
	}
	if ok {
		return p, nil
	}
	u, err := users.Profile(c.Context(), currentUser(c))
	if err != nil {
		return p, err
	}
	if u.Location == nil {
		return p, &services.ValidationError{Reason: "lat and lng are required"}
	}
	return *u.Location, nil
}
