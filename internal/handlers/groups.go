package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/services"
)

// ListGroupsHandler returns the nearest group of each tier around the caller.
func ListGroupsHandler(users *services.UserService, geoSvc *services.GeoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := resolvePoint(c, users)
		if err != nil {
			return httpError(c, err)
		}
		groups, err := geoSvc.ListAvailableGroups(c.Context(), currentUser(c), p)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"groups": groups})
	}
}

func JoinGroupHandler(geoSvc *services.GeoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		already, err := geoSvc.JoinGroup(c.Context(), currentUser(c), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		msg := "Joined group"
		if already {
			msg = "Already a member"
		}
		return c.JSON(fiber.Map{"message": msg, "groupId": c.Params("id")})
	}
}

func LeaveGroupHandler(geoSvc *services.GeoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := geoSvc.LeaveGroup(c.Context(), currentUser(c), c.Params("id")); err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Left group", "groupId": c.Params("id")})
	}
}

func GroupMessagesHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		msgs, err := chat.GroupHistory(c.Context(), currentUser(c), c.Params("id"), c.QueryInt("limit", 0))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(msgs)
	}
}
