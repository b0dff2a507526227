package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/services"
)

func ListNotificationsHandler(notify *services.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := notify.List(c.Context(), currentUser(c), c.QueryInt("limit", 0), c.QueryInt("skip", 0))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(page)
	}
}

func MarkNotificationReadHandler(notify *services.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := notify.MarkRead(c.Context(), currentUser(c), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(n)
	}
}

func MarkAllNotificationsReadHandler(notify *services.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := notify.MarkAllRead(c.Context(), currentUser(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"updated": n})
	}
}

func DeleteNotificationHandler(notify *services.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := notify.Delete(c.Context(), currentUser(c), c.Params("id")); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func DeleteAllNotificationsHandler(notify *services.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := notify.DeleteAll(c.Context(), currentUser(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"deleted": n})
	}
}
