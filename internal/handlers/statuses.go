package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/services"
)

func CreateStatusHandler(statuses *services.StatusService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.CreateStatusInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request")
		}
		st, err := statuses.Create(c.Context(), currentUser(c), in)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(st)
	}
}

func NearbyStatusesHandler(users *services.UserService, statuses *services.StatusService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := resolvePoint(c, users)
		if err != nil {
			return httpError(c, err)
		}
		list, err := statuses.ListNearby(c.Context(), currentUser(c), p)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(list)
	}
}

func GetStatusHandler(statuses *services.StatusService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := statuses.Get(c.Context(), currentUser(c), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(st)
	}
}

func ViewStatusHandler(statuses *services.StatusService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		added, err := statuses.RecordView(c.Context(), c.Params("id"), currentUser(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"recorded": added})
	}
}

func DeleteStatusHandler(statuses *services.StatusService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := statuses.Delete(c.Context(), currentUser(c), c.Params("id")); err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Status deleted"})
	}
}
