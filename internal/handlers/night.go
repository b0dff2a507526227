package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/services"
)

func EnterNightHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := night.Enter(c.Context(), currentUser(c))
		if errors.Is(err, services.ErrNightModeClosed) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":    "Night mode is only available between 22:00 and 03:30",
				"timeInfo": night.Time(),
			})
		}
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(st)
	}
}

func ExitNightHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := night.Exit(c.Context(), currentUser(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(st)
	}
}

func NightStatusHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := night.Status(c.Context(), currentUser(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(st)
	}
}

func NightTimeHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(night.Time())
	}
}
