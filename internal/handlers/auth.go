package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/models"
	"nightcircle/internal/services"
)

func RegisterHandler(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
		res, err := auth.Register(c.Context(), req)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

func LoginHandler(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
		res, err := auth.Login(c.Context(), req)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(res)
	}
}
