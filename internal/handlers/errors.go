package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/logging"
	"nightcircle/internal/services"
)

var publicErrors = []struct {
	err    error
	status int
}{
	{services.ErrUnauthenticated, fiber.StatusUnauthorized},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrForbidden, fiber.StatusForbidden},
	{services.ErrNotMember, fiber.StatusForbidden},
	{services.ErrNightModeClosed, fiber.StatusForbidden},
	{services.ErrNotFound, fiber.StatusNotFound},
	{services.ErrUserExists, fiber.StatusConflict},
	{services.ErrAlreadyReacted, fiber.StatusConflict},
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, services.ErrValidation) {
		return fiber.StatusBadRequest
	}
	for _, pe := range publicErrors {
		if errors.Is(err, pe.err) {
			return pe.status
		}
	}
	return fiber.StatusInternalServerError
}

// publicMessage is the error text safe to show a client.
func publicMessage(err error) string {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	for _, pe := range publicErrors {
		if errors.Is(err, pe.err) {
			return pe.err.Error()
		}
	}
	return "internal server error"
}

func httpError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logging.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": publicMessage(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// ErrorHandler renders errors that escape handlers, including fiber's own.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return httpError(c, err)
}
