package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/models"
	"nightcircle/internal/services"
)

// SendPrivateHandler is the REST twin of the private:message event. Every
// live connection of the sender receives private:message:sent.
func SendPrivateHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.SendPrivateInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request")
		}
		in.SenderID = currentUser(c)
		env, err := chat.SendPrivate(c.Context(), in)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(env)
	}
}

func PrivateHistoryHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		msgs, err := chat.PrivateHistory(c.Context(), currentUser(c), c.Params("userId"), c.QueryInt("limit", 0))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(msgs)
	}
}

func ConversationsHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		convs, err := chat.Conversations(c.Context(), currentUser(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(convs)
	}
}

func UpdateMessageStatusHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Status models.MessageStatus `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request")
		}
		if err := chat.UpdateStatus(c.Context(), currentUser(c), c.Params("id"), body.Status); err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"messageId": c.Params("id"), "status": body.Status})
	}
}

func ReactHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Emoji models.Emoji `json:"emoji"`
		}
		if err := c.BodyParser(&body); err != nil || body.Emoji == "" {
			return badRequest(c, "emoji is required")
		}
		update, err := chat.ToggleReaction(c.Context(), currentUser(c), c.Params("id"), body.Emoji)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(update)
	}
}

func DeleteMessageHandler(chat *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := chat.DeleteMessage(c.Context(), currentUser(c), c.Params("id")); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
