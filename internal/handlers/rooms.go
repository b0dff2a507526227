package handlers

import (
	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/services"
)

func CreateRoomHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.CreateRoomInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request")
		}
		room, err := night.CreateRoom(c.Context(), currentUser(c), in)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(room)
	}
}

func ListRoomsHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rooms, err := night.ListRooms(c.Context())
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(rooms)
	}
}

func RoomDetailsHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := night.Details(c.Context(), currentUser(c), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(d)
	}
}

var joinMessages = map[services.JoinState]string{
	services.JoinRequested: "Join request sent",
	services.JoinPending:   "Request pending",
	services.JoinJoined:    "Already joined",
}

func RequestJoinHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state, err := night.RequestJoin(c.Context(), currentUser(c), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"message": joinMessages[state], "state": state})
	}
}

func ApproveJoinHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request")
		}
		room, err := night.Approve(c.Context(), currentUser(c), c.Params("id"), body.UserID)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(room)
	}
}

func ListCommentsHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		comments, err := night.ListComments(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(comments)
	}
}

func PostCommentHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.PostCommentInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request")
		}
		comment, err := night.PostComment(c.Context(), currentUser(c), c.Params("id"), in)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	}
}

func CanSendMediaHandler(night *services.NightService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := night.CanSendMedia(c.Context(), currentUser(c), c.Params("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"canSendMedia": ok})
	}
}
