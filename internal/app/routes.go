package app

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nightcircle/internal/handlers"
	"nightcircle/internal/realtime"
)

func (s *Server) routes() {
	app := s.app

	app.Get("/health", s.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Public Routes
	api.Post("/register", handlers.RegisterHandler(s.auth))
	api.Post("/login", handlers.LoginHandler(s.auth))

	// Protected Routes
	protected := api.Group("/", handlers.AuthMiddleware(s.auth))

	users := protected.Group("/users")
	users.Get("/me", handlers.GetProfileHandler(s.users))
	users.Put("/visibility", handlers.UpdateVisibilityHandler(s.users))
	users.Put("/location", handlers.UpdateLocationHandler(s.geo))
	users.Get("/nearby", handlers.NearbyUsersHandler(s.users, s.geo))
	users.Get("/online", handlers.OnlineUsersHandler(s.presence))

	groups := protected.Group("/groups")
	groups.Get("/", handlers.ListGroupsHandler(s.users, s.geo))
	groups.Post("/:id/join", handlers.JoinGroupHandler(s.geo))
	groups.Post("/:id/leave", handlers.LeaveGroupHandler(s.geo))
	groups.Get("/:id/messages", handlers.GroupMessagesHandler(s.chat))

	messages := protected.Group("/messages")
	messages.Post("/private", handlers.SendPrivateHandler(s.chat))
	messages.Get("/private/:userId", handlers.PrivateHistoryHandler(s.chat))
	messages.Get("/conversations", handlers.ConversationsHandler(s.chat))
	messages.Put("/:id/status", handlers.UpdateMessageStatusHandler(s.chat))
	messages.Post("/:id/reactions", handlers.ReactHandler(s.chat))
	messages.Delete("/:id", handlers.DeleteMessageHandler(s.chat))

	notifications := protected.Group("/notifications")
	notifications.Get("/", handlers.ListNotificationsHandler(s.notify))
	notifications.Put("/read-all", handlers.MarkAllNotificationsReadHandler(s.notify))
	notifications.Put("/:id/read", handlers.MarkNotificationReadHandler(s.notify))
	notifications.Delete("/", handlers.DeleteAllNotificationsHandler(s.notify))
	notifications.Delete("/:id", handlers.DeleteNotificationHandler(s.notify))

	statuses := protected.Group("/statuses")
	statuses.Post("/", handlers.CreateStatusHandler(s.statuses))
	statuses.Get("/nearby", handlers.NearbyStatusesHandler(s.users, s.statuses))
	statuses.Get("/:id", handlers.GetStatusHandler(s.statuses))
	statuses.Post("/:id/view", handlers.ViewStatusHandler(s.statuses))
	statuses.Delete("/:id", handlers.DeleteStatusHandler(s.statuses))

	night := protected.Group("/night")
	night.Post("/enter", handlers.EnterNightHandler(s.night))
	night.Post("/exit", handlers.ExitNightHandler(s.night))
	night.Get("/status", handlers.NightStatusHandler(s.night))
	night.Get("/time", handlers.NightTimeHandler(s.night))
	night.Post("/rooms", handlers.CreateRoomHandler(s.night))
	night.Get("/rooms", handlers.ListRoomsHandler(s.night))
	night.Get("/rooms/:id", handlers.RoomDetailsHandler(s.night))
	night.Post("/rooms/:id/join", handlers.RequestJoinHandler(s.night))
	night.Post("/rooms/:id/approve", handlers.ApproveJoinHandler(s.night))
	night.Get("/rooms/:id/comments", handlers.ListCommentsHandler(s.night))
	night.Post("/rooms/:id/comments", handlers.PostCommentHandler(s.night))
	night.Get("/rooms/:id/can-send-media", handlers.CanSendMediaHandler(s.night))

	protected.Post("/uploads", handlers.UploadHandler(handlers.UploadConfig{
		Dir:     s.cfg.UploadDir,
		BaseURL: s.cfg.BaseURL,
	}))

	// WebSocket Route
	// WSUpgradeMiddleware rejects plain HTTP before the token is checked.
	dispatcher := handlers.NewDispatcher(s.presence, s.chat, s.hub)
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware(s.auth))
	app.Get("/ws", handlers.WebSocketHandler(s.presence, dispatcher, realtime.ClientOptions{
		QueueSize:     256,
		RatePerSecond: s.cfg.WSRateLimit,
		Burst:         s.cfg.WSRateBurst,
	}))
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{
		"status":      "ok",
		"onlineUsers": len(s.hub.OnlineUserIDs()),
	})
}
