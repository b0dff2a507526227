package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"nightcircle/internal/logging"
	"nightcircle/internal/models"
	"nightcircle/internal/realtime"
	"nightcircle/internal/services"
	"nightcircle/internal/utils"
)

type connectedPayload struct {
	UserID  string `json:"userId"`
	ConnID  string `json:"connId"`
	Message string `json:"message"`
}

// WebSocketHandler serves one authenticated connection: a writer goroutine
// drains the client's queue while this goroutine reads inbound frames.
func WebSocketHandler(presence *services.PresenceService, dispatcher *Dispatcher, opts realtime.ClientOptions) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(localUserID).(string)
		username, _ := conn.Locals(localUsername).(string)
		client := realtime.NewClient(userID, username, opts)
		ctx := context.Background()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			if err := client.WritePump(conn); err != nil {
				logging.Debug().Err(err).Str("conn_id", client.ID).Msg("websocket write failed")
			}
		}()

		defer func() {
			presence.Disconnect(ctx, client.ID)
			client.Close()
			<-writerDone
			_ = conn.Close()
		}()

		if err := presence.Connect(ctx, client); err != nil {
			utils.LogError(err, "WebSocketHandler Connect")
		}
		dispatcher.emitter.EmitConn(client.ID, realtime.EventConnected, connectedPayload{
			UserID:  userID,
			ConnID:  client.ID,
			Message: "Welcome to nightcircle",
		})

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logging.Warn().Err(err).Str("conn_id", client.ID).Msg("websocket closed unexpectedly")
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}
			select {
			case <-client.Done():
				return
			default:
			}
			dispatcher.Handle(ctx, client, msg)
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests to the websocket route.
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT from the Authorization header, the
// token/access_token query parameter or the access_token cookie.
func AuthMiddleware(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			token = c.Query("access_token")
		}
		h := models.Handshake{
			Headers: map[string]string{
				"Authorization": c.Get(fiber.HeaderAuthorization),
				"Cookie":        c.Get(fiber.HeaderCookie),
			},
			Auth: map[string]string{"token": token},
		}

		id, err := auth.Identify(h)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		c.Locals(localUserID, id.UserID)
		c.Locals(localUsername, id.Username)
		return c.Next()
	}
}
