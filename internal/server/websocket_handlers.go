package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"dailyshot/internal/contest"
	"dailyshot/internal/middleware"
	"dailyshot/internal/models"
	"dailyshot/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// upgradeOnly rejects plain HTTP requests to the live feed endpoint.
func (s *Server) upgradeOnly(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// WebSocketHandler serves the live contest feed. Anonymous viewers are allowed; a valid
// token only ties the connection to a user for per-user limits.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("live feed connection refused",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
			msg, _ := json.Marshal(fiber.Map{"type": "error", "payload": fiber.Map{"error": err.Error()}})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}

		hello, _ := json.Marshal(notifications.Event{
			Type:      "connected",
			Payload:   fiber.Map{"date": contest.Format(s.calendar.Today())},
			Timestamp: time.Now().UTC(),
		})
		client.TrySend(hello)

		go client.WritePump()
		client.ReadPump()
	})
}
