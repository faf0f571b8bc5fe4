package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/nexochat/hub-api/internal/middleware"
	"github.com/nexochat/hub-api/internal/service"
)

// HubHandler wires the websocket upgrade endpoint.
type HubHandler struct {
	service service.HubService
	logger  zerolog.Logger
}

// NewHubHandler creates a hub handler instance.
func NewHubHandler(service service.HubService, logger zerolog.Logger) *HubHandler {
	return &HubHandler{
		service: service,
		logger:  logger.With().Str("component", "hub_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *HubHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *HubHandler) handleConnection(conn *websocket.Conn) {
	userID := middleware.UserIDFromLocals(conn.Locals("user_id"))
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	correlation := middleware.UserIDFromLocals(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.HubConnectionOptions{
		UserID:        userID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", userID).Msg("hub websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", userID).Msg("hub websocket disconnected")
}
