package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nexochat/hub-api/internal/dto"
	"github.com/nexochat/hub-api/internal/middleware"
	"github.com/nexochat/hub-api/internal/service"
	"github.com/nexochat/hub-api/internal/utils"
)

// RoomHandler exposes room reads gated by the password guard and the
// notification endpoint the room-metadata service calls after an edit.
type RoomHandler struct {
	messages  service.MessageService
	access    service.AccessService
	notifier  service.RoomNotifier
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoomHandler creates a room handler instance.
func NewRoomHandler(messages service.MessageService, access service.AccessService, notifier service.RoomNotifier, validate *validator.Validate, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		messages:  messages,
		access:    access,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register binds room routes under the provided router group.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Get("/rooms/:roomID/messages", h.history)
	router.Get("/rooms/:roomID/access", h.accessState)
	router.Post("/rooms/:roomID/updated", h.roomUpdated)
}

func (h *RoomHandler) history(c *fiber.Ctx) error {
	roomID := c.Params("roomID")
	requesterID := middleware.UserIDFromLocals(c.Locals("user_id"))
	if requesterID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user identity missing")
	}

	messages, err := h.messages.GetHistory(h.requestContext(c), roomID, requesterID, c.Query("password"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomLocked):
			return utils.SendError(c, fiber.StatusForbidden, "incorrect room password")
		case errors.Is(err, service.ErrRoomNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "room not found")
		default:
			return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	return utils.SendSuccess(c, "room history", messages)
}

func (h *RoomHandler) accessState(c *fiber.Ctx) error {
	roomID := c.Params("roomID")

	state, err := h.access.RoomAccessState(h.requestContext(c), roomID, c.Query("password"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "room not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "room access state", dto.AccessStateResponse{
		RoomID: roomID,
		State:  string(state),
	})
}

func (h *RoomHandler) roomUpdated(c *fiber.Ctx) error {
	roomID := c.Params("roomID")

	var req dto.RoomUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	event, err := h.notifier.NotifyRoomUpdated(h.requestContext(c), roomID, req)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "room not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "room update broadcast", event)
}

func (h *RoomHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
