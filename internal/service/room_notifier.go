package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/dto"
	"github.com/nexochat/hub-api/internal/repository"
)

// RoomNotifier pushes room-metadata change events to joined connections on
// behalf of the external room service.
type RoomNotifier interface {
	NotifyRoomUpdated(ctx context.Context, roomID string, req dto.RoomUpdateRequest) (dto.RoomUpdatedEvent, error)
}

type roomNotifier struct {
	rooms     repository.RoomRepository
	sink      EventSink
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoomNotifier creates the membership notifier.
func NewRoomNotifier(rooms repository.RoomRepository, sink EventSink, validate *validator.Validate, logger zerolog.Logger) RoomNotifier {
	return &roomNotifier{
		rooms:     rooms,
		sink:      sink,
		validator: validate,
		logger:    logger.With().Str("component", "room_notifier").Logger(),
	}
}

func (s *roomNotifier) NotifyRoomUpdated(ctx context.Context, roomID string, req dto.RoomUpdateRequest) (dto.RoomUpdatedEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RoomUpdatedEvent{}, err
	}

	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoomUpdatedEvent{}, ErrRoomNotFound
		}
		return dto.RoomUpdatedEvent{}, err
	}

	event := dto.RoomUpdatedEvent{
		RoomID:      roomID,
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		UpdatedAt:   time.Now().UTC(),
	}

	s.sink.BroadcastRoom(ctx, roomID, dto.EventRoomUpdated, event)
	s.logger.Info().Str("room_id", roomID).Msg("room update broadcast")
	return event, nil
}
