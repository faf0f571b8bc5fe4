package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/models"
	"github.com/nexochat/hub-api/internal/repository"
)

// AccessState is the outcome of a room password check.
type AccessState string

const (
	AccessOpen   AccessState = "open"
	AccessLocked AccessState = "locked"
)

// CheckAccess evaluates the password gate for a room. A room with no secret
// is always open; a room with one is open only on an exact match. Access is
// re-evaluated on every read, there is no memorized unlock.
func CheckAccess(room models.Room, suppliedSecret string) AccessState {
	if !room.Locked() {
		return AccessOpen
	}

	if subtle.ConstantTimeCompare([]byte(room.Password), []byte(suppliedSecret)) == 1 {
		return AccessOpen
	}

	return AccessLocked
}

// AccessService resolves room records and applies the password gate.
type AccessService interface {
	// RoomAccessState looks the room up and evaluates the gate.
	RoomAccessState(ctx context.Context, roomID, suppliedSecret string) (AccessState, error)
	// AuthorizeRead returns the room when the gate is open, ErrRoomLocked otherwise.
	AuthorizeRead(ctx context.Context, roomID, suppliedSecret string) (models.Room, error)
}

type accessService struct {
	rooms  repository.RoomRepository
	logger zerolog.Logger
}

// NewAccessService creates the room access guard.
func NewAccessService(rooms repository.RoomRepository, logger zerolog.Logger) AccessService {
	return &accessService{
		rooms:  rooms,
		logger: logger.With().Str("component", "access_service").Logger(),
	}
}

func (s *accessService) RoomAccessState(ctx context.Context, roomID, suppliedSecret string) (AccessState, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AccessLocked, ErrRoomNotFound
		}
		return AccessLocked, err
	}

	return CheckAccess(room, suppliedSecret), nil
}

func (s *accessService) AuthorizeRead(ctx context.Context, roomID, suppliedSecret string) (models.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Room{}, ErrRoomNotFound
		}
		return models.Room{}, err
	}

	if CheckAccess(room, suppliedSecret) == AccessLocked {
		s.logger.Debug().Str("room_id", roomID).Msg("room read rejected by password gate")
		return models.Room{}, ErrRoomLocked
	}

	return room, nil
}
