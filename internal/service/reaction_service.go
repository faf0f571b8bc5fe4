package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/dto"
	"github.com/nexochat/hub-api/internal/models"
	"github.com/nexochat/hub-api/internal/repository"
)

// ReactionService toggles and aggregates per-message reactions.
type ReactionService interface {
	Toggle(ctx context.Context, userID string, req dto.ToggleReactionRequest) (dto.ReactionUpdatedEvent, error)
}

type reactionService struct {
	reactions repository.ReactionRepository
	messages  repository.MessageRepository
	sink      EventSink
	validator *validator.Validate
	logger    zerolog.Logger
	locks     *keyedMutex
}

// NewReactionService creates the reaction manager.
func NewReactionService(
	reactions repository.ReactionRepository,
	messages repository.MessageRepository,
	sink EventSink,
	validate *validator.Validate,
	logger zerolog.Logger,
) ReactionService {
	return &reactionService{
		reactions: reactions,
		messages:  messages,
		sink:      sink,
		validator: validate,
		logger:    logger.With().Str("component", "reaction_service").Logger(),
		locks:     newKeyedMutex(),
	}
}

// Toggle removes the (message, user, emoji) triple when present and inserts
// it otherwise, then broadcasts the full recomputed aggregate. Replaying the
// same toggle twice restores the previous state, so duplicates are never an
// error.
func (s *reactionService) Toggle(ctx context.Context, userID string, req dto.ToggleReactionRequest) (dto.ReactionUpdatedEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReactionUpdatedEvent{}, err
	}

	s.locks.Lock(req.MessageID)
	defer s.locks.Unlock(req.MessageID)

	message, err := s.messages.GetByID(ctx, req.MessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReactionUpdatedEvent{}, ErrMessageNotFound
		}
		return dto.ReactionUpdatedEvent{}, err
	}

	if _, err := s.reactions.Toggle(ctx, req.MessageID, userID, req.Emoji); err != nil {
		return dto.ReactionUpdatedEvent{}, err
	}

	rows, err := s.reactions.ListByMessage(ctx, req.MessageID)
	if err != nil {
		return dto.ReactionUpdatedEvent{}, err
	}

	event := dto.ReactionUpdatedEvent{
		MessageID: req.MessageID,
		RoomID:    message.RoomID,
		Reactions: aggregateReactions(rows),
	}

	s.sink.BroadcastRoom(ctx, message.RoomID, dto.EventReactionUpdated, event)
	return event, nil
}

// aggregateReactions groups reactions by emoji in first-seen order.
func aggregateReactions(rows []models.Reaction) []dto.ReactionAggregate {
	order := make([]string, 0)
	buckets := make(map[string]*dto.ReactionAggregate)

	for _, row := range rows {
		bucket, ok := buckets[row.Emoji]
		if !ok {
			bucket = &dto.ReactionAggregate{Emoji: row.Emoji}
			buckets[row.Emoji] = bucket
			order = append(order, row.Emoji)
		}
		bucket.Count++
		bucket.UserIDs = append(bucket.UserIDs, row.UserID)
	}

	aggregates := make([]dto.ReactionAggregate, 0, len(order))
	for _, emoji := range order {
		aggregates = append(aggregates, *buckets[emoji])
	}
	return aggregates
}
