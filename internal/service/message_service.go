package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/dto"
	"github.com/nexochat/hub-api/internal/models"
	"github.com/nexochat/hub-api/internal/observability"
	"github.com/nexochat/hub-api/internal/repository"
)

// MessageService persists, broadcasts and tiers deletion of room messages.
type MessageService interface {
	Send(ctx context.Context, senderID string, req dto.SendMessageRequest) (dto.MessageResponse, error)
	Delete(ctx context.Context, actorID string, messageID uint) error
	Hide(ctx context.Context, userID string, messageID uint) error
	History(ctx context.Context, roomID, requesterID string) ([]dto.MessageResponse, error)
	GetHistory(ctx context.Context, roomID, requesterID, suppliedSecret string) ([]dto.MessageResponse, error)
}

type messageService struct {
	messages  repository.MessageRepository
	users     repository.UserRepository
	rooms     repository.RoomRepository
	access    AccessService
	sink      EventSink
	cache     MessageCache
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	locks     *keyedMutex
}

// NewMessageService creates the message lifecycle manager. cache may be nil.
func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	rooms repository.RoomRepository,
	access AccessService,
	sink EventSink,
	cache MessageCache,
	validate *validator.Validate,
	logger zerolog.Logger,
) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &messageService{
		messages:  messages,
		users:     users,
		rooms:     rooms,
		access:    access,
		sink:      sink,
		cache:     cache,
		validator: validate,
		sanitizer: sanitizer,
		logger:    logger.With().Str("component", "message_service").Logger(),
		tracer:    otel.Tracer("github.com/nexochat/hub-api/internal/service/message"),
		locks:     newKeyedMutex(),
	}
}

func (s *messageService) Send(ctx context.Context, senderID string, req dto.SendMessageRequest) (dto.MessageResponse, error) {
	req.RoomID = strings.TrimSpace(req.RoomID)
	req.AttachmentRef = strings.TrimSpace(req.AttachmentRef)

	if err := s.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	kind := models.MessageKind(req.Kind)
	if kind == "" {
		kind = models.MessageKindText
	}

	content := req.Content
	if kind == models.MessageKindText {
		content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	}

	if content == "" && req.AttachmentRef == "" {
		return dto.MessageResponse{}, ErrEmptyMessage
	}
	if kind.RequiresAttachment() && req.AttachmentRef == "" {
		return dto.MessageResponse{}, ErrAttachmentRequired
	}
	if !kind.RequiresAttachment() && req.AttachmentRef != "" {
		return dto.MessageResponse{}, ErrUnexpectedAttachment
	}

	room, err := s.rooms.GetByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrRoomNotFound
		}
		return dto.MessageResponse{}, err
	}

	// A locked room accepts sends only from members; membership implies the
	// external room service verified the secret when the user joined.
	if room.Locked() {
		member, err := s.rooms.IsMember(ctx, room.ID, senderID)
		if err != nil {
			return dto.MessageResponse{}, err
		}
		if !member {
			return dto.MessageResponse{}, ErrRoomLocked
		}
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrSenderNotFound
		}
		return dto.MessageResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "message.send", trace.WithAttributes(
		attribute.String("hub.room_id", req.RoomID),
		attribute.String("hub.sender_id", senderID),
		attribute.String("hub.kind", string(kind)),
	))
	defer span.End()

	model := models.Message{
		RoomID:        req.RoomID,
		SenderID:      senderID,
		Content:       content,
		Kind:          kind,
		AttachmentRef: req.AttachmentRef,
		Tier:          models.TierVisible,
	}

	if err := s.messages.Save(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	// Sender display fields are resolved now, at send time, so every
	// receiver renders the same snapshot.
	response := dto.NewMessageResponse(model, sender.Username, sender.Avatar)
	if s.cache != nil {
		s.cache.StoreLastMessage(spanCtx, response)
	}
	s.sink.BroadcastRoom(spanCtx, req.RoomID, dto.EventReceiveMessage, response)

	observability.HubMessagesSent().WithLabelValues(string(kind)).Inc()

	return response, nil
}

// Delete applies the three-tier policy: a non-sender hides the message for
// themselves only; the sender soft deletes a visible message and hard deletes
// an already soft-deleted one.
func (s *messageService) Delete(ctx context.Context, actorID string, messageID uint) error {
	s.locks.Lock(messageID)
	defer s.locks.Unlock(messageID)

	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().Uint("message_id", messageID).Msg("delete of missing message ignored")
			return ErrMessageNotFound
		}
		return err
	}

	if actorID != message.SenderID {
		return s.hideLocked(ctx, actorID, message)
	}

	switch message.Tier {
	case models.TierVisible:
		if err := s.messages.MarkDeleted(ctx, messageID); err != nil {
			return err
		}
		s.sink.BroadcastRoom(ctx, message.RoomID, dto.EventMessageDeleted, dto.MessageDeletedEvent{
			MessageID: messageID,
			RoomID:    message.RoomID,
		})
	default:
		if err := s.messages.Delete(ctx, messageID); err != nil {
			return err
		}
		s.sink.BroadcastRoom(ctx, message.RoomID, dto.EventMessageGone, dto.MessageGoneEvent{
			MessageID: messageID,
			RoomID:    message.RoomID,
		})
	}

	return nil
}

func (s *messageService) Hide(ctx context.Context, userID string, messageID uint) error {
	s.locks.Lock(messageID)
	defer s.locks.Unlock(messageID)

	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	return s.hideLocked(ctx, userID, message)
}

// hideLocked inserts the per-user tombstone and notifies only that user's
// connections. Callers must hold the message lock.
func (s *messageService) hideLocked(ctx context.Context, userID string, message models.Message) error {
	if err := s.messages.Hide(ctx, userID, message.ID); err != nil {
		return err
	}

	s.sink.SendToUser(ctx, userID, dto.EventMessageHidden, dto.MessageHiddenEvent{MessageID: message.ID})
	return nil
}

func (s *messageService) History(ctx context.Context, roomID, requesterID string) ([]dto.MessageResponse, error) {
	rows, err := s.messages.ListVisible(ctx, roomID, requesterID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.MessageResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, dto.MessageResponse{
			ID:            row.ID,
			RoomID:        row.RoomID,
			SenderID:      row.SenderID,
			Content:       row.Content,
			Kind:          string(row.Kind),
			AttachmentRef: row.AttachmentRef,
			IsDeleted:     row.Tier == models.TierDeleted,
			Username:      row.Username,
			Avatar:        row.Avatar,
			CreatedAt:     row.CreatedAt,
		})
	}

	return responses, nil
}

// GetHistory re-evaluates the password gate on every call before reading.
func (s *messageService) GetHistory(ctx context.Context, roomID, requesterID, suppliedSecret string) ([]dto.MessageResponse, error) {
	if _, err := s.access.AuthorizeRead(ctx, roomID, suppliedSecret); err != nil {
		return nil, err
	}

	return s.History(ctx, roomID, requesterID)
}
