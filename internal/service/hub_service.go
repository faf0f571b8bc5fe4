package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/nexochat/hub-api/internal/dto"
)

// HubConnectionOptions wraps metadata extracted during the HTTP upgrade.
type HubConnectionOptions struct {
	UserID        string
	CorrelationID string
	Context       context.Context
}

// HubService owns the websocket side of the hub: it registers connections and
// routes inbound frames to the domain services.
type HubService interface {
	ServeConnection(conn *websocket.Conn, opts HubConnectionOptions)
}

type hubService struct {
	registry  *Registry
	messages  MessageService
	reactions ReactionService
	calls     *CallService
	cache     MessageCache
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewHubService creates the connection front of the hub. cache may be nil.
func NewHubService(
	registry *Registry,
	messages MessageService,
	reactions ReactionService,
	calls *CallService,
	cache MessageCache,
	validate *validator.Validate,
	logger zerolog.Logger,
) HubService {
	return &hubService{
		registry:  registry,
		messages:  messages,
		reactions: reactions,
		calls:     calls,
		cache:     cache,
		validator: validate,
		logger:    logger.With().Str("component", "hub_service").Logger(),
	}
}

func (s *hubService) ServeConnection(conn *websocket.Conn, opts HubConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := NewClient(conn, opts.UserID, s.logger)
	s.registry.Register(client)

	go client.WriteLoop()
	s.readLoop(baseCtx, client)
}

func (s *hubService) readLoop(ctx context.Context, client *Client) {
	defer func() {
		client.Close()
		s.registry.Unregister(client)
	}()

	for {
		var frame dto.Frame
		if err := client.conn.ReadJSON(&frame); err != nil {
			s.logger.Debug().Err(err).Str("user_id", client.userID).Msg("read loop ended")
			return
		}

		if err := s.dispatch(ctx, client, frame); err != nil {
			s.logger.Warn().Err(err).Str("event", frame.Event).Str("user_id", client.userID).Msg("frame rejected")
			client.Deliver(dto.Event{Event: dto.EventError, Data: dto.ErrorEvent{
				Event:   frame.Event,
				Message: err.Error(),
			}})
		}
	}
}

func (s *hubService) dispatch(ctx context.Context, client *Client, frame dto.Frame) error {
	switch frame.Event {
	case dto.FrameRegisterUser:
		var req dto.RegisterUserRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		// Identity is bound at upgrade; re-registering is a no-op unless the
		// client claims someone else.
		if req.UserID != client.userID {
			return fmt.Errorf("identity mismatch: connection is bound to another user")
		}
		return nil

	case dto.FrameJoinRoom:
		var req dto.JoinRoomRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		s.registry.Join(client, req.RoomID)
		if s.cache != nil {
			if last := s.cache.LastMessage(ctx, req.RoomID); last != nil {
				client.Deliver(dto.Event{Event: dto.EventReceiveMessage, Data: *last})
			}
		}
		return nil

	case dto.FrameSendMessage:
		var req dto.SendMessageRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		_, err := s.messages.Send(ctx, client.userID, req)
		return err

	case dto.FrameDeleteMessage:
		var req dto.DeleteMessageRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		err := s.messages.Delete(ctx, client.userID, req.MessageID)
		if errors.Is(err, ErrMessageNotFound) {
			// Deleting a message that is already gone is a no-op.
			return nil
		}
		return err

	case dto.FrameHideMessage:
		var req dto.HideMessageRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		return s.messages.Hide(ctx, client.userID, req.MessageID)

	case dto.FrameToggleReaction:
		var req dto.ToggleReactionRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		_, err := s.reactions.Toggle(ctx, client.userID, req)
		return err

	case dto.FrameCallStart:
		var req dto.CallStartRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		return s.calls.Start(ctx, client.userID, req.ToUserID, req.IsVideo)

	case dto.FrameCallOffer:
		var req dto.CallSignalRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		return s.calls.Offer(ctx, client.userID, req.ToUserID, req.Payload)

	case dto.FrameCallAnswer:
		var req dto.CallSignalRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		return s.calls.Answer(ctx, client.userID, req.ToUserID, req.Payload)

	case dto.FrameCallCandidate:
		var req dto.CallSignalRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		return s.calls.Candidate(ctx, client.userID, req.ToUserID, req.Payload)

	case dto.FrameCallHangup:
		var req dto.CallHangupRequest
		if err := s.decode(frame.Data, &req); err != nil {
			return err
		}
		return s.calls.Hangup(ctx, client.userID, req.ToUserID)

	default:
		return fmt.Errorf("unknown event %q", frame.Event)
	}
}

func (s *hubService) decode(data json.RawMessage, out interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("frame data missing")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid frame data: %w", err)
	}
	return s.validator.Struct(out)
}
