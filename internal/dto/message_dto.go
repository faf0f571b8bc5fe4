package dto

import (
	"time"

	"github.com/nexochat/hub-api/internal/models"
)

// SendMessageRequest is the payload of a send_message frame.
type SendMessageRequest struct {
	RoomID        string `json:"room_id" validate:"required,max=64"`
	Content       string `json:"content" validate:"omitempty,max=4000"`
	Kind          string `json:"kind" validate:"omitempty,oneof=text image video audio file sticker"`
	AttachmentRef string `json:"attachment_ref" validate:"omitempty,max=255"`
}

// DeleteMessageRequest is the payload of a delete_message frame.
type DeleteMessageRequest struct {
	MessageID uint   `json:"message_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required,max=64"`
}

// HideMessageRequest is the payload of a hide_message frame.
type HideMessageRequest struct {
	MessageID uint `json:"message_id" validate:"required"`
}

// MessageResponse is the fully denormalized message broadcast to rooms and
// returned from history. Sender display fields are resolved at send time.
type MessageResponse struct {
	ID            uint      `json:"id"`
	RoomID        string    `json:"room_id"`
	SenderID      string    `json:"sender_id"`
	Content       string    `json:"content"`
	Kind          string    `json:"kind"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	IsDeleted     bool      `json:"is_deleted"`
	Username      string    `json:"username"`
	Avatar        string    `json:"avatar,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewMessageResponse combines a message row with its sender's display fields.
func NewMessageResponse(message models.Message, username, avatar string) MessageResponse {
	return MessageResponse{
		ID:            message.ID,
		RoomID:        message.RoomID,
		SenderID:      message.SenderID,
		Content:       message.Content,
		Kind:          string(message.Kind),
		AttachmentRef: message.AttachmentRef,
		IsDeleted:     message.Tier == models.TierDeleted,
		Username:      username,
		Avatar:        avatar,
		CreatedAt:     message.CreatedAt,
	}
}

// MessageDeletedEvent is broadcast on soft delete.
type MessageDeletedEvent struct {
	MessageID uint   `json:"message_id"`
	RoomID    string `json:"room_id"`
}

// MessageGoneEvent is broadcast on hard delete.
type MessageGoneEvent struct {
	MessageID uint   `json:"message_id"`
	RoomID    string `json:"room_id"`
}

// MessageHiddenEvent is delivered only to the hiding user's connections.
type MessageHiddenEvent struct {
	MessageID uint `json:"message_id"`
}
