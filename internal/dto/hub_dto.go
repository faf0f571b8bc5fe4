package dto

import (
	"encoding/json"
	"time"
)

// Inbound frame event names. These follow the wire format spoken by existing
// clients, snake_case throughout.
const (
	FrameRegisterUser   = "register_user"
	FrameJoinRoom       = "join_room"
	FrameSendMessage    = "send_message"
	FrameDeleteMessage  = "delete_message"
	FrameHideMessage    = "hide_message"
	FrameToggleReaction = "toggle_reaction"
	FrameCallStart      = "call_start"
	FrameCallOffer      = "call_offer"
	FrameCallAnswer     = "call_answer"
	FrameCallCandidate  = "call_ice_candidate"
	FrameCallHangup     = "call_hangup"
)

// Outbound event names.
const (
	EventReceiveMessage  = "receive_message"
	EventMessageDeleted  = "message_deleted"
	EventMessageGone     = "message_gone"
	EventMessageHidden   = "message_hidden"
	EventReactionUpdated = "reaction_updated"
	EventIncomingCall    = "incoming_call"
	EventCallOffer       = "call_offer"
	EventCallAnswer      = "call_answer"
	EventCallCandidate   = "call_ice_candidate"
	EventCallHangup      = "call_hangup"
	EventRoomUpdated     = "room_updated"
	EventError           = "error"
)

// Frame is the envelope every client message arrives in.
type Frame struct {
	Event string          `json:"event" validate:"required,max=64"`
	Data  json.RawMessage `json:"data"`
}

// Event is the envelope every hub-to-client message is written as.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ErrorEvent is sent back to the initiating connection when a frame is
// rejected. Never broadcast.
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// RegisterUserRequest confirms the identity bound at upgrade time. Registering
// an already registered connection is a no-op.
type RegisterUserRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

// JoinRoomRequest subscribes the connection to a room's fan-out set.
type JoinRoomRequest struct {
	RoomID string `json:"room_id" validate:"required,max=64"`
}

// RoomUpdatedEvent carries the metadata fields changed by the room service.
type RoomUpdatedEvent struct {
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoomUpdateRequest is posted by the room-metadata collaborator after an edit.
type RoomUpdateRequest struct {
	Name        string `json:"name" validate:"omitempty,max=128"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Avatar      string `json:"avatar" validate:"omitempty,max=255"`
}

// AccessStateResponse reports the password gate result for a room.
type AccessStateResponse struct {
	RoomID string `json:"room_id"`
	State  string `json:"state"`
}
