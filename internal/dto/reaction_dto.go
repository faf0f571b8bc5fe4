package dto

// ToggleReactionRequest is the payload of a toggle_reaction frame.
type ToggleReactionRequest struct {
	MessageID uint   `json:"message_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required,max=64"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

// ReactionAggregate is one emoji bucket of a message's reactions. Each client
// derives its own "reacted" flag from UserIDs.
type ReactionAggregate struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	UserIDs []string `json:"user_ids"`
}

// ReactionUpdatedEvent carries the full recomputed reaction list for a
// message, never a delta.
type ReactionUpdatedEvent struct {
	MessageID uint                `json:"message_id"`
	RoomID    string              `json:"room_id"`
	Reactions []ReactionAggregate `json:"reactions"`
}
