package models

import "time"

// MessageKind enumerates the supported message payload types.
type MessageKind string

const (
	MessageKindText    MessageKind = "text"
	MessageKindImage   MessageKind = "image"
	MessageKindVideo   MessageKind = "video"
	MessageKindAudio   MessageKind = "audio"
	MessageKindFile    MessageKind = "file"
	MessageKindSticker MessageKind = "sticker"
)

// Valid reports whether the kind is one of the supported values.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindVideo, MessageKindAudio, MessageKindFile, MessageKindSticker:
		return true
	}
	return false
}

// RequiresAttachment reports whether the kind must carry an attachment reference.
// Text is the only kind without one.
func (k MessageKind) RequiresAttachment() bool {
	return k != MessageKindText
}

// DeletionTier is the sender-facing deletion state of a message. The third
// state of the lifecycle, absent, is represented by the row no longer existing.
type DeletionTier int

const (
	TierVisible DeletionTier = 0
	TierDeleted DeletionTier = 1
)

// Message is a persisted chat message. A message belongs to exactly one room
// and one sender; kind and attachment must be jointly consistent.
type Message struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	RoomID        string       `gorm:"size:64;index;not null" json:"room_id"`
	SenderID      string       `gorm:"size:64;index;not null" json:"sender_id"`
	Content       string       `gorm:"type:text" json:"content"`
	Kind          MessageKind  `gorm:"size:16;default:text" json:"kind"`
	AttachmentRef string       `gorm:"size:255" json:"attachment_ref"`
	Tier          DeletionTier `gorm:"not null;default:0" json:"tier"`
	CreatedAt     time.Time    `json:"created_at"`
}

// HiddenMessage is a per-user tombstone: its existence hides the message from
// that user only, independent of the message's own deletion tier. Rows are
// never automatically removed.
type HiddenMessage struct {
	UserID    string `gorm:"primaryKey;size:64" json:"user_id"`
	MessageID uint   `gorm:"primaryKey" json:"message_id"`
}

// Reaction records a (message, user, emoji) triple, unique per triple.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"uniqueIndex:idx_reaction_triple;not null" json:"message_id"`
	UserID    string    `gorm:"uniqueIndex:idx_reaction_triple;size:64;not null" json:"user_id"`
	Emoji     string    `gorm:"uniqueIndex:idx_reaction_triple;size:32;not null" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}
