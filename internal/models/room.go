package models

import "time"

// Room is the read model of a room record owned by the room-metadata service.
// The hub consumes id, password, member limit and the membership set; it never
// creates or edits rooms.
type Room struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:128" json:"name"`
	Password    string    `gorm:"size:128" json:"-"`
	CreatedBy   string    `gorm:"size:64;index" json:"created_by"`
	Avatar      string    `gorm:"size:255" json:"avatar"`
	Description string    `gorm:"type:text" json:"description"`
	MaxMembers  int       `gorm:"not null;default:0" json:"max_members"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Locked reports whether the room requires a password for reads.
func (r Room) Locked() bool {
	return r.Password != ""
}

// RoomMember links a user to a room, one row per (room, user) pair.
type RoomMember struct {
	RoomID string `gorm:"primaryKey;size:64" json:"room_id"`
	UserID string `gorm:"primaryKey;size:64" json:"user_id"`
}
