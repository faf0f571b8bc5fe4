package models

import "time"

// UserStatus enumerates presence states owned by the external profile service.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusBusy    UserStatus = "busy"
	UserStatusAway    UserStatus = "away"
	UserStatusOffline UserStatus = "offline"
)

// User is the read model of an externally owned account. The hub never writes
// this table; it only resolves username and avatar for broadcast payloads.
type User struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	Username    string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Avatar      string     `gorm:"size:255" json:"avatar"`
	Description string     `gorm:"type:text" json:"description"`
	Status      UserStatus `gorm:"size:16;default:online" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
