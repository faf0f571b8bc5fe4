package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexochat/hub-api/internal/models"
)

// MessageRow is a message joined with its sender's display fields, as returned
// by history reads.
type MessageRow struct {
	ID            uint                `json:"id"`
	RoomID        string              `json:"room_id"`
	SenderID      string              `json:"sender_id"`
	Content       string              `json:"content"`
	Kind          models.MessageKind  `json:"kind"`
	AttachmentRef string              `json:"attachment_ref"`
	Tier          models.DeletionTier `json:"tier"`
	CreatedAt     time.Time           `json:"created_at"`
	Username      string              `json:"username"`
	Avatar        string              `json:"avatar"`
}

// MessageRepository persists messages and their per-user tombstones.
type MessageRepository interface {
	Save(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (models.Message, error)
	MarkDeleted(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
	Hide(ctx context.Context, userID string, messageID uint) error
	ListVisible(ctx context.Context, roomID, userID string) ([]MessageRow, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Save(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) MarkDeleted(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Update("tier", models.TierDeleted).Error
}

func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, id).Error
}

func (r *messageRepository) Hide(ctx context.Context, userID string, messageID uint) error {
	tombstone := models.HiddenMessage{UserID: userID, MessageID: messageID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&tombstone).Error
}

func (r *messageRepository) ListVisible(ctx context.Context, roomID, userID string) ([]MessageRow, error) {
	var rows []MessageRow
	err := r.db.WithContext(ctx).
		Table("messages").
		Select("messages.*, users.username, users.avatar").
		Joins("JOIN users ON users.id = messages.sender_id").
		Joins("LEFT JOIN hidden_messages ON hidden_messages.message_id = messages.id AND hidden_messages.user_id = ?", userID).
		Where("messages.room_id = ? AND hidden_messages.message_id IS NULL", roomID).
		Order("messages.created_at ASC, messages.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
