package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/models"
)

// ReactionRepository stores per-message reaction triples.
type ReactionRepository interface {
	// Toggle removes the (message, user, emoji) triple when present, inserts
	// it otherwise, and reports whether the triple exists afterwards.
	Toggle(ctx context.Context, messageID uint, userID, emoji string) (bool, error)
	ListByMessage(ctx context.Context, messageID uint) ([]models.Reaction, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository constructs a reaction repository backed by GORM.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Toggle(ctx context.Context, messageID uint, userID, emoji string) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
			Delete(&models.Reaction{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		added = true
		return tx.Create(&models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}).Error
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (r *reactionRepository) ListByMessage(ctx context.Context, messageID uint) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC, id ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}
