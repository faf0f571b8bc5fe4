package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/models"
)

// RoomRepository reads room records and memberships maintained by the
// external room-metadata service.
type RoomRepository interface {
	GetByID(ctx context.Context, id string) (models.Room, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a room repository backed by GORM.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
