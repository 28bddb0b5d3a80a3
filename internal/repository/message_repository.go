package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ai-data-analyst/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *model.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("create chat message failed: %w", err)
	}
	return nil
}

// ListByDatasetID returns the full history oldest first.
func (r *MessageRepository) ListByDatasetID(ctx context.Context, datasetID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentByDatasetID reads the newest limit messages and returns them
// oldest first.
func (r *MessageRepository) ListRecentByDatasetID(ctx context.Context, datasetID uint, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	var messages []model.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent chat messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
