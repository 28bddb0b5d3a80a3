package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-data-analyst/internal/model"
)

type DatasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

func (r *DatasetRepository) Create(ctx context.Context, dataset *model.Dataset) error {
	if err := r.db.WithContext(ctx).Create(dataset).Error; err != nil {
		return fmt.Errorf("create dataset failed: %w", err)
	}
	return nil
}

func (r *DatasetRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Dataset, error) {
	var datasets []model.Dataset
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("upload_timestamp DESC").
		Order("id DESC").
		Find(&datasets).Error; err != nil {
		return nil, fmt.Errorf("list datasets failed: %w", err)
	}
	return datasets, nil
}

// GetByIDAndUserID returns nil, nil when the dataset does not exist or belongs
// to someone else.
func (r *DatasetRepository) GetByIDAndUserID(ctx context.Context, datasetID, userID uint) (*model.Dataset, error) {
	var dataset model.Dataset
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", datasetID, userID).First(&dataset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dataset failed: %w", err)
	}
	return &dataset, nil
}

// Delete removes the dataset row together with its chat messages and saved
// charts in one transaction.
func (r *DatasetRepository) Delete(ctx context.Context, datasetID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_id = ?", datasetID).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete chat messages failed: %w", err)
		}
		if err := tx.Where("dataset_id = ?", datasetID).Delete(&model.SavedChart{}).Error; err != nil {
			return fmt.Errorf("delete saved charts failed: %w", err)
		}
		if err := tx.Delete(&model.Dataset{}, datasetID).Error; err != nil {
			return fmt.Errorf("delete dataset failed: %w", err)
		}
		return nil
	})
	return err
}
