package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ai-data-analyst/internal/model"
)

type SavedChartRepository struct {
	db *gorm.DB
}

func NewSavedChartRepository(db *gorm.DB) *SavedChartRepository {
	return &SavedChartRepository{db: db}
}

func (r *SavedChartRepository) Create(ctx context.Context, chart *model.SavedChart) error {
	if err := r.db.WithContext(ctx).Create(chart).Error; err != nil {
		return fmt.Errorf("create saved chart failed: %w", err)
	}
	return nil
}

func (r *SavedChartRepository) ListByDatasetID(ctx context.Context, datasetID uint) ([]model.SavedChart, error) {
	var charts []model.SavedChart
	if err := r.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&charts).Error; err != nil {
		return nil, fmt.Errorf("list saved charts failed: %w", err)
	}
	return charts, nil
}
