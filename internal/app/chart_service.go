package app

import (
	"context"
	"errors"
	"strings"

	"ai-data-analyst/internal/model"
	"ai-data-analyst/internal/repository"
)

var ErrChartInvalid = errors.New("chart label and data are required")

type ChartService struct {
	datasets  *DatasetService
	chartRepo *repository.SavedChartRepository
}

func NewChartService(datasets *DatasetService, chartRepo *repository.SavedChartRepository) *ChartService {
	return &ChartService{datasets: datasets, chartRepo: chartRepo}
}

type SaveChartInput struct {
	UserID    uint
	DatasetID uint
	Label     string
	ChartData string
}

func (s *ChartService) Save(ctx context.Context, input SaveChartInput) (*model.SavedChart, error) {
	label := strings.TrimSpace(input.Label)
	if label == "" || strings.TrimSpace(input.ChartData) == "" {
		return nil, ErrChartInvalid
	}
	dataset, err := s.datasets.Get(ctx, input.UserID, input.DatasetID)
	if err != nil {
		return nil, err
	}

	chart := &model.SavedChart{
		DatasetID: dataset.ID,
		Label:     label,
		ChartData: input.ChartData,
	}
	if err := s.chartRepo.Create(ctx, chart); err != nil {
		return nil, err
	}
	return chart, nil
}

// List returns the dataset's saved charts, newest first.
func (s *ChartService) List(ctx context.Context, userID, datasetID uint) ([]model.SavedChart, error) {
	dataset, err := s.datasets.Get(ctx, userID, datasetID)
	if err != nil {
		return nil, err
	}
	return s.chartRepo.ListByDatasetID(ctx, dataset.ID)
}
