package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ai-data-analyst/internal/ingest"
	"ai-data-analyst/internal/metrics"
	"ai-data-analyst/internal/model"
	"ai-data-analyst/internal/repository"
	"ai-data-analyst/internal/storage"
)

var ErrDatasetNotFound = errors.New("dataset not found or you do not have permission to access it")

// UploadArchive stores the original bytes of an upload.
type UploadArchive interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

type DatasetCacheInvalidator interface {
	Invalidate(ctx context.Context, datasetID uint) error
}

type SchemaCacheInvalidator interface {
	Delete(ctx context.Context, table string) error
}

type DatasetService struct {
	db           *gorm.DB
	datasetRepo  *repository.DatasetRepository
	messageRepo  *repository.MessageRepository
	queryLogRepo *repository.QueryLogRepository
	ingestor     *ingest.Ingestor
	archive      UploadArchive
	historyCache DatasetCacheInvalidator
	schemaCache  SchemaCacheInvalidator
	log          *zap.Logger
}

type DatasetServiceDeps struct {
	DB           *gorm.DB
	DatasetRepo  *repository.DatasetRepository
	MessageRepo  *repository.MessageRepository
	QueryLogRepo *repository.QueryLogRepository
	Ingestor     *ingest.Ingestor
	Archive      UploadArchive
	HistoryCache DatasetCacheInvalidator
	SchemaCache  SchemaCacheInvalidator
	Logger       *zap.Logger
}

func NewDatasetService(deps DatasetServiceDeps) *DatasetService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &DatasetService{
		db:           deps.DB,
		datasetRepo:  deps.DatasetRepo,
		messageRepo:  deps.MessageRepo,
		queryLogRepo: deps.QueryLogRepo,
		ingestor:     deps.Ingestor,
		archive:      deps.Archive,
		historyCache: deps.HistoryCache,
		schemaCache:  deps.SchemaCache,
		log:          log,
	}
}

type UploadInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Body        io.Reader
}

// Upload ingests the file into a new storage table and records the dataset.
func (s *DatasetService) Upload(ctx context.Context, input UploadInput) (*model.Dataset, error) {
	filename := strings.TrimSpace(input.Filename)
	if input.UserID == 0 || filename == "" || input.Body == nil {
		return nil, ErrInvalidInput
	}
	format := metricFormat(filename)

	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", ingest.ErrIngestionFailed, err)
	}

	res, err := s.ingestor.IngestBytes(ctx, filename, data)
	if err != nil {
		metrics.ObserveIngestion(format, "failed", 0)
		return nil, err
	}

	dataset := &model.Dataset{
		UserID:           input.UserID,
		OriginalFilename: filename,
		StorageTable:     res.Table,
		RowCount:         res.RowCount,
		ColumnCount:      len(res.Columns),
	}

	if s.archive != nil {
		key := storage.ObjectKey(input.UserID, res.Table, filename)
		if err := s.archive.Put(ctx, key, bytes.NewReader(data), int64(len(data)), input.ContentType); err != nil {
			s.log.Warn("archive upload failed", zap.String("table", res.Table), zap.Error(err))
		} else {
			dataset.ObjectKey = key
		}
	}

	if err := s.datasetRepo.Create(ctx, dataset); err != nil {
		if dropErr := ingest.DropTable(context.WithoutCancel(ctx), s.db, res.Table); dropErr != nil {
			s.log.Error("drop orphaned table failed", zap.String("table", res.Table), zap.Error(dropErr))
		}
		metrics.ObserveIngestion(format, "failed", 0)
		return nil, fmt.Errorf("%w: %v", ingest.ErrIngestionFailed, err)
	}

	metrics.ObserveIngestion(format, "ok", res.RowCount)
	s.log.Info("dataset uploaded",
		zap.Uint("user_id", input.UserID),
		zap.Uint("dataset_id", dataset.ID),
		zap.String("table", res.Table),
		zap.Int64("rows", res.RowCount),
		zap.Int("columns", len(res.Columns)),
	)
	return dataset, nil
}

func (s *DatasetService) List(ctx context.Context, userID uint) ([]model.Dataset, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.datasetRepo.ListByUserID(ctx, userID)
}

// Get returns the dataset only if userID owns it.
func (s *DatasetService) Get(ctx context.Context, userID, datasetID uint) (*model.Dataset, error) {
	if userID == 0 || datasetID == 0 {
		return nil, ErrInvalidInput
	}
	dataset, err := s.datasetRepo.GetByIDAndUserID(ctx, datasetID, userID)
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return nil, ErrDatasetNotFound
	}
	return dataset, nil
}

func (s *DatasetService) History(ctx context.Context, userID, datasetID uint) ([]model.ChatMessage, error) {
	if _, err := s.Get(ctx, userID, datasetID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByDatasetID(ctx, datasetID)
}

func (s *DatasetService) QueryLogs(ctx context.Context, userID, datasetID uint, limit int) ([]model.QueryLog, error) {
	if _, err := s.Get(ctx, userID, datasetID); err != nil {
		return nil, err
	}
	return s.queryLogRepo.ListByDatasetID(ctx, datasetID, limit)
}

// Delete removes the dataset, its conversation, its saved charts and the
// storage table behind it.
func (s *DatasetService) Delete(ctx context.Context, userID, datasetID uint) error {
	dataset, err := s.Get(ctx, userID, datasetID)
	if err != nil {
		return err
	}
	if err := s.datasetRepo.Delete(ctx, dataset.ID); err != nil {
		return err
	}
	if err := ingest.DropTable(ctx, s.db, dataset.StorageTable); err != nil {
		return err
	}

	if s.archive != nil && dataset.ObjectKey != "" {
		if err := s.archive.Delete(ctx, dataset.ObjectKey); err != nil {
			s.log.Warn("delete archived upload failed", zap.String("key", dataset.ObjectKey), zap.Error(err))
		}
	}
	if s.historyCache != nil {
		_ = s.historyCache.Invalidate(ctx, dataset.ID)
	}
	if s.schemaCache != nil {
		_ = s.schemaCache.Delete(ctx, dataset.StorageTable)
	}
	s.log.Info("dataset deleted", zap.Uint("user_id", userID), zap.Uint("dataset_id", dataset.ID), zap.String("table", dataset.StorageTable))
	return nil
}

// metricFormat keeps the ingestion metric label set bounded.
func metricFormat(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range ingest.SupportedExtensions {
		if ext == supported {
			return strings.TrimPrefix(ext, ".")
		}
	}
	return "unsupported"
}
