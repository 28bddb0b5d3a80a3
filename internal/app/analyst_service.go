package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"ai-data-analyst/internal/model"
	"ai-data-analyst/internal/nl2sql"
	"ai-data-analyst/internal/pipeline"
	"ai-data-analyst/internal/repository"
)

var ErrQuestionEmpty = errors.New("question is empty")

const defaultHistoryWindow = 10

// HistoryCache keeps the recent conversation window of a dataset.
type HistoryCache interface {
	GetRecent(ctx context.Context, datasetID uint, limit int) ([]model.ChatMessage, bool, error)
	SetRecent(ctx context.Context, datasetID uint, limit int, messages []model.ChatMessage) error
	Invalidate(ctx context.Context, datasetID uint) error
}

type QueryLogPublisher interface {
	Publish(ctx context.Context, entry model.QueryLog) error
}

type QuestionRunner interface {
	Run(ctx context.Context, table, prompt string) pipeline.Result
}

type AnalystService struct {
	datasets      *DatasetService
	messageRepo   *repository.MessageRepository
	queryLogRepo  *repository.QueryLogRepository
	runner        QuestionRunner
	historyCache  HistoryCache
	publisher     QueryLogPublisher
	historyWindow int
	log           *zap.Logger
}

type AnalystServiceDeps struct {
	Datasets      *DatasetService
	MessageRepo   *repository.MessageRepository
	QueryLogRepo  *repository.QueryLogRepository
	Runner        QuestionRunner
	HistoryCache  HistoryCache
	Publisher     QueryLogPublisher
	HistoryWindow int
	Logger        *zap.Logger
}

func NewAnalystService(deps AnalystServiceDeps) *AnalystService {
	window := deps.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalystService{
		datasets:      deps.Datasets,
		messageRepo:   deps.MessageRepo,
		queryLogRepo:  deps.QueryLogRepo,
		runner:        deps.Runner,
		historyCache:  deps.HistoryCache,
		publisher:     deps.Publisher,
		historyWindow: window,
		log:           log,
	}
}

type AskInput struct {
	UserID    uint
	DatasetID uint
	Question  string
}

// Ask answers a question about one of the caller's datasets. The question and
// the answer are both appended to the conversation; pipeline failures come
// back as answers, only storage and ownership problems are errors.
func (s *AnalystService) Ask(ctx context.Context, input AskInput) (*pipeline.Response, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}

	dataset, err := s.datasets.Get(ctx, input.UserID, input.DatasetID)
	if err != nil {
		return nil, err
	}

	history, err := s.recentHistory(ctx, dataset.ID)
	if err != nil {
		return nil, err
	}
	turns := make([]nl2sql.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, nl2sql.Turn{FromUser: msg.IsFromUser, Text: msg.Message})
	}
	prompt := nl2sql.AssemblePrompt(turns, question)

	if err := s.messageRepo.Create(ctx, &model.ChatMessage{
		DatasetID:  dataset.ID,
		IsFromUser: true,
		Message:    question,
	}); err != nil {
		return nil, err
	}

	start := time.Now()
	res := s.runner.Run(ctx, dataset.StorageTable, prompt)
	elapsed := time.Since(start)

	// The user turn is already stored; the reply is written even if the
	// caller went away.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.messageRepo.Create(saveCtx, &model.ChatMessage{
		DatasetID:  dataset.ID,
		IsFromUser: false,
		Message:    res.Answer,
	}); err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if err := s.historyCache.Invalidate(saveCtx, dataset.ID); err != nil {
			s.log.Warn("invalidate history cache failed", zap.Uint("dataset_id", dataset.ID), zap.Error(err))
		}
	}

	s.recordQuery(saveCtx, model.QueryLog{
		ID:         ulid.Make().String(),
		DatasetID:  dataset.ID,
		UserID:     input.UserID,
		Question:   question,
		SQLQuery:   res.SQLQuery,
		Outcome:    string(res.Outcome),
		IsChart:    res.Chart,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  start,
	})

	s.log.Info("question answered",
		zap.Uint("user_id", input.UserID),
		zap.Uint("dataset_id", dataset.ID),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("elapsed", elapsed),
	)
	response := res.Response
	return &response, nil
}

func (s *AnalystService) recentHistory(ctx context.Context, datasetID uint) ([]model.ChatMessage, error) {
	if s.historyCache != nil {
		cached, ok, err := s.historyCache.GetRecent(ctx, datasetID, s.historyWindow)
		if err != nil {
			s.log.Warn("read history cache failed", zap.Uint("dataset_id", datasetID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	history, err := s.messageRepo.ListRecentByDatasetID(ctx, datasetID, s.historyWindow)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if err := s.historyCache.SetRecent(ctx, datasetID, s.historyWindow, history); err != nil {
			s.log.Warn("write history cache failed", zap.Uint("dataset_id", datasetID), zap.Error(err))
		}
	}
	return history, nil
}

// recordQuery hands the entry to the broker, falling back to a direct insert.
func (s *AnalystService) recordQuery(ctx context.Context, entry model.QueryLog) {
	if s.publisher != nil {
		err := s.publisher.Publish(ctx, entry)
		if err == nil {
			return
		}
		s.log.Warn("publish query log failed, writing directly", zap.String("query_log_id", entry.ID), zap.Error(err))
	}
	if s.queryLogRepo == nil {
		return
	}
	if err := s.queryLogRepo.Create(ctx, &entry); err != nil {
		s.log.Error("persist query log failed", zap.String("query_log_id", entry.ID), zap.Error(err))
	}
}
