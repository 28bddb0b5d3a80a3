package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ai-data-analyst/internal/ai"
	"ai-data-analyst/internal/answer"
	"ai-data-analyst/internal/app"
	"ai-data-analyst/internal/cache"
	"ai-data-analyst/internal/config"
	"ai-data-analyst/internal/ingest"
	"ai-data-analyst/internal/model"
	"ai-data-analyst/internal/nl2sql"
	"ai-data-analyst/internal/pipeline"
	"ai-data-analyst/internal/pkg/logger"
	"ai-data-analyst/internal/platform/database"
	rabbitmqClient "ai-data-analyst/internal/platform/rabbitmq"
	redisClient "ai-data-analyst/internal/platform/redis"
	"ai-data-analyst/internal/query"
	"ai-data-analyst/internal/repository"
	"ai-data-analyst/internal/storage"
	"ai-data-analyst/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Auth     *app.AuthService
	Datasets *app.DatasetService
	Analyst  *app.AnalystService
	Charts   *app.ChartService

	QueryLogPublisher *rabbitmqClient.QueryLogPublisher
	QueryLogWorker    *worker.QueryLogWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	log := logger.New(cfg.Log, cfg.App.Name)

	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN(), a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	if err := db.AutoMigrate(&model.User{}, &model.Dataset{}, &model.ChatMessage{}, &model.SavedChart{}, &model.QueryLog{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	var archive app.UploadArchive
	if cfg.Storage.Enabled {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		archive = store
	}

	completer, err := ai.NewOpenAICompatibleClient(ai.ChatConfigFrom(cfg.LLM))
	if err != nil {
		return fmt.Errorf("init llm client failed: %w", err)
	}
	llm := ai.Bounded(completer)

	userRepo := repository.NewUserRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	chartRepo := repository.NewSavedChartRepository(db)
	queryLogRepo := repository.NewQueryLogRepository(db)

	historyCache := cache.NewHistoryCache(a.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	schemaCache := cache.NewSchemaCache(a.Redis, time.Duration(cfg.Redis.SchemaTTLSeconds)*time.Second)

	var publisher app.QueryLogPublisher
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.QueryLogPublisher = rabbitmqClient.NewQueryLogPublisher(a.MQConn, cfg.RabbitMQ.QueryLogQueue)
		publisher = a.QueryLogPublisher

		a.QueryLogWorker = worker.NewQueryLogWorker(a.MQConn, queryLogRepo, cfg.RabbitMQ.QueryLogQueue, a.Logger)
		if err := a.QueryLogWorker.Start(ctx); err != nil {
			return fmt.Errorf("start query log worker failed: %w", err)
		}
	}

	synth := nl2sql.NewSynthesizer(llm, nl2sql.NewSchemaReader(db, schemaCache), cfg.Pipeline.SQLTopK)
	composer := answer.NewComposer(llm, cfg.Pipeline.PreviewRows, cfg.Pipeline.ChartDataLimit)
	runner := pipeline.New(synth, query.NewExecutor(db), composer, a.Logger.Named("pipeline"))

	a.Auth = app.NewAuthService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	a.Datasets = app.NewDatasetService(app.DatasetServiceDeps{
		DB:           db,
		DatasetRepo:  datasetRepo,
		MessageRepo:  messageRepo,
		QueryLogRepo: queryLogRepo,
		Ingestor:     ingest.NewIngestor(db, cfg.Pipeline.InsertBatchSize),
		Archive:      archive,
		HistoryCache: historyCache,
		SchemaCache:  schemaCache,
		Logger:       a.Logger.Named("datasets"),
	})
	a.Analyst = app.NewAnalystService(app.AnalystServiceDeps{
		Datasets:      a.Datasets,
		MessageRepo:   messageRepo,
		QueryLogRepo:  queryLogRepo,
		Runner:        runner,
		HistoryCache:  historyCache,
		Publisher:     publisher,
		HistoryWindow: cfg.Pipeline.HistoryWindow,
		Logger:        a.Logger.Named("analyst"),
	})
	a.Charts = app.NewChartService(a.Datasets, chartRepo)

	a.Logger.Info("application initialized",
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("redis", a.Redis != nil),
		zap.Bool("rabbitmq", a.MQConn != nil),
		zap.Bool("storage", archive != nil),
		zap.String("llm_model", cfg.LLM.Model),
	)
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.QueryLogWorker != nil {
		a.QueryLogWorker.Close()
	}
	if a.QueryLogPublisher != nil {
		if err := a.QueryLogPublisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
