package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ai-data-analyst/internal/model"
	"ai-data-analyst/internal/platform/rabbitmq"
)

// QueryLogStore persists decoded query-log entries.
type QueryLogStore interface {
	Create(ctx context.Context, entry *model.QueryLog) error
}

type QueryLogWorker struct {
	conn      *amqp.Connection
	store     QueryLogStore
	queueName string
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueryLogWorker(conn *amqp.Connection, store QueryLogStore, queueName string, log *zap.Logger) *QueryLogWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryLogWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log,
	}
}

func (w *QueryLogWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.process(workerCtx, d.Body, d)
			}
		}
	}()

	w.log.Info("query log worker started", zap.String("queue", w.queueName))
	return nil
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (w *QueryLogWorker) process(ctx context.Context, body []byte, ack acknowledger) {
	var entry model.QueryLog
	if err := json.Unmarshal(body, &entry); err != nil || entry.ID == "" {
		w.log.Warn("worker decode query log failed", zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}

	if err := w.store.Create(ctx, &entry); err != nil {
		w.log.Error("worker persist query log failed", zap.String("query_log_id", entry.ID), zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}
	_ = ack.Ack(false)
}

func (w *QueryLogWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
