package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/config"
)

// Recounter refreshes the task counts of categories.
type Recounter interface {
	Refresh(ctx context.Context, userID string, categoryIDs ...string)
}

// Invalidator drops the cached responses of a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Processor handles decoded task events: each one is appended to the
// activity log and the categories it references are recounted.  Recounts
// invalidate the user's cached responses.
type Processor struct {
	LogPath   string
	Recounter Recounter
	Cache     Invalidator

	mu sync.Mutex
}

// Handle processes one message body.  A body that does not decode is an
// error and the message is rejected by the consumer.
func (p *Processor) Handle(ctx context.Context, body []byte) error {
	var ev TaskEvent
	if err := sonic.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.UserID == "" {
		return errors.New("event without type or user")
	}
	if err := p.appendActivity(ev); err != nil {
		return err
	}
	cats := ev.Categories()
	if p.Recounter == nil || len(cats) == 0 {
		return nil
	}
	p.Recounter.Refresh(ctx, ev.UserID, cats...)
	if p.Cache != nil {
		p.Cache.Invalidate(ctx, ev.UserID)
	}
	return nil
}

func (p *Processor) appendActivity(ev TaskEvent) error {
	if p.LogPath == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(p.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatActivity(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatActivity renders ev as one activity log line.
func FormatActivity(ev TaskEvent) string {
	cat := ev.NewCategoryID
	if cat == "" {
		cat = "-"
	}
	line := fmt.Sprintf("[%s] %s | task_id=%s | user_id=%s | title=%q | status=%s | category=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.TaskID, ev.UserID, ev.Title, ev.Status, cat)
	if ev.OldCategoryID != "" && ev.OldCategoryID != ev.NewCategoryID {
		line += " | previous_category=" + ev.OldCategoryID
	}
	if ev.Type == TaskArchived {
		line += fmt.Sprintf(" | archived=%t", ev.IsArchived)
	}
	return line + "\n"
}

// StartTaskEventConsumer connects to the broker, declares the durable
// events queue and processes messages until ctx is cancelled.  Broken
// connections are retried with exponential backoff.
func StartTaskEventConsumer(ctx context.Context, cfg config.QueueConfig, p *Processor, logger log.FieldLogger) error {
	logger = logger.WithField("queue", cfg.Queue)
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			logger.WithError(err).WithField("retry_in", backoff.String()).Warn("queue.consumer.dial_failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		logger.Info("queue.consumer.connected")

		err = consumeLoop(ctx, conn, cfg.Queue, p, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WithError(err).Warn("queue.consumer.loop_ended")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, p *Processor, logger log.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.WithError(err).Warn("queue.consumer.qos_failed")
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := p.Handle(ctx, d.Body); err != nil {
				logger.WithError(err).Warn("queue.consumer.handle_failed")
				// no requeue: a poison message would loop forever
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
