// Package service holds the task side effects that run after a write:
// publishing task events and keeping category task counts current.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/queue"
)

// Publisher delivers task events.  Failures are returned so the caller can
// log them; a failed publish never fails the request that caused it.
type Publisher interface {
	Publish(ctx context.Context, ev queue.TaskEvent) error
}

// NopPublisher drops every event.  It is used when the queue is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.TaskEvent) error { return nil }

// AMQPPublisher publishes task events to a durable RabbitMQ queue.  Each
// publish dials its own connection; a circuit breaker stops dialing an
// unreachable broker on every request.
type AMQPPublisher struct {
	url   string
	queue string
	cb    *gobreaker.CircuitBreaker
	log   log.FieldLogger
}

// NewAMQPPublisher builds a publisher for cfg.URL and cfg.Queue.
func NewAMQPPublisher(cfg config.QueueConfig, logger log.FieldLogger) *AMQPPublisher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "amqp:" + cfg.Queue,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("queue.breaker.state_changed")
		},
	})
	return &AMQPPublisher{url: cfg.URL, queue: cfg.Queue, cb: cb, log: logger}
}

// NewPublisher returns an AMQPPublisher when the queue is enabled and a
// NopPublisher otherwise.
func NewPublisher(cfg config.QueueConfig, logger log.FieldLogger) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return NewAMQPPublisher(cfg, logger)
}

// Publish sends ev as a persistent JSON message routed to the queue.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.TaskEvent) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.publish(ctx, ev)
	})
	if err != nil {
		p.log.WithError(err).WithFields(log.Fields{"type": ev.Type, "task_id": ev.TaskID}).
			Warn("queue.publish_failed")
	}
	return err
}

func (p *AMQPPublisher) publish(ctx context.Context, ev queue.TaskEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
