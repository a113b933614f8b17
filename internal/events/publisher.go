package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/progress"
)

// sender is the slice of Connection the publisher needs
type sender interface {
	PublishJSON(ctx context.Context, routingKey string, data any) error
}

// Publisher implements progress.EventPublisher over AMQP
type Publisher struct {
	conn   sender
	logger *slog.Logger
	now    func() time.Time
}

var _ progress.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher on conn
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return newPublisher(conn, logger)
}

func newPublisher(conn sender, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger, now: time.Now}
}

// PublishAttempt announces a logged attempt
func (p *Publisher) PublishAttempt(ctx context.Context, attempt progress.AttemptRecord) error {
	return p.publish(ctx, TypeAttemptLogged, attempt)
}

// PublishSession announces a completed quiz session
func (p *Publisher) PublishSession(ctx context.Context, session progress.SessionRecord) error {
	return p.publish(ctx, TypeSessionCompleted, session)
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload any) error {
	event, err := newEvent(eventType, payload, p.now())
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	if err := p.conn.PublishJSON(ctx, routingKey(eventType), event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	p.logger.Debug("published event", "type", eventType, "id", event.ID)
	return nil
}
