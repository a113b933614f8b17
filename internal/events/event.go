// Package events publishes progress changes to RabbitMQ so other tools
// (dashboards, spaced repetition schedulers) can follow a learner.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeAttemptLogged    = "attempt.logged"
	TypeSessionCompleted = "session.completed"
)

// routingKey prefixes the event type so one binding covers all progress events
func routingKey(eventType string) string {
	return "progress." + eventType
}

// Event is the envelope of every published message
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func newEvent(eventType string, payload any, now time.Time) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: now.UTC(),
		Payload:    body,
	}, nil
}
