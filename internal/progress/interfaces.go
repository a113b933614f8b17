package progress

import (
	"context"
)

// DocumentStore persists the progress document as a whole. Implementations
// must make Update a single serialized read-modify-write cycle.
type DocumentStore interface {
	Read(ctx context.Context) (*Document, error)
	Write(ctx context.Context, doc *Document) error
	Update(ctx context.Context, fn func(*Document) error) error
}

// Ensure the file and memory stores implement DocumentStore
var (
	_ DocumentStore = (*FileStore)(nil)
	_ DocumentStore = (*MemoryStore)(nil)
)

// EventPublisher is notified after attempts and sessions are persisted
type EventPublisher interface {
	PublishAttempt(ctx context.Context, attempt AttemptRecord) error
	PublishSession(ctx context.Context, session SessionRecord) error
}

// ProgressService defines the operations used by the daemon, the CLI and
// the MCP server
type ProgressService interface {
	// LogAttempt appends a graded answer and updates its question aggregate
	LogAttempt(ctx context.Context, in AttemptInput) error

	// LogSession appends a completed quiz summary
	LogSession(ctx context.Context, topic string, score float64, details SessionDetails) error

	// Sessions returns logged sessions, newest last, optionally for one topic
	Sessions(ctx context.Context, topic string) ([]SessionRecord, error)

	// Topics returns every topic seen in sessions or attempts
	Topics(ctx context.Context) ([]string, error)

	// Question returns the aggregate for a question id
	Question(ctx context.Context, id string) (*QuestionRecord, error)

	// ExcludedPrompts returns prompts the generator should not repeat
	ExcludedPrompts(ctx context.Context, mode AvoidMode, topic string) ([]string, error)

	// TopicAccuracy returns the learner's accuracy for a topic
	TopicAccuracy(ctx context.Context, topic string) (float64, error)

	// AdaptiveDifficulty maps topic accuracy onto a difficulty label
	AdaptiveDifficulty(ctx context.Context, topic string) (Difficulty, error)

	// FrequentlyMissed ranks the questions most often answered wrong
	FrequentlyMissed(ctx context.Context, topic string, minAttempts, limit int) ([]MissedQuestion, error)
}

// Ensure Service implements ProgressService
var _ ProgressService = (*Service)(nil)
