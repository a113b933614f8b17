package progress

import (
	"context"
	"fmt"
	"strings"
)

// AttemptInput is one graded answer to record
type AttemptInput struct {
	Topic         string
	Prompt        string
	StudentAnswer string
	Correct       bool
	ResponseMs    *int64
}

// LogAttempt appends the attempt to the ledger and folds it into the
// question aggregate, all within one locked store update.
func (s *Service) LogAttempt(ctx context.Context, in AttemptInput) error {
	if strings.TrimSpace(in.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if in.ResponseMs != nil && *in.ResponseMs < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidResponseTime, *in.ResponseMs)
	}

	attempt := AttemptRecord{
		Timestamp:     s.timestamp(),
		Topic:         in.Topic,
		QuestionID:    QuestionID(in.Prompt),
		Prompt:        in.Prompt,
		StudentAnswer: in.StudentAnswer,
		Correct:       in.Correct,
	}
	if in.ResponseMs != nil {
		ms := *in.ResponseMs
		attempt.ResponseMs = &ms
	}

	err := s.store.Update(ctx, func(doc *Document) error {
		doc.Attempts = append(doc.Attempts, attempt)

		q, ok := doc.Questions[attempt.QuestionID]
		if !ok || q == nil {
			q = newQuestionRecord(attempt.Prompt)
			doc.Questions[attempt.QuestionID] = q
		}
		q.recordAttempt(attempt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("log attempt: %w", err)
	}

	s.logger.Debug("attempt logged",
		"topic", attempt.Topic,
		"question_id", attempt.QuestionID,
		"correct", attempt.Correct,
	)
	if s.publisher != nil {
		if err := s.publisher.PublishAttempt(ctx, attempt); err != nil {
			s.logger.Warn("failed to publish attempt", "question_id", attempt.QuestionID, "error", err)
		}
	}
	return nil
}
