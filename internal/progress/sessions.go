package progress

import (
	"context"
	"fmt"
	"math"
)

// LogSession appends a session summary. The score is a percentage; only
// NaN and infinities are rejected.
func (s *Service) LogSession(ctx context.Context, topic string, score float64, details SessionDetails) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}

	record := SessionRecord{
		Timestamp: s.timestamp(),
		Topic:     topic,
		Score:     score,
		Details:   details.Map(),
	}

	err := s.store.Update(ctx, func(doc *Document) error {
		doc.Sessions = append(doc.Sessions, record)
		return nil
	})
	if err != nil {
		return fmt.Errorf("log session: %w", err)
	}

	s.logger.Info("session logged", "topic", topic, "score", score)
	if s.publisher != nil {
		if err := s.publisher.PublishSession(ctx, record); err != nil {
			s.logger.Warn("failed to publish session", "topic", topic, "error", err)
		}
	}
	return nil
}

// ScorePercent converts correct/total into a 0-100 score. An empty quiz scores 0.
func ScorePercent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}
