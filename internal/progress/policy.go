package progress

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// AvoidMode selects which previously seen prompts are excluded
type AvoidMode string

const (
	AvoidAll     AvoidMode = "all"
	AvoidCorrect AvoidMode = "correct"
)

// ParseAvoidMode validates a user supplied mode. Empty means AvoidAll.
func ParseAvoidMode(s string) (AvoidMode, error) {
	switch AvoidMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", AvoidAll:
		return AvoidAll, nil
	case AvoidCorrect:
		return AvoidCorrect, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAvoidMode, s)
}

// Difficulty is the label passed to the question generator
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Accuracy thresholds and the prior used for unseen topics
const (
	easyBelow       = 0.5
	mediumBelow     = 0.8
	defaultAccuracy = 0.7
)

// DifficultyFor maps an accuracy in [0,1] onto a difficulty
func DifficultyFor(accuracy float64) Difficulty {
	switch {
	case accuracy < easyBelow:
		return DifficultyEasy
	case accuracy < mediumBelow:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// ExcludedPrompts returns the prompts of every known question, or only of
// those last answered correctly for AvoidCorrect. A non-empty topic limits
// the result to questions asked under it. Prompts are ordered by question
// id. Unrecognized modes behave like AvoidAll.
func (s *Service) ExcludedPrompts(ctx context.Context, mode AvoidMode, topic string) ([]string, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	prompts := []string{}
	for _, id := range sortedKeys(doc.Questions) {
		q := doc.Questions[id]
		if q == nil || q.Prompt == "" {
			continue
		}
		if topic != "" && !q.HasTopic(topic) {
			continue
		}
		if mode == AvoidCorrect && !q.LastCorrect {
			continue
		}
		prompts = append(prompts, q.Prompt)
	}
	return prompts, nil
}

// TopicAccuracy returns correct/total over the topic's attempts. Without
// attempts it falls back to the mean session score, and without sessions
// to a fixed prior of 0.7.
func (s *Service) TopicAccuracy(ctx context.Context, topic string) (float64, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	return topicAccuracy(doc, topic), nil
}

func topicAccuracy(doc *Document, topic string) float64 {
	var total, correct int
	for _, a := range doc.Attempts {
		if a.Topic != topic {
			continue
		}
		total++
		if a.Correct {
			correct++
		}
	}
	if total > 0 {
		return float64(correct) / float64(total)
	}

	var sum float64
	var n int
	for _, sess := range doc.Sessions {
		if sess.Topic != topic {
			continue
		}
		sum += sess.Score / 100
		n++
	}
	if n > 0 {
		return sum / float64(n)
	}
	return defaultAccuracy
}

// AdaptiveDifficulty picks the next difficulty for topic
func (s *Service) AdaptiveDifficulty(ctx context.Context, topic string) (Difficulty, error) {
	acc, err := s.TopicAccuracy(ctx, topic)
	if err != nil {
		return "", err
	}
	return DifficultyFor(acc), nil
}

// MissedQuestion is a per-question summary of one topic's attempts
type MissedQuestion struct {
	QuestionID    string  `json:"question_id"`
	Prompt        string  `json:"prompt"`
	Attempts      int     `json:"attempts"`
	Correct       int     `json:"correct"`
	Incorrect     int     `json:"incorrect"`
	ErrorRate     float64 `json:"error_rate"`
	AvgResponseMs *int64  `json:"avg_response_ms"`

	timedCount int
	timedSum   int64
}

// FrequentlyMissed ranks the topic's questions by error rate, then attempt
// count, then average response time, all descending, with question id as
// the final tie break. Questions with fewer than minAttempts attempts or no
// incorrect answers are left out. limit <= 0 returns every match.
func (s *Service) FrequentlyMissed(ctx context.Context, topic string, minAttempts, limit int) ([]MissedQuestion, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*MissedQuestion)
	for _, a := range doc.Attempts {
		if a.Topic != topic || a.QuestionID == "" {
			continue
		}
		m, ok := stats[a.QuestionID]
		if !ok {
			m = &MissedQuestion{QuestionID: a.QuestionID, Prompt: a.Prompt}
			stats[a.QuestionID] = m
		}
		m.Attempts++
		if a.Correct {
			m.Correct++
		} else {
			m.Incorrect++
		}
		if a.ResponseMs != nil {
			m.timedCount++
			m.timedSum += *a.ResponseMs
		}
	}

	missed := []MissedQuestion{}
	for _, m := range stats {
		if m.Attempts < minAttempts || m.Incorrect == 0 {
			continue
		}
		m.ErrorRate = float64(m.Incorrect) / float64(m.Attempts)
		if m.timedCount > 0 {
			avg := roundedMean(m.timedSum, m.timedCount)
			m.AvgResponseMs = &avg
		}
		missed = append(missed, *m)
	}

	sort.Slice(missed, func(i, j int) bool {
		a, b := missed[i], missed[j]
		if a.ErrorRate != b.ErrorRate {
			return a.ErrorRate > b.ErrorRate
		}
		if a.Attempts != b.Attempts {
			return a.Attempts > b.Attempts
		}
		if am, bm := a.avgOrZero(), b.avgOrZero(); am != bm {
			return am > bm
		}
		return a.QuestionID < b.QuestionID
	})

	if limit > 0 && len(missed) > limit {
		missed = missed[:limit]
	}
	return missed, nil
}

func (m MissedQuestion) avgOrZero() int64 {
	if m.AvgResponseMs == nil {
		return 0
	}
	return *m.AvgResponseMs
}

// roundedMean returns the mean in whole milliseconds, rounding half to even
func roundedMean(sum int64, n int) int64 {
	return int64(math.RoundToEven(float64(sum) / float64(n)))
}
