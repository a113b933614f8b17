package coach

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
)

// FeedbackMode controls when answers are graded
type FeedbackMode string

const (
	// FeedbackImmediate grades and logs each answer as it is submitted
	FeedbackImmediate FeedbackMode = "immediate"
	// FeedbackEnd stores answers and grades them all on Finish
	FeedbackEnd FeedbackMode = "end"
)

// ParseFeedbackMode validates a user supplied mode. Empty means immediate.
func ParseFeedbackMode(s string) (FeedbackMode, error) {
	switch FeedbackMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FeedbackImmediate:
		return FeedbackImmediate, nil
	case FeedbackEnd:
		return FeedbackEnd, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFeedbackMode, s)
}

// Status represents the quiz session state
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// QuizSession is the serializable state of one quiz run
type QuizSession struct {
	ID           string              `json:"id"`
	Topic        string              `json:"topic"`
	AvoidMode    progress.AvoidMode  `json:"avoid_mode"`
	FeedbackMode FeedbackMode        `json:"feedback_mode"`
	ShowMissed   bool                `json:"show_missed"`
	Difficulty   progress.Difficulty `json:"difficulty"`
	Questions    []quiz.Question     `json:"questions"`
	Answers      []*Answer           `json:"answers"`
	Status       Status              `json:"status"`
	Summary      *Summary            `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Answer is a submitted answer and, once graded, its verdict
type Answer struct {
	Index      int    `json:"index"`
	Answer     string `json:"answer"`
	ResponseMs *int64 `json:"response_ms,omitempty"`
	Graded     bool   `json:"graded"`
	Correct    bool   `json:"correct"`
	Feedback   string `json:"feedback,omitempty"`
}

// answerFor returns the stored answer for question index, or nil
func (s *QuizSession) answerFor(index int) *Answer {
	for _, a := range s.Answers {
		if a.Index == index {
			return a
		}
	}
	return nil
}

// Band is the qualitative summary of a score
type Band string

const (
	BandNeedsRevision Band = "needs_revision"
	BandFairProgress  Band = "fair_progress"
	BandGoodProgress  Band = "good_progress"
)

var bandMessages = map[Band]string{
	BandNeedsRevision: "Needs revision: focus on foundational concepts and definitions.",
	BandFairProgress:  "Fair progress: keep practicing and revisit tricky areas.",
	BandGoodProgress:  "Good progress: you're ready for more challenging, reasoning-based questions.",
}

// BandFor maps a percentage onto a band
func BandFor(percent float64) Band {
	switch {
	case percent < 50:
		return BandNeedsRevision
	case percent < 80:
		return BandFairProgress
	default:
		return BandGoodProgress
	}
}

// Message returns the learner facing text for the band
func (b Band) Message() string {
	return bandMessages[b]
}

// Summary is the outcome of a finished quiz
type Summary struct {
	Correct int                      `json:"correct"`
	Total   int                      `json:"total"`
	Percent float64                  `json:"percent"`
	Band    Band                     `json:"band"`
	Message string                   `json:"message"`
	Results []*Answer                `json:"results"`
	Missed  []progress.MissedQuestion `json:"missed,omitempty"`
}

// Raw renders the score as "correct/total"
func (s *Summary) Raw() string {
	return fmt.Sprintf("%d/%d", s.Correct, s.Total)
}
