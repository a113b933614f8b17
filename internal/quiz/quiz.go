// Package quiz turns retrieved note passages into questions and grades
// answers, using an LLM provider as the oracle for both.
package quiz

import (
	"errors"
	"strings"
)

// QuestionType distinguishes multiple-choice from free-form questions
type QuestionType string

const (
	TypeMCQ   QuestionType = "mcq"
	TypeShort QuestionType = "short"
)

// mcqOptionCount is the number of options every multiple-choice question carries
const mcqOptionCount = 4

// MaxExcludedPrompts bounds how many previously asked prompts are sent to
// the generator
const MaxExcludedPrompts = 50

// Question is one generated quiz item
type Question struct {
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
	Answer  string       `json:"answer"`
}

// Quiz is the generator output
type Quiz struct {
	Questions []Question `json:"questions"`
}

// GradeResult is the grader verdict for one answer
type GradeResult struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

// FallbackFeedback is returned when the grader output cannot be used
const FallbackFeedback = "Could not parse grading response as JSON."

var (
	ErrNoJSONObject  = errors.New("no JSON object found in response")
	ErrInvalidSchema = errors.New("response does not match schema")
)

// Validate checks a question against the generator schema
func (q Question) Validate() error {
	switch q.Type {
	case TypeMCQ:
		if len(q.Options) != mcqOptionCount {
			return errors.New("mcq must include exactly 4 options")
		}
	case TypeShort:
	default:
		return errors.New("type must be mcq or short")
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("prompt must be non-empty")
	}
	if strings.TrimSpace(q.Answer) == "" {
		return errors.New("answer must be non-empty")
	}
	return nil
}
