package quiz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/studycoach/internal/llm"
)

// Grader scores answers against a reference through an LLM provider
type Grader struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewGrader creates a grader backed by provider
func NewGrader(provider llm.Provider, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{provider: provider, logger: logger}
}

// Grade judges answer against reference. Unusable grader output and
// provider failures produce an incorrect verdict with FallbackFeedback;
// only cancellation of ctx is returned as an error.
func (g *Grader) Grade(ctx context.Context, question, reference, answer string) (*GradeResult, error) {
	resp, err := g.provider.Generate(ctx, &llm.Request{
		System:   graderSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: buildGradePrompt(question, reference, answer)}},
		JSON:     true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Error("grading failed", "provider", g.provider.Name(), "error", err)
		return fallbackGrade(), nil
	}

	result, err := parseGrade(resp.Content)
	if err != nil {
		g.logger.Warn("discarding grade response", "error", err)
		return fallbackGrade(), nil
	}
	return result, nil
}

func fallbackGrade() *GradeResult {
	return &GradeResult{Correct: false, Feedback: FallbackFeedback}
}

func parseGrade(content string) (*GradeResult, error) {
	var raw struct {
		Correct  *bool   `json:"correct"`
		Feedback *string `json:"feedback"`
	}
	if err := decodeLenient(content, &raw); err != nil {
		return nil, err
	}
	if raw.Correct == nil {
		return nil, fmt.Errorf("%w: correct must be a boolean", ErrInvalidSchema)
	}
	if raw.Feedback == nil {
		return nil, fmt.Errorf("%w: feedback must be a string", ErrInvalidSchema)
	}
	return &GradeResult{Correct: *raw.Correct, Feedback: *raw.Feedback}, nil
}
