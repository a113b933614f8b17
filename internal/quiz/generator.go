package quiz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/studycoach/internal/llm"
	"github.com/felixgeelhaar/studycoach/internal/progress"
)

// DefaultQuestionCount is used when a request asks for no questions
const DefaultQuestionCount = 4

// GenerateRequest describes one quiz to generate
type GenerateRequest struct {
	Context    string
	Topic      string
	Count      int
	Excluded   []string
	Difficulty progress.Difficulty
}

// Generator produces quizzes through an LLM provider
type Generator struct {
	provider    llm.Provider
	logger      *slog.Logger
	temperature float64
}

// NewGenerator creates a generator backed by provider
func NewGenerator(provider llm.Provider, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider:    provider,
		logger:      logger,
		temperature: 0.2,
	}
}

// Generate asks the provider for a quiz. Provider failures and responses
// that do not match the schema yield an empty quiz rather than an error;
// only cancellation of ctx is returned.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*Quiz, error) {
	if req.Count <= 0 {
		req.Count = DefaultQuestionCount
	}

	resp, err := g.provider.Generate(ctx, &llm.Request{
		System:      generatorSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildGeneratePrompt(req)}},
		Temperature: g.temperature,
		JSON:        true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Error("quiz generation failed", "provider", g.provider.Name(), "topic", req.Topic, "error", err)
		return &Quiz{Questions: []Question{}}, nil
	}

	quiz, err := parseQuiz(resp.Content)
	if err != nil {
		g.logger.Warn("discarding quiz response", "topic", req.Topic, "error", err)
		return &Quiz{Questions: []Question{}}, nil
	}

	g.logger.Debug("quiz generated", "topic", req.Topic, "questions", len(quiz.Questions), "difficulty", req.Difficulty)
	return quiz, nil
}

// parseQuiz decodes and validates generator output. One invalid question
// rejects the whole quiz.
func parseQuiz(content string) (*Quiz, error) {
	var raw struct {
		Questions *[]Question `json:"questions"`
	}
	if err := decodeLenient(content, &raw); err != nil {
		return nil, err
	}
	if raw.Questions == nil {
		return nil, fmt.Errorf("%w: missing questions list", ErrInvalidSchema)
	}
	for i, q := range *raw.Questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidSchema, i, err)
		}
	}
	return &Quiz{Questions: *raw.Questions}, nil
}
