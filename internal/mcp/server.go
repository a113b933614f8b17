package mcp

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/felixgeelhaar/studycoach/internal/coach"
	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
)

// Defaults applied when a tool call leaves a field empty
const (
	defaultMinAttempts = 1
	defaultMissedLimit = 5
)

// ErrQuizzesUnavailable is returned by the quiz tools when no quiz service
// is configured
var ErrQuizzesUnavailable = errors.New("quizzes need an LLM provider and the notes index")

// Server wraps the MCP server with study coach tools
type Server struct {
	mcpServer *server.Server
	progress  progress.ProgressService
	quizzes   coach.QuizService
}

// Config contains configuration for the MCP server
type Config struct {
	Progress progress.ProgressService
	// Quizzes is optional; without it the quiz tools report an error
	Quizzes coach.QuizService
}

// NewServer creates a new MCP server for the study coach
func NewServer(cfg Config) *Server {
	s := &Server{
		progress: cfg.Progress,
		quizzes:  cfg.Quizzes,
	}
	if q, ok := cfg.Quizzes.(*coach.Service); ok && q == nil {
		s.quizzes = nil
	}

	s.mcpServer = server.New(server.Info{
		Name:    "studycoach",
		Version: "0.1.0",
	}, server.WithInstructions(`
Study Coach tracks quiz progress and adapts question selection.

Progress tools:
- studycoach_difficulty: Adaptive difficulty for a topic (easy, medium, hard)
- studycoach_excluded: Prompts already asked, to avoid repeating them
- studycoach_missed: Questions answered wrong most often
- studycoach_sessions: Logged quiz sessions
- studycoach_log_attempt: Record one graded answer
- studycoach_log_session: Record a finished quiz score

Quiz tools:
- studycoach_quiz_start: Generate a quiz from the indexed notes
- studycoach_quiz_answer: Answer one question
- studycoach_quiz_finish: Grade and log the quiz
`))

	s.registerTools()
	return s
}

// registerTools registers all study coach MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("studycoach_difficulty").
		Description("Get the adaptive difficulty for a topic from past accuracy.").
		Handler(s.handleDifficulty)

	s.mcpServer.Tool("studycoach_excluded").
		Description("List previously asked prompts that new questions should not repeat.").
		Handler(s.handleExcluded)

	s.mcpServer.Tool("studycoach_missed").
		Description("Rank the questions answered wrong most often.").
		Handler(s.handleMissed)

	s.mcpServer.Tool("studycoach_sessions").
		Description("List logged quiz sessions, optionally for one topic.").
		Handler(s.handleSessions)

	s.mcpServer.Tool("studycoach_log_attempt").
		Description("Record one graded answer in the attempt ledger.").
		Handler(s.handleLogAttempt)

	s.mcpServer.Tool("studycoach_log_session").
		Description("Record the score of a finished quiz.").
		Handler(s.handleLogSession)

	s.mcpServer.Tool("studycoach_quiz_start").
		Description("Generate a quiz on a topic from the indexed notes.").
		Handler(s.handleQuizStart)

	s.mcpServer.Tool("studycoach_quiz_answer").
		Description("Answer one question of a running quiz.").
		Handler(s.handleQuizAnswer)

	s.mcpServer.Tool("studycoach_quiz_finish").
		Description("Grade pending answers, log the session and return the summary.").
		Handler(s.handleQuizFinish)
}

// Input/Output types for tools

type TopicInput struct {
	Topic string `json:"topic,omitempty" jsonschema:"description=Topic name; empty means all topics"`
}

type DifficultyOutput struct {
	Topic      string              `json:"topic"`
	Accuracy   float64             `json:"accuracy"`
	Difficulty progress.Difficulty `json:"difficulty"`
}

type ExcludedInput struct {
	Topic string `json:"topic,omitempty" jsonschema:"description=Topic name; empty means all topics"`
	Mode  string `json:"mode,omitempty" jsonschema:"description=Which prompts to exclude,enum=all,enum=correct"`
}

type ExcludedOutput struct {
	Mode    progress.AvoidMode `json:"mode"`
	Prompts []string           `json:"prompts"`
}

type MissedInput struct {
	Topic       string `json:"topic,omitempty" jsonschema:"description=Topic name; empty means all topics"`
	MinAttempts int    `json:"min_attempts,omitempty" jsonschema:"description=Minimum attempts for a question to qualify (default: 1)"`
	Limit       int    `json:"limit,omitempty" jsonschema:"description=Maximum questions returned (default: 5)"`
}

type MissedOutput struct {
	Missed []progress.MissedQuestion `json:"missed"`
}

type SessionsOutput struct {
	Sessions []progress.SessionRecord `json:"sessions"`
}

type LogAttemptInput struct {
	Topic         string   `json:"topic" jsonschema:"description=Topic the question belongs to"`
	Prompt        string   `json:"prompt" jsonschema:"description=Question prompt as shown to the learner"`
	StudentAnswer string   `json:"student_answer" jsonschema:"description=Answer given by the learner"`
	Correct       bool     `json:"correct" jsonschema:"description=Whether the answer was graded correct"`
	ResponseMs    *float64 `json:"response_ms,omitempty" jsonschema:"description=Time to answer in milliseconds"`
}

type LogAttemptOutput struct {
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

type LogSessionInput struct {
	Topic        string  `json:"topic" jsonschema:"description=Quiz topic"`
	Score        float64 `json:"score" jsonschema:"description=Score as a percentage"`
	Raw          string  `json:"raw,omitempty" jsonschema:"description=Raw score such as 3/4"`
	AvoidMode    string  `json:"avoid_mode,omitempty" jsonschema:"description=Exclusion mode used,enum=all,enum=correct"`
	Difficulty   string  `json:"difficulty,omitempty" jsonschema:"description=Difficulty used,enum=easy,enum=medium,enum=hard"`
	FeedbackMode string  `json:"feedback_mode,omitempty" jsonschema:"description=Feedback mode used,enum=immediate,enum=end"`
	ShowMissed   *bool   `json:"show_missed,omitempty" jsonschema:"description=Whether the missed report was shown"`
}

type MessageOutput struct {
	Message string `json:"message"`
}

type QuizStartInput struct {
	Topic      string `json:"topic" jsonschema:"description=Topic to quiz on"`
	N          int    `json:"n,omitempty" jsonschema:"description=Number of questions (default: 4)"`
	Avoid      string `json:"avoid,omitempty" jsonschema:"description=Exclusion mode,enum=all,enum=correct"`
	Feedback   string `json:"feedback,omitempty" jsonschema:"description=When answers are graded,enum=immediate,enum=end"`
	ShowMissed bool   `json:"show_missed,omitempty" jsonschema:"description=Include the missed-questions report in the summary"`
}

type QuizQuestion struct {
	Index   int      `json:"index"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

type QuizStartOutput struct {
	QuizID     string              `json:"quiz_id"`
	Difficulty progress.Difficulty `json:"difficulty"`
	Questions  []QuizQuestion      `json:"questions"`
}

type QuizAnswerInput struct {
	QuizID     string   `json:"quiz_id" jsonschema:"description=Quiz ID from studycoach_quiz_start"`
	Index      int      `json:"index" jsonschema:"description=Zero-based question index"`
	Answer     string   `json:"answer" jsonschema:"description=The learner's answer"`
	ResponseMs *float64 `json:"response_ms,omitempty" jsonschema:"description=Time to answer in milliseconds"`
}

type QuizAnswerOutput struct {
	Graded   bool   `json:"graded"`
	Correct  bool   `json:"correct,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

type QuizFinishInput struct {
	QuizID string `json:"quiz_id" jsonschema:"description=Quiz ID from studycoach_quiz_start"`
}

// Tool handlers

func (s *Server) handleDifficulty(ctx context.Context, input TopicInput) (DifficultyOutput, error) {
	accuracy, err := s.progress.TopicAccuracy(ctx, input.Topic)
	if err != nil {
		return DifficultyOutput{}, fmt.Errorf("topic accuracy: %w", err)
	}
	return DifficultyOutput{
		Topic:      input.Topic,
		Accuracy:   accuracy,
		Difficulty: progress.DifficultyFor(accuracy),
	}, nil
}

func (s *Server) handleExcluded(ctx context.Context, input ExcludedInput) (ExcludedOutput, error) {
	mode, err := progress.ParseAvoidMode(input.Mode)
	if err != nil {
		return ExcludedOutput{}, err
	}
	prompts, err := s.progress.ExcludedPrompts(ctx, mode, input.Topic)
	if err != nil {
		return ExcludedOutput{}, fmt.Errorf("excluded prompts: %w", err)
	}
	if len(prompts) > quiz.MaxExcludedPrompts {
		prompts = prompts[:quiz.MaxExcludedPrompts]
	}
	return ExcludedOutput{Mode: mode, Prompts: prompts}, nil
}

func (s *Server) handleMissed(ctx context.Context, input MissedInput) (MissedOutput, error) {
	minAttempts := input.MinAttempts
	if minAttempts <= 0 {
		minAttempts = defaultMinAttempts
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultMissedLimit
	}
	missed, err := s.progress.FrequentlyMissed(ctx, input.Topic, minAttempts, limit)
	if err != nil {
		return MissedOutput{}, fmt.Errorf("frequently missed: %w", err)
	}
	return MissedOutput{Missed: missed}, nil
}

func (s *Server) handleSessions(ctx context.Context, input TopicInput) (SessionsOutput, error) {
	sessions, err := s.progress.Sessions(ctx, input.Topic)
	if err != nil {
		return SessionsOutput{}, fmt.Errorf("sessions: %w", err)
	}
	return SessionsOutput{Sessions: sessions}, nil
}

func (s *Server) handleLogAttempt(ctx context.Context, input LogAttemptInput) (LogAttemptOutput, error) {
	responseMs, err := coerceOptional(input.ResponseMs)
	if err != nil {
		return LogAttemptOutput{}, err
	}
	err = s.progress.LogAttempt(ctx, progress.AttemptInput{
		Topic:         input.Topic,
		Prompt:        input.Prompt,
		StudentAnswer: input.StudentAnswer,
		Correct:       input.Correct,
		ResponseMs:    responseMs,
	})
	if err != nil {
		return LogAttemptOutput{}, err
	}
	return LogAttemptOutput{
		QuestionID: progress.QuestionID(input.Prompt),
		Message:    "Attempt logged",
	}, nil
}

func (s *Server) handleLogSession(ctx context.Context, input LogSessionInput) (MessageOutput, error) {
	details := progress.SessionDetails{
		Raw:          input.Raw,
		AvoidMode:    progress.AvoidMode(input.AvoidMode),
		Difficulty:   progress.Difficulty(input.Difficulty),
		FeedbackMode: input.FeedbackMode,
		ShowMissed:   input.ShowMissed,
	}
	if err := s.progress.LogSession(ctx, input.Topic, input.Score, details); err != nil {
		return MessageOutput{}, err
	}
	return MessageOutput{Message: fmt.Sprintf("Session logged: %s %.1f%%", input.Topic, input.Score)}, nil
}

func (s *Server) handleQuizStart(ctx context.Context, input QuizStartInput) (QuizStartOutput, error) {
	if s.quizzes == nil {
		return QuizStartOutput{}, ErrQuizzesUnavailable
	}
	avoid, err := progress.ParseAvoidMode(input.Avoid)
	if err != nil {
		return QuizStartOutput{}, err
	}
	feedback, err := coach.ParseFeedbackMode(input.Feedback)
	if err != nil {
		return QuizStartOutput{}, err
	}

	session, err := s.quizzes.Start(ctx, coach.StartRequest{
		Topic:      input.Topic,
		Count:      input.N,
		Avoid:      avoid,
		Feedback:   feedback,
		ShowMissed: input.ShowMissed,
	})
	if err != nil {
		return QuizStartOutput{}, fmt.Errorf("failed to start quiz: %w", err)
	}

	questions := make([]QuizQuestion, len(session.Questions))
	for i, q := range session.Questions {
		questions[i] = QuizQuestion{Index: i, Type: string(q.Type), Prompt: q.Prompt, Options: q.Options}
	}
	return QuizStartOutput{
		QuizID:     session.ID,
		Difficulty: session.Difficulty,
		Questions:  questions,
	}, nil
}

func (s *Server) handleQuizAnswer(ctx context.Context, input QuizAnswerInput) (QuizAnswerOutput, error) {
	if s.quizzes == nil {
		return QuizAnswerOutput{}, ErrQuizzesUnavailable
	}
	responseMs, err := coerceOptional(input.ResponseMs)
	if err != nil {
		return QuizAnswerOutput{}, err
	}
	answer, err := s.quizzes.Answer(ctx, input.QuizID, input.Index, input.Answer, responseMs)
	if err != nil {
		return QuizAnswerOutput{}, err
	}
	return QuizAnswerOutput{
		Graded:   answer.Graded,
		Correct:  answer.Correct,
		Feedback: answer.Feedback,
	}, nil
}

func (s *Server) handleQuizFinish(ctx context.Context, input QuizFinishInput) (coach.Summary, error) {
	if s.quizzes == nil {
		return coach.Summary{}, ErrQuizzesUnavailable
	}
	summary, err := s.quizzes.Finish(ctx, input.QuizID)
	if err != nil {
		return coach.Summary{}, err
	}
	return *summary, nil
}

func coerceOptional(ms *float64) (*int64, error) {
	if ms == nil {
		return nil, nil
	}
	return progress.CoerceResponseMs(*ms)
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
