package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/docindex"
	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
	"github.com/google/uuid"
)

// Defaults applied by Start
const (
	DefaultQuestionCount = 4
	missedReportMin      = 1
	missedReportLimit    = 5
)

// Service runs quizzes: it ties retrieval, the policy engine, the oracles
// and the progress ledger together. All run state lives in QuizSession.
type Service struct {
	store     *Store
	progress  progress.ProgressService
	retriever ContextRetriever
	generator QuestionGenerator
	grader    AnswerGrader
	topK      int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a quiz service
func NewService(store *Store, prog progress.ProgressService, retriever ContextRetriever, generator QuestionGenerator, grader AnswerGrader) *Service {
	return &Service{
		store:     store,
		progress:  prog,
		retriever: retriever,
		generator: generator,
		grader:    grader,
		topK:      docindex.DefaultTopK,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// SetLogger replaces the service logger
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetTopK sets how many passages ground each quiz; k <= 0 keeps the default
func (s *Service) SetTopK(k int) {
	if k > 0 {
		s.topK = k
	}
}

// StartRequest contains the options for a new quiz
type StartRequest struct {
	Topic      string
	Count      int
	Avoid      progress.AvoidMode
	Feedback   FeedbackMode
	ShowMissed bool
}

// Start retrieves context, applies exclusions and adaptive difficulty,
// generates questions and persists the new session.
func (s *Service) Start(ctx context.Context, req StartRequest) (*QuizSession, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	if req.Count <= 0 {
		req.Count = DefaultQuestionCount
	}
	if req.Avoid == "" {
		req.Avoid = progress.AvoidAll
	}
	if req.Feedback == "" {
		req.Feedback = FeedbackImmediate
	}

	passages, err := s.retriever.RetrieveContext(ctx, topic, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if strings.TrimSpace(passages) == "" {
		return nil, ErrNoContext
	}

	excluded, err := s.progress.ExcludedPrompts(ctx, req.Avoid, topic)
	if err != nil {
		return nil, fmt.Errorf("excluded prompts: %w", err)
	}
	difficulty, err := s.progress.AdaptiveDifficulty(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("adaptive difficulty: %w", err)
	}

	generated, err := s.generator.Generate(ctx, quiz.GenerateRequest{
		Context:    passages,
		Topic:      topic,
		Count:      req.Count,
		Excluded:   excluded,
		Difficulty: difficulty,
	})
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}
	if generated == nil || len(generated.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	now := s.now().UTC()
	session := &QuizSession{
		ID:           uuid.New().String(),
		Topic:        topic,
		AvoidMode:    req.Avoid,
		FeedbackMode: req.Feedback,
		ShowMissed:   req.ShowMissed,
		Difficulty:   difficulty,
		Questions:    generated.Questions,
		Answers:      []*Answer{},
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save quiz session: %w", err)
	}

	s.logger.Info("quiz started",
		"id", session.ID,
		"topic", topic,
		"questions", len(session.Questions),
		"difficulty", difficulty,
		"excluded", len(excluded))
	return session, nil
}

// Get returns a session by id
func (s *Service) Get(ctx context.Context, id string) (*QuizSession, error) {
	return s.store.Get(id)
}

// ListActive returns the sessions still being answered
func (s *Service) ListActive(ctx context.Context) ([]*QuizSession, error) {
	return s.store.ListActive()
}

// Answer records the answer to question index. In immediate mode the
// answer is graded and logged before returning.
func (s *Service) Answer(ctx context.Context, id string, index int, answer string, responseMs *int64) (*Answer, error) {
	if responseMs != nil && *responseMs < 0 {
		return nil, fmt.Errorf("%w: %d", progress.ErrInvalidResponseTime, *responseMs)
	}

	session, err := s.activeSession(id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(session.Questions) {
		return nil, fmt.Errorf("%w: %d", ErrQuestionOutOfRange, index)
	}
	if session.answerFor(index) != nil {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyAnswered, index)
	}

	record := &Answer{Index: index, Answer: answer, ResponseMs: responseMs}
	if session.FeedbackMode == FeedbackImmediate {
		if err := s.gradeAndLog(ctx, session, record); err != nil {
			return nil, err
		}
	}

	session.Answers = append(session.Answers, record)
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save quiz session: %w", err)
	}
	return record, nil
}

// Finish grades any pending answers, logs the session and returns the
// summary. Unanswered questions count against the score but are not
// logged as attempts.
func (s *Service) Finish(ctx context.Context, id string) (*Summary, error) {
	session, err := s.activeSession(id)
	if err != nil {
		return nil, err
	}

	results := make([]*Answer, 0, len(session.Questions))
	correct := 0
	for i := range session.Questions {
		a := session.answerFor(i)
		if a == nil {
			continue
		}
		if !a.Graded {
			if err := s.gradeAndLog(ctx, session, a); err != nil {
				return nil, err
			}
			// Persist each verdict so a retried Finish does not log it twice.
			if err := s.store.Save(session); err != nil {
				return nil, fmt.Errorf("save quiz session: %w", err)
			}
		}
		if a.Correct {
			correct++
		}
		results = append(results, a)
	}

	total := len(session.Questions)
	percent := progress.ScorePercent(correct, total)
	band := BandFor(percent)
	summary := &Summary{
		Correct: correct,
		Total:   total,
		Percent: percent,
		Band:    band,
		Message: band.Message(),
		Results: results,
	}

	if session.ShowMissed {
		missed, err := s.progress.FrequentlyMissed(ctx, session.Topic, missedReportMin, missedReportLimit)
		if err != nil {
			return nil, fmt.Errorf("frequently missed: %w", err)
		}
		summary.Missed = missed
	}

	showMissed := session.ShowMissed
	details := progress.SessionDetails{
		Raw:          summary.Raw(),
		AvoidMode:    session.AvoidMode,
		Difficulty:   session.Difficulty,
		FeedbackMode: string(session.FeedbackMode),
		ShowMissed:   &showMissed,
	}
	if err := s.progress.LogSession(ctx, session.Topic, percent, details); err != nil {
		return nil, err
	}

	session.Status = StatusCompleted
	session.Summary = summary
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save quiz session: %w", err)
	}

	s.logger.Info("quiz finished", "id", id, "topic", session.Topic, "score", summary.Raw())
	return summary, nil
}

// Stop abandons an active session without logging a session record
func (s *Service) Stop(ctx context.Context, id string) error {
	session, err := s.activeSession(id)
	if err != nil {
		return err
	}
	session.Status = StatusAbandoned
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(session); err != nil {
		return fmt.Errorf("save quiz session: %w", err)
	}
	s.logger.Info("quiz abandoned", "id", id, "answered", len(session.Answers))
	return nil
}

func (s *Service) activeSession(id string) (*QuizSession, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusActive {
		return nil, ErrSessionNotActive
	}
	return session, nil
}

// gradeAndLog grades a and appends it to the attempt ledger
func (s *Service) gradeAndLog(ctx context.Context, session *QuizSession, a *Answer) error {
	q := session.Questions[a.Index]
	result, err := s.grader.Grade(ctx, q.Prompt, q.Answer, a.Answer)
	if err != nil {
		return fmt.Errorf("grade answer: %w", err)
	}

	err = s.progress.LogAttempt(ctx, progress.AttemptInput{
		Topic:         session.Topic,
		Prompt:        q.Prompt,
		StudentAnswer: a.Answer,
		Correct:       result.Correct,
		ResponseMs:    a.ResponseMs,
	})
	if err != nil {
		return err
	}

	a.Graded = true
	a.Correct = result.Correct
	a.Feedback = result.Feedback
	return nil
}
