package daemon

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/studycoach/internal/coach"
	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
)

// Defaults for the missed-questions report
const (
	defaultMissedMinAttempts = 1
	defaultMissedLimit       = 5
)

// Notes handlers

type indexNotesRequest struct {
	Dir     string `json:"dir,omitempty"`
	Rebuild bool   `json:"rebuild,omitempty"`
}

func (s *Server) handleIndexNotes(w http.ResponseWriter, r *http.Request) {
	if s.notes == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "notes index not available", nil)
		return
	}

	var req indexNotesRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	dir := req.Dir
	if dir == "" {
		dir = s.notesDir
	}

	index := s.notes.IndexDirectory
	if req.Rebuild {
		index = s.notes.Rebuild
	}
	result, err := index(r.Context(), dir)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to index notes", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	if s.notes == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "notes index not available", nil)
		return
	}
	notes, err := s.notes.ListNotes()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to list notes", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"notes": notes})
}

// Quiz handlers

type startQuizRequest struct {
	Topic      string `json:"topic"`
	N          int    `json:"n,omitempty"`
	Avoid      string `json:"avoid,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
	ShowMissed *bool  `json:"show_missed,omitempty"`
}

// questionView hides the reference answer while a quiz is running
type questionView struct {
	Index   int      `json:"index"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

type quizView struct {
	ID           string              `json:"id"`
	Topic        string              `json:"topic"`
	Status       coach.Status        `json:"status"`
	Difficulty   progress.Difficulty `json:"difficulty"`
	AvoidMode    progress.AvoidMode  `json:"avoid_mode"`
	FeedbackMode coach.FeedbackMode  `json:"feedback_mode"`
	ShowMissed   bool                `json:"show_missed"`
	Questions    []questionView      `json:"questions"`
	Answers      []*coach.Answer     `json:"answers"`
	Summary      *coach.Summary      `json:"summary,omitempty"`
}

func newQuizView(session *coach.QuizSession) quizView {
	reveal := session.Status != coach.StatusActive
	questions := make([]questionView, len(session.Questions))
	for i, q := range session.Questions {
		questions[i] = questionView{
			Index:   i,
			Type:    string(q.Type),
			Prompt:  q.Prompt,
			Options: q.Options,
		}
		if reveal {
			questions[i].Answer = q.Answer
		}
	}

	// End-mode answers carry no verdict until Finish
	answers := session.Answers
	if session.FeedbackMode == coach.FeedbackEnd && !reveal {
		answers = make([]*coach.Answer, len(session.Answers))
		for i, a := range session.Answers {
			answers[i] = &coach.Answer{Index: a.Index, Answer: a.Answer, ResponseMs: a.ResponseMs}
		}
	}

	return quizView{
		ID:           session.ID,
		Topic:        session.Topic,
		Status:       session.Status,
		Difficulty:   session.Difficulty,
		AvoidMode:    session.AvoidMode,
		FeedbackMode: session.FeedbackMode,
		ShowMissed:   session.ShowMissed,
		Questions:    questions,
		Answers:      answers,
		Summary:      session.Summary,
	}
}

func (s *Server) requireQuizzes(w http.ResponseWriter) bool {
	if s.quizzes == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "quizzes need an LLM provider and the notes index", nil)
		return false
	}
	return true
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	if !s.requireQuizzes(w) {
		return
	}

	var req startQuizRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	avoid, err := progress.ParseAvoidMode(firstNonEmpty(req.Avoid, s.cfg.Quiz.Avoid))
	if err != nil {
		s.serviceError(w, "invalid avoid mode", err)
		return
	}
	feedback, err := coach.ParseFeedbackMode(firstNonEmpty(req.Feedback, s.cfg.Quiz.Feedback))
	if err != nil {
		s.serviceError(w, "invalid feedback mode", err)
		return
	}
	count := req.N
	if count <= 0 {
		count = s.cfg.Quiz.Questions
	}
	showMissed := s.cfg.Quiz.ShowMissed
	if req.ShowMissed != nil {
		showMissed = *req.ShowMissed
	}

	session, err := s.quizzes.Start(r.Context(), coach.StartRequest{
		Topic:      req.Topic,
		Count:      count,
		Avoid:      avoid,
		Feedback:   feedback,
		ShowMissed: showMissed,
	})
	if err != nil {
		s.serviceError(w, "failed to start quiz", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, newQuizView(session))
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	if !s.requireQuizzes(w) {
		return
	}
	sessions, err := s.quizzes.ListActive(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to list quizzes", err)
		return
	}
	views := make([]quizView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, newQuizView(session))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"quizzes": views})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	if !s.requireQuizzes(w) {
		return
	}
	session, err := s.quizzes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "quiz not found", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, newQuizView(session))
}

type answerRequest struct {
	Index      *int   `json:"index"`
	Answer     string `json:"answer"`
	ResponseMs any    `json:"response_ms,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if !s.requireQuizzes(w) {
		return
	}

	var req answerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		s.jsonError(w, http.StatusBadRequest, "index is required", nil)
		return
	}
	responseMs, err := progress.CoerceResponseMs(req.ResponseMs)
	if err != nil {
		s.serviceError(w, "invalid response_ms", err)
		return
	}

	answer, err := s.quizzes.Answer(r.Context(), r.PathValue("id"), *req.Index, req.Answer, responseMs)
	if err != nil {
		s.serviceError(w, "failed to record answer", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, answer)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	if !s.requireQuizzes(w) {
		return
	}
	summary, err := s.quizzes.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to finish quiz", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

func (s *Server) handleStopQuiz(w http.ResponseWriter, r *http.Request) {
	if !s.requireQuizzes(w) {
		return
	}
	if err := s.quizzes.Stop(r.Context(), r.PathValue("id")); err != nil {
		s.serviceError(w, "failed to stop quiz", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Progress handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.progress.Sessions(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		s.serviceError(w, "failed to read sessions", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type logSessionRequest struct {
	Topic   string   `json:"topic"`
	Score   *float64 `json:"score"`
	Details struct {
		Raw          string `json:"raw"`
		AvoidMode    string `json:"avoid_mode"`
		Difficulty   string `json:"difficulty"`
		FeedbackMode string `json:"feedback_mode"`
		ShowMissed   *bool  `json:"show_missed,omitempty"`
	} `json:"details"`
}

func (s *Server) handleLogSession(w http.ResponseWriter, r *http.Request) {
	var req logSessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Score == nil {
		s.jsonError(w, http.StatusBadRequest, "score is required", nil)
		return
	}

	details := progress.SessionDetails{
		Raw:          req.Details.Raw,
		AvoidMode:    progress.AvoidMode(req.Details.AvoidMode),
		Difficulty:   progress.Difficulty(req.Details.Difficulty),
		FeedbackMode: req.Details.FeedbackMode,
		ShowMissed:   req.Details.ShowMissed,
	}
	if err := s.progress.LogSession(r.Context(), req.Topic, *req.Score, details); err != nil {
		s.serviceError(w, "failed to log session", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]any{"logged": true})
}

type logAttemptRequest struct {
	Topic         string `json:"topic"`
	Prompt        string `json:"prompt"`
	StudentAnswer string `json:"student_answer"`
	Correct       bool   `json:"correct"`
	ResponseMs    any    `json:"response_ms,omitempty"`
}

func (s *Server) handleLogAttempt(w http.ResponseWriter, r *http.Request) {
	var req logAttemptRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	responseMs, err := progress.CoerceResponseMs(req.ResponseMs)
	if err != nil {
		s.serviceError(w, "invalid response_ms", err)
		return
	}

	err = s.progress.LogAttempt(r.Context(), progress.AttemptInput{
		Topic:         req.Topic,
		Prompt:        req.Prompt,
		StudentAnswer: req.StudentAnswer,
		Correct:       req.Correct,
		ResponseMs:    responseMs,
	})
	if err != nil {
		s.serviceError(w, "failed to log attempt", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]any{
		"logged":      true,
		"question_id": progress.QuestionID(req.Prompt),
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.progress.Topics(r.Context())
	if err != nil {
		s.serviceError(w, "failed to read topics", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleMissed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minAttempts, err := intParam(q.Get("min_attempts"), defaultMissedMinAttempts)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid min_attempts", err)
		return
	}
	limit, err := intParam(q.Get("limit"), defaultMissedLimit)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}

	missed, err := s.progress.FrequentlyMissed(r.Context(), q.Get("topic"), minAttempts, limit)
	if err != nil {
		s.serviceError(w, "failed to rank missed questions", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"missed": missed})
}

func (s *Server) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	accuracy, err := s.progress.TopicAccuracy(r.Context(), topic)
	if err != nil {
		s.serviceError(w, "failed to compute accuracy", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"topic":      topic,
		"accuracy":   accuracy,
		"difficulty": progress.DifficultyFor(accuracy),
	})
}

func (s *Server) handleExcluded(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := progress.ParseAvoidMode(q.Get("mode"))
	if err != nil {
		s.serviceError(w, "invalid mode", err)
		return
	}

	prompts, err := s.progress.ExcludedPrompts(r.Context(), mode, q.Get("topic"))
	if err != nil {
		s.serviceError(w, "failed to compute exclusions", err)
		return
	}
	// The generator only ever sees the first MaxExcludedPrompts
	forwarded := min(len(prompts), quiz.MaxExcludedPrompts)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"mode":      mode,
		"prompts":   prompts,
		"forwarded": forwarded,
	})
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
