package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/coach"
	"github.com/felixgeelhaar/studycoach/internal/config"
	"github.com/felixgeelhaar/studycoach/internal/docindex"
	"github.com/felixgeelhaar/studycoach/internal/llm"
	"github.com/felixgeelhaar/studycoach/internal/progress"
)

// Version is reported by /v1/status
const Version = "0.1.0"

const maxBodyBytes = 1 << 20

// NotesService is the part of the notes index the daemon exposes
type NotesService interface {
	IndexDirectory(ctx context.Context, basePath string) (*docindex.IndexResult, error)
	Rebuild(ctx context.Context, basePath string) (*docindex.IndexResult, error)
	ListNotes() ([]docindex.NoteSummary, error)
	Stats() (*docindex.IndexStats, error)
}

var _ NotesService = (*docindex.Service)(nil)

// Server represents the studycoach daemon HTTP server
type Server struct {
	cfg    *config.LocalConfig
	server *http.Server
	router *http.ServeMux

	// Services
	llmRegistry llm.LLMRegistry
	progress    progress.ProgressService
	quizzes     coach.QuizService
	notes       NotesService
	notesDir    string
}

// ServerConfig holds the services the server is built on. Quizzes and
// Notes may be nil; their routes then answer 503.
type ServerConfig struct {
	Config   *config.LocalConfig
	Registry llm.LLMRegistry
	Progress progress.ProgressService
	Quizzes  coach.QuizService
	Notes    NotesService
	// NotesDir is indexed when a request names no folder; defaults to
	// notes.dir from Config
	NotesDir string
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Progress == nil {
		return nil, errors.New("progress service is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = llm.NewRegistry()
	}

	s := &Server{
		cfg:         cfg.Config,
		router:      http.NewServeMux(),
		llmRegistry: cfg.Registry,
		progress:    cfg.Progress,
		quizzes:     cfg.Quizzes,
		notes:       cfg.Notes,
		notesDir:    cfg.NotesDir,
	}
	if s.notesDir == "" {
		s.notesDir = cfg.Config.Notes.Dir
	}
	// A typed nil pointer would defeat the nil checks in the handlers
	if q, ok := cfg.Quizzes.(*coach.Service); ok && q == nil {
		s.quizzes = nil
	}
	if n, ok := cfg.Notes.(*docindex.Service); ok && n == nil {
		s.notes = nil
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // quiz generation waits on the LLM
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return chain(s.router, withRequestID, withRecovery, withLogging)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & Status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Notes index
	s.router.HandleFunc("POST /v1/notes/index", s.handleIndexNotes)
	s.router.HandleFunc("GET /v1/notes", s.handleListNotes)

	// Quiz runs
	s.router.HandleFunc("POST /v1/quizzes", s.handleStartQuiz)
	s.router.HandleFunc("GET /v1/quizzes", s.handleListQuizzes)
	s.router.HandleFunc("GET /v1/quizzes/{id}", s.handleGetQuiz)
	s.router.HandleFunc("POST /v1/quizzes/{id}/answers", s.handleAnswer)
	s.router.HandleFunc("POST /v1/quizzes/{id}/finish", s.handleFinish)
	s.router.HandleFunc("DELETE /v1/quizzes/{id}", s.handleStopQuiz)

	// Progress
	s.router.HandleFunc("GET /v1/progress/sessions", s.handleListSessions)
	s.router.HandleFunc("POST /v1/progress/sessions", s.handleLogSession)
	s.router.HandleFunc("POST /v1/progress/attempts", s.handleLogAttempt)
	s.router.HandleFunc("GET /v1/progress/topics", s.handleTopics)
	s.router.HandleFunc("GET /v1/progress/missed", s.handleMissed)
	s.router.HandleFunc("GET /v1/progress/difficulty", s.handleDifficulty)
	s.router.HandleFunc("GET /v1/progress/excluded", s.handleExcluded)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting studycoach daemon",
		"addr", s.server.Addr,
		"llm_providers", s.llmRegistry.List(),
		"storage", s.cfg.Storage.Backend,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":           "running",
		"version":          Version,
		"llm_providers":    s.llmRegistry.List(),
		"default_provider": s.llmRegistry.DefaultName(),
		"storage":          s.cfg.Storage.Backend,
		"quizzes":          s.quizzes != nil,
		"events":           s.cfg.Events.Enabled,
	}
	if s.notes != nil {
		if stats, err := s.notes.Stats(); err == nil {
			status["notes"] = stats
		} else {
			slog.Warn("notes stats unavailable", "error", err)
		}
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// serviceError maps a service error onto a status code and writes it
func (s *Server) serviceError(w http.ResponseWriter, message string, err error) {
	s.jsonError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, progress.ErrInvalidResponseTime),
		errors.Is(err, progress.ErrInvalidScore),
		errors.Is(err, progress.ErrEmptyPrompt),
		errors.Is(err, progress.ErrInvalidAvoidMode),
		errors.Is(err, coach.ErrTopicRequired),
		errors.Is(err, coach.ErrInvalidFeedbackMode),
		errors.Is(err, coach.ErrQuestionOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, coach.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, coach.ErrSessionNotActive),
		errors.Is(err, coach.ErrAlreadyAnswered):
		return http.StatusConflict
	case errors.Is(err, coach.ErrNoContext),
		errors.Is(err, coach.ErrNoQuestions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a bounded JSON body into v
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}
