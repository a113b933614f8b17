package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/studycoach/internal/coach"
	"github.com/felixgeelhaar/studycoach/internal/config"
	"github.com/felixgeelhaar/studycoach/internal/docindex"
	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
)

type fakeNotes struct {
	indexedDir string
	rebuilt    bool
}

func (n *fakeNotes) IndexDirectory(ctx context.Context, basePath string) (*docindex.IndexResult, error) {
	n.indexedDir = basePath
	return &docindex.IndexResult{NotesFound: 2, NotesIndexed: 2}, nil
}

func (n *fakeNotes) Rebuild(ctx context.Context, basePath string) (*docindex.IndexResult, error) {
	n.rebuilt = true
	return n.IndexDirectory(ctx, basePath)
}

func (n *fakeNotes) ListNotes() ([]docindex.NoteSummary, error) {
	return []docindex.NoteSummary{{ID: "n1", Path: "thermo.md"}}, nil
}

func (n *fakeNotes) Stats() (*docindex.IndexStats, error) {
	return &docindex.IndexStats{}, nil
}

func (n *fakeNotes) RetrieveContext(ctx context.Context, topic string, k int) (string, error) {
	return "Entropy measures disorder.", nil
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(ctx context.Context, req quiz.GenerateRequest) (*quiz.Quiz, error) {
	return &quiz.Quiz{Questions: []quiz.Question{
		{Type: quiz.TypeMCQ, Prompt: "What is entropy?", Options: []string{"A) Disorder", "B) Mass", "C) Charge", "D) Spin"}, Answer: "A"},
		{Type: quiz.TypeShort, Prompt: "Define heat capacity.", Answer: "heat per degree"},
	}}, nil
}

type exactGrader struct{}

func (exactGrader) Grade(ctx context.Context, question, reference, answer string) (*quiz.GradeResult, error) {
	if strings.EqualFold(strings.TrimSpace(answer), reference) {
		return &quiz.GradeResult{Correct: true, Feedback: "Correct."}, nil
	}
	return &quiz.GradeResult{Correct: false, Feedback: "Expected " + reference + "."}, nil
}

type testEnv struct {
	handler  http.Handler
	progress *progress.Service
	notes    *fakeNotes
}

func newTestEnv(t *testing.T, withQuizzes bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	prog := progress.NewService(progress.NewMemoryStore())
	prog.SetLogger(logger)
	notes := &fakeNotes{}

	cfg := ServerConfig{
		Config:   config.DefaultLocalConfig(),
		Progress: prog,
		Notes:    notes,
	}
	if withQuizzes {
		store, err := coach.NewStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}
		svc := coach.NewService(store, prog, notes, fixedGenerator{}, exactGrader{})
		svc.SetLogger(logger)
		cfg.Quizzes = svc
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return &testEnv{handler: srv.Handler(), progress: prog, notes: notes}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewServer_RequiresServices(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer() without config should fail")
	}
	if _, err := NewServer(ServerConfig{Config: config.DefaultLocalConfig()}); err == nil {
		t.Error("NewServer() without progress should fail")
	}
}

func TestHealthAndStatus(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a correlation id")
	}

	rec = env.do(t, http.MethodGet, "/v1/status", nil)
	status := decode[map[string]any](t, rec)
	if status["quizzes"] != false {
		t.Errorf("quizzes = %v, want false", status["quizzes"])
	}
	if status["storage"] != "file" {
		t.Errorf("storage = %v, want file", status["storage"])
	}
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("correlation id = %q, want req-123", got)
	}
}

func TestLogAttemptAndMissed(t *testing.T) {
	env := newTestEnv(t, false)

	for _, correct := range []bool{false, false, true} {
		rec := env.do(t, http.MethodPost, "/v1/progress/attempts", map[string]any{
			"topic":          "thermo",
			"prompt":         "What is entropy?",
			"student_answer": "B",
			"correct":        correct,
			"response_ms":    1500.0,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("log attempt status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/progress/missed?topic=thermo&min_attempts=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("missed status = %d", rec.Code)
	}
	body := decode[struct {
		Missed []progress.MissedQuestion `json:"missed"`
	}](t, rec)
	if len(body.Missed) != 1 {
		t.Fatalf("missed = %d, want 1", len(body.Missed))
	}
	if body.Missed[0].Incorrect != 2 || body.Missed[0].Attempts != 3 {
		t.Errorf("missed = %+v", body.Missed[0])
	}
}

func TestLogAttempt_Validation(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty prompt", map[string]any{"topic": "t", "prompt": "  "}},
		{"negative response time", map[string]any{"topic": "t", "prompt": "p", "response_ms": -5}},
		{"non-numeric response time", map[string]any{"topic": "t", "prompt": "p", "response_ms": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/progress/attempts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	topics, err := env.progress.Topics(context.Background())
	if err != nil {
		t.Fatalf("Topics() error = %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("rejected attempts must not be written, topics = %v", topics)
	}
}

func TestLogSessionAndList(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/v1/progress/sessions", map[string]any{
		"topic":   "thermo",
		"score":   75.0,
		"details": map[string]any{"raw": "3/4", "avoid_mode": "all", "difficulty": "medium", "feedback_mode": "end"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("log session status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/v1/progress/sessions", map[string]any{"topic": "thermo"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing score status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/progress/sessions?topic=thermo", nil)
	body := decode[struct {
		Sessions []progress.SessionRecord `json:"sessions"`
	}](t, rec)
	if len(body.Sessions) != 1 || body.Sessions[0].Score != 75 {
		t.Errorf("sessions = %+v", body.Sessions)
	}
}

func TestDifficultyAndExcluded(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	if err := env.progress.LogAttempt(ctx, progress.AttemptInput{Topic: "thermo", Prompt: "Q1", Correct: true}); err != nil {
		t.Fatalf("LogAttempt() error = %v", err)
	}
	if err := env.progress.LogAttempt(ctx, progress.AttemptInput{Topic: "thermo", Prompt: "Q2", Correct: false}); err != nil {
		t.Fatalf("LogAttempt() error = %v", err)
	}

	rec := env.do(t, http.MethodGet, "/v1/progress/difficulty?topic=unseen", nil)
	diff := decode[map[string]any](t, rec)
	if diff["difficulty"] != "medium" {
		t.Errorf("unseen topic difficulty = %v, want medium", diff["difficulty"])
	}

	rec = env.do(t, http.MethodGet, "/v1/progress/excluded?topic=thermo&mode=correct", nil)
	excluded := decode[struct {
		Prompts []string `json:"prompts"`
	}](t, rec)
	if len(excluded.Prompts) != 1 || excluded.Prompts[0] != "Q1" {
		t.Errorf("excluded = %v, want [Q1]", excluded.Prompts)
	}

	rec = env.do(t, http.MethodGet, "/v1/progress/excluded?mode=sometimes", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d, want 400", rec.Code)
	}
}

func TestMissed_InvalidParams(t *testing.T) {
	env := newTestEnv(t, false)
	for _, q := range []string{"limit=abc", "min_attempts=-1"} {
		rec := env.do(t, http.MethodGet, "/v1/progress/missed?"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestNotesRoutes(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/v1/notes/index", map[string]any{"dir": "/tmp/notes", "rebuild": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	if env.notes.indexedDir != "/tmp/notes" || !env.notes.rebuilt {
		t.Errorf("indexed %q rebuilt=%v", env.notes.indexedDir, env.notes.rebuilt)
	}

	rec = env.do(t, http.MethodPost, "/v1/notes/index", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("index without body status = %d", rec.Code)
	}
	if env.notes.indexedDir != "notes" {
		t.Errorf("default dir = %q, want notes", env.notes.indexedDir)
	}

	rec = env.do(t, http.MethodGet, "/v1/notes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list notes status = %d", rec.Code)
	}
}

func TestQuizzesUnavailable(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodPost, "/v1/quizzes", map[string]any{"topic": "thermo"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestQuizFlow_Immediate(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/v1/quizzes", map[string]any{"topic": "thermo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	started := decode[quizView](t, rec)
	if len(started.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(started.Questions))
	}
	for _, q := range started.Questions {
		if q.Answer != "" {
			t.Error("reference answers must be hidden while active")
		}
	}

	base := "/v1/quizzes/" + started.ID
	rec = env.do(t, http.MethodPost, base+"/answers", map[string]any{"index": 0, "answer": "a", "response_ms": 1200})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d: %s", rec.Code, rec.Body.String())
	}
	answer := decode[coach.Answer](t, rec)
	if !answer.Graded || !answer.Correct {
		t.Errorf("answer = %+v, want graded correct", answer)
	}

	rec = env.do(t, http.MethodPost, base+"/answers", map[string]any{"index": 0, "answer": "b"})
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat answer status = %d, want 409", rec.Code)
	}
	rec = env.do(t, http.MethodPost, base+"/answers", map[string]any{"index": 9, "answer": "b"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodPost, base+"/answers", map[string]any{"answer": "b"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing index status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, base+"/answers", map[string]any{"index": 1, "answer": "no idea"})
	if rec.Code != http.StatusOK {
		t.Fatalf("second answer status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, base+"/finish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", rec.Code, rec.Body.String())
	}
	summary := decode[coach.Summary](t, rec)
	if summary.Correct != 1 || summary.Total != 2 || summary.Percent != 50 {
		t.Errorf("summary = %+v", summary)
	}

	rec = env.do(t, http.MethodGet, base, nil)
	finished := decode[quizView](t, rec)
	if finished.Status != coach.StatusCompleted || finished.Questions[0].Answer != "A" {
		t.Errorf("finished view = %+v", finished)
	}

	sessions, err := env.progress.Sessions(context.Background(), "thermo")
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("logged sessions = %d, want 1", len(sessions))
	}
}

func TestQuizFlow_EndModeHidesVerdicts(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/v1/quizzes", map[string]any{"topic": "thermo", "feedback": "end"})
	started := decode[quizView](t, rec)
	base := "/v1/quizzes/" + started.ID

	rec = env.do(t, http.MethodPost, base+"/answers", map[string]any{"index": 0, "answer": "A"})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, base, nil)
	view := decode[quizView](t, rec)
	if len(view.Answers) != 1 || view.Answers[0].Graded || view.Answers[0].Feedback != "" {
		t.Errorf("end-mode answers = %+v", view.Answers)
	}
}

func TestQuizStopAndErrors(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/v1/quizzes", map[string]any{"topic": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank topic status = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/v1/quizzes", map[string]any{"topic": "thermo", "feedback": "later"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad feedback status = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/v1/quizzes/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown quiz status = %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/quizzes", map[string]any{"topic": "thermo"})
	started := decode[quizView](t, rec)

	rec = env.do(t, http.MethodDelete, "/v1/quizzes/"+started.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("stop status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/v1/quizzes/"+started.ID+"/finish", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("finish after stop status = %d, want 409", rec.Code)
	}
}

func TestInvalidBody(t *testing.T) {
	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodPost, "/v1/progress/attempts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

