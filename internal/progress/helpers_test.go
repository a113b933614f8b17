package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// setupService returns a service over a fresh progress file with a fixed clock
func setupService(t *testing.T) (*Service, *FileStore) {
	t.Helper()

	store, err := NewFileStore(context.Background(), filepath.Join(t.TempDir(), "progress.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	svc := NewService(store)
	base := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc, store
}

func ms(v int64) *int64 { return &v }

func logAttempt(t *testing.T, svc *Service, topic, prompt string, correct bool, responseMs *int64) {
	t.Helper()
	err := svc.LogAttempt(context.Background(), AttemptInput{
		Topic:         topic,
		Prompt:        prompt,
		StudentAnswer: "answer",
		Correct:       correct,
		ResponseMs:    responseMs,
	})
	if err != nil {
		t.Fatalf("LogAttempt(%q) error = %v", prompt, err)
	}
}

type recordingPublisher struct {
	attempts []AttemptRecord
	sessions []SessionRecord
	err      error
}

func (p *recordingPublisher) PublishAttempt(_ context.Context, a AttemptRecord) error {
	p.attempts = append(p.attempts, a)
	return p.err
}

func (p *recordingPublisher) PublishSession(_ context.Context, s SessionRecord) error {
	p.sessions = append(p.sessions, s)
	return p.err
}
