package progress

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewFileStore_RepairsOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	if err := os.WriteFile(path, []byte(`{"sessions": [`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(context.Background(), path, nil); err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	doc, repair := DecodeDocument(data)
	if repair.Needed() {
		t.Errorf("file still needs repair after open: %s", data)
	}
	assertCanonicalEmpty(t, doc)
}

func TestNewFileStore_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "progress.json")

	if _, err := NewFileStore(context.Background(), path, nil); err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("progress file not created: %v", err)
	}
}

func TestFileStore_ReadCorruptedNeverFails(t *testing.T) {
	svc, store := setupService(t)
	logAttempt(t, svc, "Thermo", "What is entropy?", true, nil)

	if err := os.WriteFile(store.Path(), []byte(`{"attempts": [{"prompt": "What`), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	assertCanonicalEmpty(t, doc)

	data, _ := os.ReadFile(store.Path())
	if !strings.Contains(string(data), `"questions": {}`) {
		t.Errorf("file not rewritten in canonical shape: %s", data)
	}
}

func TestFileStore_WriteRead(t *testing.T) {
	_, store := setupService(t)
	ctx := context.Background()

	doc := NewDocument()
	doc.Sessions = append(doc.Sessions, SessionRecord{Topic: "Thermo", Score: 75})
	if err := store.Write(ctx, doc); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.Sessions) != 1 || got.Sessions[0].Score != 75 {
		t.Errorf("Sessions = %+v; want one session scoring 75", got.Sessions)
	}
}

func TestFileStore_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	ctx := context.Background()

	// Separate stores stand in for the daemon and the CLI.
	var services []*Service
	for i := 0; i < 2; i++ {
		store, err := NewFileStore(ctx, path, nil)
		if err != nil {
			t.Fatalf("NewFileStore() error = %v", err)
		}
		services = append(services, NewService(store))
	}

	const perWriter = 15
	var wg sync.WaitGroup
	for _, svc := range services {
		wg.Add(1)
		go func(svc *Service) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := svc.LogAttempt(ctx, AttemptInput{Topic: "Thermo", Prompt: "What is entropy?", ResponseMs: ms(100)})
				if err != nil {
					t.Errorf("LogAttempt() error = %v", err)
				}
			}
		}(svc)
	}
	wg.Wait()

	q, err := services[0].Question(ctx, QuestionID("What is entropy?"))
	if err != nil {
		t.Fatalf("Question() error = %v", err)
	}
	if q.TimesAsked != 2*perWriter {
		t.Errorf("TimesAsked = %d; want %d", q.TimesAsked, 2*perWriter)
	}
	if q.TimedCount != 2*perWriter {
		t.Errorf("TimedCount = %d; want %d", q.TimedCount, 2*perWriter)
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.LogSession(ctx, "Thermo", 50, SessionDetails{Raw: "2/4"}); err != nil {
		t.Fatalf("LogSession() error = %v", err)
	}
	sessions, err := svc.Sessions(ctx, "")
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Sessions() = %d; want 1", len(sessions))
	}
}
