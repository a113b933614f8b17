package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func TestDocumentFile_ReadMissing(t *testing.T) {
	doc, err := NewDocumentFile(filepath.Join(t.TempDir(), "nested", "progress.json"))
	if err != nil {
		t.Fatalf("NewDocumentFile() error = %v", err)
	}

	data, err := doc.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if data != nil {
		t.Errorf("Read() = %q, want nil", data)
	}
}

func TestDocumentFile_WriteRead(t *testing.T) {
	doc, _ := NewDocumentFile(filepath.Join(t.TempDir(), "progress.json"))
	ctx := context.Background()

	if err := doc.Write(ctx, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := doc.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Read() = %q, want {\"a\":1}", data)
	}
}

func TestDocumentFile_UpdateNilKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	doc, _ := NewDocumentFile(path)
	ctx := context.Background()

	err := doc.Update(ctx, func(current []byte) ([]byte, error) {
		if current != nil {
			t.Errorf("current = %q, want nil", current)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Stat() error = %v, want not exist", err)
	}
}

func TestDocumentFile_UpdateErrorAborts(t *testing.T) {
	doc, _ := NewDocumentFile(filepath.Join(t.TempDir(), "progress.json"))
	ctx := context.Background()
	doc.Write(ctx, []byte("before"))

	boom := errors.New("boom")
	err := doc.Update(ctx, func([]byte) ([]byte, error) {
		return []byte("after"), boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	data, _ := doc.Read(ctx)
	if string(data) != "before" {
		t.Errorf("Read() = %q, want before", data)
	}
}

func TestDocumentFile_ConcurrentUpdatesSerialize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.txt")
	// Two handles on one path behave like two processes: only the file
	// lock keeps them apart.
	first, _ := NewDocumentFile(path)
	second, _ := NewDocumentFile(path)
	ctx := context.Background()

	increment := func(doc *DocumentFile) {
		err := doc.Update(ctx, func(current []byte) ([]byte, error) {
			n := 0
			if len(current) > 0 {
				n, _ = strconv.Atoi(string(current))
			}
			return []byte(strconv.Itoa(n + 1)), nil
		})
		if err != nil {
			t.Errorf("Update() error = %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); increment(first) }()
		go func() { defer wg.Done(); increment(second) }()
	}
	wg.Wait()

	data, _ := first.Read(ctx)
	if string(data) != "40" {
		t.Errorf("counter = %s, want 40", data)
	}
}

func TestDocumentFile_LockHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	doc, _ := NewDocumentFile(path)

	holder := flock.New(path + ".lock")
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer holder.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := doc.Write(ctx, []byte("x"))
	if err == nil {
		t.Fatal("Write() expected error while another handle holds the lock")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Write() error = %v, want deadline exceeded", err)
	}
}
