package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/studycoach/internal/storage/local"
)

// FileStore keeps the progress document in a single JSON file guarded by an
// advisory lock. It repairs the file whenever a read finds it malformed.
type FileStore struct {
	file   *local.DocumentFile
	logger *slog.Logger
}

// NewFileStore opens the document at path, repairing it once if it is
// missing or malformed.
func NewFileStore(ctx context.Context, path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	file, err := local.NewDocumentFile(path)
	if err != nil {
		return nil, err
	}

	s := &FileStore{file: file, logger: logger}
	if _, err := s.Read(ctx); err != nil {
		return nil, fmt.Errorf("open progress store: %w", err)
	}
	return s, nil
}

// Path returns the location of the progress file
func (s *FileStore) Path() string {
	return s.file.Path()
}

// Read returns the current document. A malformed file is rewritten in
// canonical shape under the write lock before returning.
func (s *FileStore) Read(ctx context.Context) (*Document, error) {
	data, err := s.file.Read(ctx)
	if err != nil {
		return nil, err
	}

	doc, repair := DecodeDocument(data)
	if !repair.Needed() {
		return doc, nil
	}

	// Decode again under the exclusive lock; another writer may have
	// fixed the file in the meantime.
	err = s.file.Update(ctx, func(current []byte) ([]byte, error) {
		var r Repair
		doc, r = DecodeDocument(current)
		if !r.Needed() {
			return nil, nil
		}
		s.logRepair(r)
		return EncodeDocument(doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Write replaces the whole document
func (s *FileStore) Write(ctx context.Context, doc *Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return s.file.Write(ctx, data)
}

// Update runs fn against the current document and persists the result as
// one locked read-modify-write cycle. If fn fails nothing is written.
func (s *FileStore) Update(ctx context.Context, fn func(*Document) error) error {
	return s.file.Update(ctx, func(current []byte) ([]byte, error) {
		doc, r := DecodeDocument(current)
		if r.Needed() {
			s.logRepair(r)
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		data, err := EncodeDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		return data, nil
	})
}

func (s *FileStore) logRepair(r Repair) {
	s.logger.Warn("repaired progress document",
		"path", s.file.Path(),
		"reset", r.Reset,
		"keys", r.Keys,
		"dropped_entries", r.Dropped,
	)
}

// MemoryStore is an in-process DocumentStore used by tests and previews
type MemoryStore struct {
	data []byte
	mu   chan struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: make(chan struct{}, 1)}
}

func (m *MemoryStore) lock(ctx context.Context) error {
	select {
	case m.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MemoryStore) unlock() { <-m.mu }

// Read decodes a private copy of the document
func (m *MemoryStore) Read(ctx context.Context) (*Document, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()
	doc, _ := DecodeDocument(m.data)
	return doc, nil
}

// Write replaces the document
func (m *MemoryStore) Write(ctx context.Context, doc *Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()
	m.data = data
	return nil
}

// Update applies fn to the document atomically
func (m *MemoryStore) Update(ctx context.Context, fn func(*Document) error) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()

	doc, _ := DecodeDocument(m.data)
	if err := fn(doc); err != nil {
		return err
	}
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}
