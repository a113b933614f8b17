package docindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Service orchestrates the notes pipeline:
// discover → chunk → store → embed, and retrieval on top of it
type Service struct {
	index     *Index
	retriever *Retriever
	embedder  Embedder
	splitter  *Splitter
	logger    *slog.Logger
}

// NewService creates a new docindex service. A nil embedder selects the
// keyword embedder and a nil splitter the default chunk sizes.
func NewService(db *sql.DB, embedder Embedder, splitter *Splitter) *Service {
	if embedder == nil {
		embedder = NewKeywordEmbedder(256)
	}
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	idx := NewIndex(db)

	return &Service{
		index:     idx,
		retriever: NewRetriever(idx, embedder),
		embedder:  embedder,
		splitter:  splitter,
		logger:    slog.Default(),
	}
}

// IndexResult holds the result of an indexing operation
type IndexResult struct {
	NotesFound     int `json:"notes_found"`
	NotesIndexed   int `json:"notes_indexed"`
	NotesSkipped   int `json:"notes_skipped"`
	NotesRemoved   int `json:"notes_removed"`
	ChunksEmbedded int `json:"chunks_embedded"`
	Errors         int `json:"errors"`
}

// IndexDirectory brings the index in line with the notes under basePath.
// Unchanged notes are skipped, changed ones re-chunked, and notes whose
// files disappeared are removed. Chunks lacking a vector from the current
// embedder are embedded at the end.
func (s *Service) IndexDirectory(ctx context.Context, basePath string) (*IndexResult, error) {
	result := &IndexResult{}

	notes, err := NewDiscoverer(basePath, s.splitter).Discover()
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	result.NotesFound = len(notes)

	present := make(map[string]bool, len(notes))
	for i := range notes {
		note := &notes[i]
		present[note.ID] = true

		hash, err := s.index.NoteHash(note.ID)
		if err != nil {
			return nil, err
		}
		if hash == note.Hash {
			result.NotesSkipped++
			continue
		}

		if err := s.index.SaveNote(note); err != nil {
			s.logger.Error("failed to save note", "path", note.Path, "error", err)
			result.Errors++
			continue
		}
		result.NotesIndexed++
	}

	existing, err := s.index.ListNotes()
	if err != nil {
		return nil, err
	}
	for _, n := range existing {
		if present[n.ID] {
			continue
		}
		if err := s.index.DeleteNote(n.ID); err != nil {
			s.logger.Error("failed to remove note", "path", n.Path, "error", err)
			result.Errors++
			continue
		}
		result.NotesRemoved++
	}

	embedded, failed, err := s.embedPending(ctx)
	if err != nil {
		return nil, err
	}
	result.ChunksEmbedded = embedded
	result.Errors += failed

	s.logger.Info("notes indexed",
		"path", basePath,
		"found", result.NotesFound,
		"indexed", result.NotesIndexed,
		"removed", result.NotesRemoved,
		"chunks_embedded", result.ChunksEmbedded,
	)
	return result, nil
}

// Rebuild drops the whole index and indexes basePath from scratch
func (s *Service) Rebuild(ctx context.Context, basePath string) (*IndexResult, error) {
	if err := s.index.Clear(); err != nil {
		return nil, err
	}
	return s.IndexDirectory(ctx, basePath)
}

// embedPending embeds every chunk without a vector from the current model
func (s *Service) embedPending(ctx context.Context) (embedded, failed int, err error) {
	chunks, err := s.index.ListChunksNeedingEmbedding(s.embedder.Model())
	if err != nil {
		return 0, 0, err
	}
	if len(chunks) == 0 {
		return 0, 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Heading + "\n" + c.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embed batch: %w", err)
	}

	notes := make(map[string]bool)
	for i, c := range chunks {
		if err := s.index.UpdateChunkEmbedding(c.ID, s.embedder.Model(), EncodeEmbedding(vectors[i])); err != nil {
			s.logger.Error("failed to store embedding", "chunk_id", c.ID, "error", err)
			failed++
			continue
		}
		notes[c.NoteID] = true
		embedded++
	}
	for id := range notes {
		if err := s.index.MarkIndexed(id); err != nil {
			s.logger.Warn("failed to mark note indexed", "note_id", id, "error", err)
		}
	}
	return embedded, failed, nil
}

// Search performs a similarity search
func (s *Service) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	return s.retriever.Search(ctx, query, topK)
}

// RetrieveContext returns grounding text for a quiz on topic
func (s *Service) RetrieveContext(ctx context.Context, topic string, k int) (string, error) {
	return s.retriever.RetrieveContext(ctx, topic, k)
}

// Stats returns indexing statistics
func (s *Service) Stats() (*IndexStats, error) {
	return s.index.Stats()
}

// ListNotes returns all indexed notes
func (s *Service) ListNotes() ([]NoteSummary, error) {
	return s.index.ListNotes()
}
