package docindex

import (
	"database/sql"
	"fmt"
	"time"
)

// Index provides SQLite-backed note storage and vector search
type Index struct {
	db *sql.DB
}

// NewIndex creates a new note index backed by the given database
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// SaveNote persists a note and replaces its chunks
func (idx *Index) SaveNote(note *Note) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO notes (id, path, title, content, hash, discovered_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			path=excluded.path, title=excluded.title, content=excluded.content,
			hash=excluded.hash, discovered_at=excluded.discovered_at, indexed_at=NULL`,
		note.ID, note.Path, note.Title, note.Content, note.Hash, note.DiscoveredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM note_chunks WHERE note_id = ?", note.ID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for _, c := range note.Chunks {
		_, err = tx.Exec(`
			INSERT INTO note_chunks (note_id, position, heading, content)
			VALUES (?, ?, ?, ?)`,
			note.ID, c.Position, c.Heading, c.Content,
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	return tx.Commit()
}

// ChunkRow is a stored chunk with its database id
type ChunkRow struct {
	ID        int64
	NoteID    string
	NotePath  string
	Position  int
	Heading   string
	Content   string
	Embedding []byte
}

// ListChunksNeedingEmbedding returns chunks without a vector from model
func (idx *Index) ListChunksNeedingEmbedding(model string) ([]ChunkRow, error) {
	return idx.queryChunks(`
		SELECT c.id, c.note_id, n.path, c.position, c.heading, c.content, c.embedding
		FROM note_chunks c JOIN notes n ON n.id = c.note_id
		WHERE c.embedding IS NULL OR c.embedding_model != ?
		ORDER BY c.id`, model)
}

// ListEmbeddedChunks returns chunks whose vectors came from model
func (idx *Index) ListEmbeddedChunks(model string) ([]ChunkRow, error) {
	return idx.queryChunks(`
		SELECT c.id, c.note_id, n.path, c.position, c.heading, c.content, c.embedding
		FROM note_chunks c JOIN notes n ON n.id = c.note_id
		WHERE c.embedding IS NOT NULL AND c.embedding_model = ?
		ORDER BY c.id`, model)
}

func (idx *Index) queryChunks(query string, args ...any) ([]ChunkRow, error) {
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []ChunkRow
	for rows.Next() {
		var c ChunkRow
		if err := rows.Scan(&c.ID, &c.NoteID, &c.NotePath, &c.Position, &c.Heading, &c.Content, &c.Embedding); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// UpdateChunkEmbedding stores the vector for a chunk
func (idx *Index) UpdateChunkEmbedding(chunkID int64, model string, embedding []byte) error {
	_, err := idx.db.Exec(
		"UPDATE note_chunks SET embedding = ?, embedding_model = ? WHERE id = ?",
		embedding, model, chunkID,
	)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return nil
}

// MarkIndexed records that a note's chunks are all embedded
func (idx *Index) MarkIndexed(noteID string) error {
	_, err := idx.db.Exec("UPDATE notes SET indexed_at = ? WHERE id = ?", time.Now(), noteID)
	if err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	return nil
}

// NoteHash returns the stored content hash for a note id, or "" when unknown
func (idx *Index) NoteHash(noteID string) (string, error) {
	var hash string
	err := idx.db.QueryRow("SELECT hash FROM notes WHERE id = ?", noteID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get note hash: %w", err)
	}
	return hash, nil
}

// NoteSummary is a lightweight listing entry
type NoteSummary struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Title      string     `json:"title"`
	ChunkCount int        `json:"chunk_count"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty"`
}

// ListNotes returns all stored notes ordered by path
func (idx *Index) ListNotes() ([]NoteSummary, error) {
	rows, err := idx.db.Query(`
		SELECT n.id, n.path, n.title, n.indexed_at, COUNT(c.id)
		FROM notes n LEFT JOIN note_chunks c ON c.note_id = n.id
		GROUP BY n.id ORDER BY n.path`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []NoteSummary{}
	for rows.Next() {
		var n NoteSummary
		var indexedAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.Path, &n.Title, &indexedAt, &n.ChunkCount); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if indexedAt.Valid {
			t := indexedAt.Time
			n.IndexedAt = &t
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// DeleteNote removes a note and, by cascade, its chunks
func (idx *Index) DeleteNote(noteID string) error {
	if _, err := idx.db.Exec("DELETE FROM notes WHERE id = ?", noteID); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// Clear removes every note and chunk
func (idx *Index) Clear() error {
	if _, err := idx.db.Exec("DELETE FROM notes"); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

// IndexStats summarizes the index contents
type IndexStats struct {
	TotalNotes     int `json:"total_notes"`
	IndexedNotes   int `json:"indexed_notes"`
	TotalChunks    int `json:"total_chunks"`
	EmbeddedChunks int `json:"embedded_chunks"`
}

// Stats returns statistics about the index
func (idx *Index) Stats() (*IndexStats, error) {
	var stats IndexStats
	err := idx.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM notes),
			(SELECT COUNT(*) FROM notes WHERE indexed_at IS NOT NULL),
			(SELECT COUNT(*) FROM note_chunks),
			(SELECT COUNT(*) FROM note_chunks WHERE embedding IS NOT NULL)`,
	).Scan(&stats.TotalNotes, &stats.IndexedNotes, &stats.TotalChunks, &stats.EmbeddedChunks)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	return &stats, nil
}
