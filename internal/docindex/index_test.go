package docindex

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/storage/sqlite"
)

// openTestDB opens a migrated notes database in a temp directory
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func testNote() *Note {
	return &Note{
		ID:           noteID("thermo.md"),
		Path:         "thermo.md",
		Title:        "Thermodynamics",
		Content:      "# Thermodynamics\n\nEntropy measures disorder.",
		Hash:         "abc123",
		DiscoveredAt: time.Now(),
		Chunks: []Chunk{
			{Position: 0, Heading: "Entropy", Content: "Entropy measures disorder."},
			{Position: 1, Heading: "Enthalpy", Content: "Enthalpy is heat content."},
		},
	}
}

func TestIndex_SaveNote(t *testing.T) {
	idx := NewIndex(openTestDB(t))
	note := testNote()

	if err := idx.SaveNote(note); err != nil {
		t.Fatalf("SaveNote() error = %v", err)
	}

	hash, err := idx.NoteHash(note.ID)
	if err != nil {
		t.Fatalf("NoteHash() error = %v", err)
	}
	if hash != "abc123" {
		t.Errorf("NoteHash() = %q; want abc123", hash)
	}

	notes, err := idx.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes() error = %v", err)
	}
	if len(notes) != 1 || notes[0].ChunkCount != 2 || notes[0].Title != "Thermodynamics" {
		t.Errorf("ListNotes() = %+v", notes)
	}
	if notes[0].IndexedAt != nil {
		t.Error("IndexedAt should be nil before embedding")
	}
}

func TestIndex_SaveNoteReplacesChunks(t *testing.T) {
	idx := NewIndex(openTestDB(t))
	note := testNote()
	idx.SaveNote(note)

	note.Hash = "def456"
	note.Chunks = note.Chunks[:1]
	if err := idx.SaveNote(note); err != nil {
		t.Fatalf("SaveNote() error = %v", err)
	}

	stats, _ := idx.Stats()
	if stats.TotalNotes != 1 || stats.TotalChunks != 1 {
		t.Errorf("Stats() = %+v; want 1 note with 1 chunk", stats)
	}
}

func TestIndex_NoteHashUnknown(t *testing.T) {
	idx := NewIndex(openTestDB(t))
	hash, err := idx.NoteHash("missing")
	if err != nil || hash != "" {
		t.Errorf("NoteHash(missing) = %q, %v; want empty, nil", hash, err)
	}
}

func TestIndex_Embeddings(t *testing.T) {
	idx := NewIndex(openTestDB(t))
	note := testNote()
	idx.SaveNote(note)

	pending, err := idx.ListChunksNeedingEmbedding("keyword-256")
	if err != nil {
		t.Fatalf("ListChunksNeedingEmbedding() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d; want 2", len(pending))
	}
	if pending[0].NotePath != "thermo.md" {
		t.Errorf("NotePath = %q", pending[0].NotePath)
	}

	vec := EncodeEmbedding([]float32{1, 0})
	if err := idx.UpdateChunkEmbedding(pending[0].ID, "keyword-256", vec); err != nil {
		t.Fatalf("UpdateChunkEmbedding() error = %v", err)
	}

	embedded, _ := idx.ListEmbeddedChunks("keyword-256")
	if len(embedded) != 1 || embedded[0].ID != pending[0].ID {
		t.Errorf("ListEmbeddedChunks() = %+v", embedded)
	}

	// A different model sees every chunk as pending.
	other, _ := idx.ListChunksNeedingEmbedding("text-embedding-3-small")
	if len(other) != 2 {
		t.Errorf("pending for another model = %d; want 2", len(other))
	}
	none, _ := idx.ListEmbeddedChunks("text-embedding-3-small")
	if len(none) != 0 {
		t.Errorf("embedded for another model = %d; want 0", len(none))
	}
}

func TestIndex_MarkIndexed(t *testing.T) {
	idx := NewIndex(openTestDB(t))
	note := testNote()
	idx.SaveNote(note)

	if err := idx.MarkIndexed(note.ID); err != nil {
		t.Fatalf("MarkIndexed() error = %v", err)
	}
	stats, _ := idx.Stats()
	if stats.IndexedNotes != 1 {
		t.Errorf("IndexedNotes = %d; want 1", stats.IndexedNotes)
	}
}

func TestIndex_DeleteAndClear(t *testing.T) {
	idx := NewIndex(openTestDB(t))
	note := testNote()
	idx.SaveNote(note)

	other := testNote()
	other.ID, other.Path = noteID("bio.md"), "bio.md"
	idx.SaveNote(other)

	if err := idx.DeleteNote(note.ID); err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}
	stats, _ := idx.Stats()
	if stats.TotalNotes != 1 || stats.TotalChunks != 2 {
		t.Errorf("after delete Stats() = %+v", stats)
	}

	if err := idx.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	stats, _ = idx.Stats()
	if stats.TotalNotes != 0 || stats.TotalChunks != 0 {
		t.Errorf("after clear Stats() = %+v", stats)
	}
}
