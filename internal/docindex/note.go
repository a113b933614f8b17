package docindex

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Note is one study file discovered under the notes directory
type Note struct {
	ID           string
	Path         string
	Title        string
	Content      string
	Hash         string
	DiscoveredAt time.Time
	IndexedAt    *time.Time
	Chunks       []Chunk
}

// Chunk is a passage cut from a note for retrieval
type Chunk struct {
	Position int
	Heading  string
	Content  string
}

// noteID derives a stable id from the note's relative path
func noteID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
