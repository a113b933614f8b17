package docindex

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// DefaultNoteExtensions are the file types read as study notes
var DefaultNoteExtensions = []string{
	".md",
	".markdown",
	".txt",
}

// Discoverer finds note files below a base directory
type Discoverer struct {
	basePath   string
	extensions []string
	splitter   *Splitter
}

// NewDiscoverer creates a discoverer that chunks notes with splitter
func NewDiscoverer(basePath string, splitter *Splitter) *Discoverer {
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &Discoverer{
		basePath:   basePath,
		extensions: DefaultNoteExtensions,
		splitter:   splitter,
	}
}

// WithExtensions sets custom file extensions to search for
func (d *Discoverer) WithExtensions(exts []string) *Discoverer {
	d.extensions = exts
	return d
}

// Discover walks the base directory and loads every note it finds.
// Unreadable files are skipped. A missing base directory yields no notes.
func (d *Discoverer) Discover() ([]Note, error) {
	if _, err := os.Stat(d.basePath); os.IsNotExist(err) {
		return nil, nil
	}

	var notes []Note
	err := filepath.WalkDir(d.basePath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if path != d.basePath && isIgnoredDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.isNoteFile(path) {
			return nil
		}
		note, err := d.loadNote(path)
		if err != nil {
			return nil
		}
		notes = append(notes, note)
		return nil
	})
	return notes, err
}

func (d *Discoverer) isNoteFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, noteExt := range d.extensions {
		if ext == noteExt {
			return true
		}
	}
	return false
}

// isIgnoredDir returns true for hidden and tooling directories
func isIgnoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch strings.ToLower(name) {
	case "node_modules", "vendor", "__pycache__":
		return true
	}
	return false
}

func (d *Discoverer) loadNote(path string) (Note, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Note{}, err
	}

	relPath, err := filepath.Rel(d.basePath, path)
	if err != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)
	text := string(content)

	return Note{
		ID:           noteID(relPath),
		Path:         relPath,
		Title:        inferTitle(path, text),
		Content:      text,
		Hash:         contentHash(text),
		DiscoveredAt: time.Now(),
		Chunks:       d.splitter.SplitNote(text),
	}, nil
}

// inferTitle uses the first H1 heading, falling back to the file name
func inferTitle(path, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}

	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
