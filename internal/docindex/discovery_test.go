package docindex

import (
	"os"
	"path/filepath"
	"testing"
)

func writeNote(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverer_Discover(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "thermo.md", "# Thermodynamics\n\nEntropy measures disorder.\n")
	writeNote(t, dir, "bio/cells.txt", "Mitochondria produce ATP.\n")
	writeNote(t, dir, "bio/diagram.png", "binary")
	writeNote(t, dir, ".obsidian/workspace.md", "# hidden")
	writeNote(t, dir, "node_modules/pkg/readme.md", "# vendored")

	notes, err := NewDiscoverer(dir, nil).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("Discover() found %d notes; want 2: %+v", len(notes), notes)
	}

	byPath := make(map[string]Note)
	for _, n := range notes {
		byPath[n.Path] = n
	}

	thermo, ok := byPath["thermo.md"]
	if !ok {
		t.Fatal("thermo.md not discovered")
	}
	if thermo.Title != "Thermodynamics" {
		t.Errorf("Title = %q; want Thermodynamics", thermo.Title)
	}
	if thermo.ID != noteID("thermo.md") || thermo.Hash == "" {
		t.Errorf("ID/Hash = %q/%q", thermo.ID, thermo.Hash)
	}
	if len(thermo.Chunks) != 1 {
		t.Errorf("Chunks = %d; want 1", len(thermo.Chunks))
	}

	if _, ok := byPath["bio/cells.txt"]; !ok {
		t.Error("nested bio/cells.txt not discovered")
	}
}

func TestDiscoverer_MissingDirectory(t *testing.T) {
	notes, err := NewDiscoverer(filepath.Join(t.TempDir(), "nope"), nil).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("Discover() = %d notes; want 0", len(notes))
	}
}

func TestDiscoverer_WithExtensions(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.md", "a")
	writeNote(t, dir, "b.rst", "b")

	notes, _ := NewDiscoverer(dir, nil).WithExtensions([]string{".rst"}).Discover()
	if len(notes) != 1 || notes[0].Path != "b.rst" {
		t.Errorf("Discover() = %+v; want only b.rst", notes)
	}
}

func TestInferTitle(t *testing.T) {
	tests := []struct {
		path    string
		content string
		want    string
	}{
		{"x.md", "intro\n# Heat Engines\n", "Heat Engines"},
		{"heat-engines.md", "no heading", "Heat Engines"},
		{"cell_biology notes.txt", "", "Cell Biology Notes"},
	}
	for _, tt := range tests {
		if got := inferTitle(tt.path, tt.content); got != tt.want {
			t.Errorf("inferTitle(%q) = %q; want %q", tt.path, got, tt.want)
		}
	}
}
