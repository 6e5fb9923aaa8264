package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCatalogLine(t *testing.T) {
	tests := []struct {
		line       string
		song       string
		artist     string
		shouldFail bool
	}{
		{"Song A - Artist X", "Song A", "Artist X", false},
		{"  Imagine - John Lennon  ", "Imagine", "John Lennon", false},
		{"Solo", "Solo", "", false},
		{"Intro - Outro - Band", "Intro", "Outro - Band", false},
		{"", "", "", true},
		{" - Artist", "", "", true},
	}

	for _, test := range tests {
		entry, err := ParseCatalogLine(test.line)
		if test.shouldFail {
			if err == nil {
				t.Errorf("ParseCatalogLine(%q) expected error, got %+v", test.line, entry)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCatalogLine(%q) unexpected error: %v", test.line, err)
			continue
		}
		if entry.Song != test.song || entry.Artist != test.artist {
			t.Errorf("ParseCatalogLine(%q) = (%q, %q), expected (%q, %q)",
				test.line, entry.Song, entry.Artist, test.song, test.artist)
		}
	}
}

func TestCatalogFileName_RoundTrip(t *testing.T) {
	name := CatalogFileName("Imagine", "John Lennon", ".mp3")
	if name != "Imagine - John Lennon.mp3" {
		t.Fatalf("Unexpected catalog file name %q", name)
	}

	entry, ok := ParseCatalogFileName(name, ".mp3")
	if !ok {
		t.Fatalf("ParseCatalogFileName(%q) rejected the name", name)
	}
	if entry.Song != "Imagine" || entry.Artist != "John Lennon" {
		t.Errorf("Expected Imagine / John Lennon, got %q / %q", entry.Song, entry.Artist)
	}
}

func TestParseCatalogFileName_Rejects(t *testing.T) {
	tests := []string{
		".hidden - x.mp3",
		"notes.txt",
		"noext",
	}

	for _, name := range tests {
		if _, ok := ParseCatalogFileName(name, ".mp3"); ok {
			t.Errorf("ParseCatalogFileName(%q) should be rejected", name)
		}
	}
}

func TestScanCatalogDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]int{
		"Song B - Artist Y.mp3": 10,
		"Song A - Artist X.MP3": 20,
		"cover.jpg":             5,
		".Song C - Hidden.mp3":  5,
	}
	for name, size := range files {
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "Album - Dir.mp3"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	catalog, err := ScanCatalogDirectory(dir, ".mp3")
	if err != nil {
		t.Fatalf("ScanCatalogDirectory failed: %v", err)
	}

	lines := catalog.Lines()
	expected := []string{"Song A - Artist X", "Song B - Artist Y"}
	if len(lines) != len(expected) {
		t.Fatalf("Expected %d entries, got %d: %v", len(expected), len(lines), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("Entry %d: expected '%s', got '%s'", i, expected[i], lines[i])
		}
	}

	entry, ok := catalog.Find("Song A", "Artist X")
	if !ok {
		t.Fatal("Expected to find Song A")
	}
	if entry.Size != 20 {
		t.Errorf("Expected size 20, got %d", entry.Size)
	}
}

func TestScanCatalogDirectory_Missing(t *testing.T) {
	if _, err := ScanCatalogDirectory(filepath.Join(t.TempDir(), "missing"), ".mp3"); err == nil {
		t.Error("Expected error for missing directory, got nil")
	}
}
