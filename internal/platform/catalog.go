package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ytget/mp3-client/internal/model"
)

// ParseCatalogLine splits a listing line of the form "<song> - <artist>".
// A line without separator is a song with unknown artist.
func ParseCatalogLine(line string) (*model.CatalogEntry, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty catalog line")
	}

	song, artist, found := strings.Cut(line, model.CatalogSeparator)
	if !found {
		return &model.CatalogEntry{Song: line}, nil
	}
	song = strings.TrimSpace(song)
	artist = strings.TrimSpace(artist)
	if song == "" {
		return nil, fmt.Errorf("catalog line has no song name: %q", line)
	}
	return &model.CatalogEntry{Song: song, Artist: artist}, nil
}

// CatalogFileName returns the server side file name for a song
func CatalogFileName(song, artist, ext string) string {
	entry := model.CatalogEntry{Song: song, Artist: artist}
	return SongFileName(entry.Line(), ext)
}

// ParseCatalogFileName reverses CatalogFileName. Hidden files and files with
// another extension are rejected.
func ParseCatalogFileName(name, ext string) (*model.CatalogEntry, bool) {
	if strings.HasPrefix(name, ".") {
		return nil, false
	}
	if ext == "" {
		ext = DefaultSongExtension
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		return nil, false
	}
	entry, err := ParseCatalogLine(strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		return nil, false
	}
	return entry, true
}

// ScanCatalogDirectory builds a sorted catalog from the song files in dir
func ScanCatalogDirectory(dir, ext string) (*model.Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory %s: %w", dir, err)
	}

	catalog := model.NewCatalog()
	for _, de := range entries {
		if !de.Type().IsRegular() {
			continue
		}
		entry, ok := ParseCatalogFileName(de.Name(), ext)
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entry.Path = filepath.Join(dir, de.Name())
		entry.Size = info.Size()
		catalog.AddEntry(entry)
	}
	catalog.Sort()
	return catalog, nil
}
