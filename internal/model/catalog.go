package model

import (
	"sort"
	"strings"
	"time"
)

// CatalogSeparator joins song and artist in a listing line
const CatalogSeparator = " - "

// CatalogEntry represents a single song offered by the server
type CatalogEntry struct {
	Song   string `json:"song"`
	Artist string `json:"artist"`
	Path   string `json:"-"`              // server side file path
	Size   int64  `json:"size,omitempty"` // file size in bytes, server side
}

// Line returns the listing text for the entry
func (e *CatalogEntry) Line() string {
	if e.Artist == "" {
		return e.Song
	}
	return e.Song + CatalogSeparator + e.Artist
}

// Matches checks song and artist case-insensitively
func (e *CatalogEntry) Matches(song, artist string) bool {
	return strings.EqualFold(strings.TrimSpace(e.Song), strings.TrimSpace(song)) &&
		strings.EqualFold(strings.TrimSpace(e.Artist), strings.TrimSpace(artist))
}

// Catalog represents the set of songs a server can deliver
type Catalog struct {
	Entries   []*CatalogEntry `json:"entries"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		Entries:   make([]*CatalogEntry, 0),
		UpdatedAt: time.Now(),
	}
}

// AddEntry adds an entry to the catalog
func (c *Catalog) AddEntry(entry *CatalogEntry) {
	c.Entries = append(c.Entries, entry)
	c.UpdatedAt = time.Now()
}

// Find returns the entry for song and artist
func (c *Catalog) Find(song, artist string) (*CatalogEntry, bool) {
	for _, entry := range c.Entries {
		if entry.Matches(song, artist) {
			return entry, true
		}
	}
	return nil, false
}

// Sort orders entries by song, then artist, ignoring case
func (c *Catalog) Sort() {
	sort.SliceStable(c.Entries, func(i, j int) bool {
		a, b := c.Entries[i], c.Entries[j]
		if !strings.EqualFold(a.Song, b.Song) {
			return strings.ToLower(a.Song) < strings.ToLower(b.Song)
		}
		return strings.ToLower(a.Artist) < strings.ToLower(b.Artist)
	})
}

// Lines returns the listing text of every entry in catalog order
func (c *Catalog) Lines() []string {
	lines := make([]string, 0, len(c.Entries))
	for _, entry := range c.Entries {
		lines = append(lines, entry.Line())
	}
	return lines
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(c.Entries)
}
