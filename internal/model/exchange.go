package model

import (
	"fmt"
	"sort"
	"time"
)

// Exchange represents one request and its response on the connection
type Exchange struct {
	ID         string
	Kind       ExchangeKind
	Song       string // download only
	Artist     string // download only
	Status     ExchangeStatus
	FileSize   int64     // bytes received, download only
	OutputPath string    // path of the saved file, download only
	Lines      int       // listing lines received, list only
	LastError  string    // last error message if any
	StartedAt  time.Time // when the request was created
	FinishedAt time.Time // when the exchange reached a final state
}

// GetDisplayTitle returns a short human readable description of the request
func (e *Exchange) GetDisplayTitle() string {
	if e.Kind == ExchangeKindList {
		return "catalog listing"
	}
	if e.Artist == "" {
		return e.Song
	}
	return fmt.Sprintf("%s by %s", e.Song, e.Artist)
}

// GetDuration returns how long the exchange took, or zero while it is still active
func (e *Exchange) GetDuration() time.Duration {
	if e.FinishedAt.IsZero() || e.StartedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// GetSizeString returns the received size in human readable form
func (e *Exchange) GetSizeString() string {
	return FormatSize(e.FileSize)
}

// FormatSize formats a byte count as B, KB or MB
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/1024/1024)
	}
}

// SortExchanges orders exchanges by start time, oldest first
func SortExchanges(exchanges []*Exchange) {
	sort.Slice(exchanges, func(i, j int) bool {
		if exchanges[i].StartedAt.Equal(exchanges[j].StartedAt) {
			return exchanges[i].ID < exchanges[j].ID
		}
		return exchanges[i].StartedAt.Before(exchanges[j].StartedAt)
	})
}
