package transfer

import (
	"errors"
	"io"
)

// LineSource yields catalog lines in order and returns io.EOF after the last one
type LineSource interface {
	NextLine() (string, error)
}

// LineSourceFunc adapts a function to LineSource
type LineSourceFunc func() (string, error)

// NextLine calls f
func (f LineSourceFunc) NextLine() (string, error) {
	return f()
}

// Listing is a lazy, one-shot sequence of catalog lines
type Listing struct {
	src  LineSource
	line string
	err  error
	done bool
}

// NewListing creates a listing that pulls from src on demand
func NewListing(src LineSource) *Listing {
	return &Listing{src: src}
}

// Next advances to the next line. It returns false once the source is
// exhausted or fails; Err tells the two apart.
func (l *Listing) Next() bool {
	if l.done {
		return false
	}
	line, err := l.src.NextLine()
	if err != nil {
		l.done = true
		if !errors.Is(err, io.EOF) {
			l.err = err
		}
		return false
	}
	l.line = line
	return true
}

// Line returns the current line
func (l *Listing) Line() string {
	return l.line
}

// Err returns the first non-EOF error from the source
func (l *Listing) Err() error {
	return l.err
}

// Lines drains the remaining lines
func (l *Listing) Lines() ([]string, error) {
	var lines []string
	for l.Next() {
		lines = append(lines, l.line)
	}
	return lines, l.err
}
