package transfer

import (
	"errors"
	"io"
	"testing"
)

func sliceSource(lines ...string) LineSource {
	return LineSourceFunc(func() (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		return line, nil
	})
}

func TestListing_Lines(t *testing.T) {
	listing := NewListing(sliceSource("Song A - Artist X", "Song B - Artist Y"))

	lines, err := listing.Lines()
	if err != nil {
		t.Fatalf("Lines failed: %v", err)
	}
	expected := []string{"Song A - Artist X", "Song B - Artist Y"}
	if len(lines) != len(expected) {
		t.Fatalf("Expected %d lines, got %d", len(expected), len(lines))
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("Line %d: expected '%s', got '%s'", i, expected[i], lines[i])
		}
	}
}

func TestListing_IsLazy(t *testing.T) {
	pulls := 0
	src := LineSourceFunc(func() (string, error) {
		pulls++
		return "line", nil
	})

	listing := NewListing(src)
	if pulls != 0 {
		t.Fatalf("Expected no pulls before Next, got %d", pulls)
	}
	listing.Next()
	listing.Next()
	if pulls != 2 {
		t.Errorf("Expected 2 pulls, got %d", pulls)
	}
}

func TestListing_Empty(t *testing.T) {
	listing := NewListing(sliceSource())

	if listing.Next() {
		t.Error("Expected no lines from an empty source")
	}
	if listing.Err() != nil {
		t.Errorf("Expected nil error, got %v", listing.Err())
	}
}

func TestListing_OneShot(t *testing.T) {
	listing := NewListing(sliceSource("only"))
	listing.Lines()

	if listing.Next() {
		t.Error("Expected exhausted listing to stay exhausted")
	}
}

func TestListing_Error(t *testing.T) {
	boom := errors.New("read failed")
	calls := 0
	src := LineSourceFunc(func() (string, error) {
		calls++
		if calls == 1 {
			return "first", nil
		}
		return "", boom
	})

	lines, err := NewListing(src).Lines()
	if !errors.Is(err, boom) {
		t.Errorf("Expected source error, got %v", err)
	}
	if len(lines) != 1 || lines[0] != "first" {
		t.Errorf("Expected lines read before the error, got %v", lines)
	}
}
