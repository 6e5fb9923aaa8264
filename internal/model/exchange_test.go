package model

import (
	"testing"
	"time"
)

func TestExchange_GetDisplayTitle(t *testing.T) {
	tests := []struct {
		exchange Exchange
		expected string
	}{
		{Exchange{Kind: ExchangeKindList}, "catalog listing"},
		{Exchange{Kind: ExchangeKindDownload, Song: "Imagine", Artist: "John Lennon"}, "Imagine by John Lennon"},
		{Exchange{Kind: ExchangeKindDownload, Song: "Imagine"}, "Imagine"},
	}

	for _, test := range tests {
		result := test.exchange.GetDisplayTitle()
		if result != test.expected {
			t.Errorf("GetDisplayTitle() = '%s', expected '%s'", result, test.expected)
		}
	}
}

func TestExchange_GetDuration(t *testing.T) {
	start := time.Now()
	e := &Exchange{StartedAt: start}

	if e.GetDuration() != 0 {
		t.Errorf("Expected zero duration for an unfinished exchange, got %v", e.GetDuration())
	}

	e.FinishedAt = start.Add(1500 * time.Millisecond)
	if e.GetDuration() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %v", e.GetDuration())
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{2500, "2.4 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 / 2, "2.5 MB"},
	}

	for _, test := range tests {
		result := FormatSize(test.size)
		if result != test.expected {
			t.Errorf("FormatSize(%d) = %s, expected %s", test.size, result, test.expected)
		}
	}
}

func TestSortExchanges(t *testing.T) {
	base := time.Now()
	exchanges := []*Exchange{
		{ID: "c", StartedAt: base.Add(2 * time.Second)},
		{ID: "b", StartedAt: base},
		{ID: "a", StartedAt: base},
	}

	SortExchanges(exchanges)

	expected := []string{"a", "b", "c"}
	for i, ex := range exchanges {
		if ex.ID != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], ex.ID)
		}
	}
}
