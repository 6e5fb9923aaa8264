package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ytget/mp3-client/internal/model"
	"github.com/ytget/mp3-client/internal/session"
	"github.com/ytget/mp3-client/internal/transfer"
)

type fakeRequester struct {
	lines    []string
	err      error
	download func(ctx context.Context, song, artist string) (*session.Outcome, error)
	calls    int
}

func (f *fakeRequester) SendListRequest(ctx context.Context) (*session.Outcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &session.Outcome{Kind: model.ExchangeKindList, Lines: f.lines}, nil
}

func (f *fakeRequester) SendDownloadRequest(ctx context.Context, song, artist string) (*session.Outcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.download(ctx, song, artist)
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestList_Text(t *testing.T) {
	req := &fakeRequester{lines: []string{"Song A - Artist X", "Song B - Artist Y"}}
	rec := serve(New(req, Options{}).Handler(), "/list")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "Song A - Artist X\nSong B - Artist Y\n" {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
}

func TestList_JSON(t *testing.T) {
	req := &fakeRequester{lines: []string{"Song A - Artist X", "", "Solo"}}
	rec := serve(New(req, Options{}).Handler(), "/list?format=json")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}

	var entries []model.CatalogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Song != "Song A" || entries[0].Artist != "Artist X" {
		t.Errorf("Unexpected first entry %+v", entries[0])
	}
	if entries[1].Song != "Solo" || entries[1].Artist != "" {
		t.Errorf("Unexpected second entry %+v", entries[1])
	}
}

func TestSong_Serves(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte{0xff, 0xfb}, 1250)

	req := &fakeRequester{
		download: func(ctx context.Context, song, artist string) (*session.Outcome, error) {
			if song != "Imagine" || artist != "John Lennon" {
				return nil, fmt.Errorf("unexpected request %s / %s", song, artist)
			}
			path := filepath.Join(dir, song+".mp3")
			if err := os.WriteFile(path, data, 0644); err != nil {
				return nil, err
			}
			return &session.Outcome{Path: path, Size: int64(len(data))}, nil
		},
	}
	rec := serve(New(req, Options{}).Handler(), "/songs/Imagine?artist=John+Lennon")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Errorf("Expected %d body bytes, got %d", len(data), rec.Body.Len())
	}
}

func TestSong_NotFound(t *testing.T) {
	req := &fakeRequester{
		download: func(ctx context.Context, song, artist string) (*session.Outcome, error) {
			return &session.Outcome{NotFound: true}, nil
		},
	}
	rec := serve(New(req, Options{}).Handler(), "/songs/Missing?artist=Band")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No such song: Missing by Band") {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
}

func TestSong_MissingArtist(t *testing.T) {
	req := &fakeRequester{}
	rec := serve(New(req, Options{}).Handler(), "/songs/Imagine")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if req.calls != 0 {
		t.Errorf("Expected no request to be sent, got %d", req.calls)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{session.ErrTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: reset", session.ErrTransport), http.StatusServiceUnavailable},
		{session.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: got 2 of 3 chunks", transfer.ErrTruncatedTransfer), http.StatusBadGateway},
		{fmt.Errorf("%w: empty song", session.ErrInvalidRequest), http.StatusBadRequest},
	}

	for _, test := range tests {
		req := &fakeRequester{err: test.err}
		rec := serve(New(req, Options{}).Handler(), "/list")
		if rec.Code != test.status {
			t.Errorf("%v: expected %d, got %d", test.err, test.status, rec.Code)
		}
	}
}

func TestQueueFull(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	req := &fakeRequester{
		download: func(ctx context.Context, song, artist string) (*session.Outcome, error) {
			close(entered)
			<-release
			return &session.Outcome{NotFound: true}, nil
		},
	}
	h := New(req, Options{QueueLimit: 1}).Handler()

	first := make(chan int, 1)
	go func() {
		first <- serve(h, "/songs/Slow?artist=Band").Code
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("First request never reached the session")
	}

	rec := serve(h, "/list")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 while the queue is full, got %d", rec.Code)
	}

	close(release)
	if code := <-first; code != http.StatusNotFound {
		t.Errorf("Expected first request to finish with 404, got %d", code)
	}

	req.lines = []string{"Song A - Artist X"}
	if rec := serve(h, "/list"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 once the queue drained, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(&fakeRequester{}, Options{}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/list", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestRecoversFromPanic(t *testing.T) {
	req := &fakeRequester{
		download: func(ctx context.Context, song, artist string) (*session.Outcome, error) {
			panic("boom")
		},
	}
	rec := serve(New(req, Options{}).Handler(), "/songs/Song?artist=Band")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after a panic, got %d", rec.Code)
	}
}

func TestAccessLog(t *testing.T) {
	var accessLog bytes.Buffer
	req := &fakeRequester{lines: []string{"Song A - Artist X"}}
	h := New(req, Options{AccessLog: &accessLog}).Handler()

	r := httptest.NewRequest(http.MethodGet, "/list", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), r)

	line := accessLog.String()
	if !strings.HasPrefix(line, "192.0.2.1 203.0.113.9 - [") {
		t.Errorf("Unexpected log prefix %q", line)
	}
	if !strings.Contains(line, "\"GET /list HTTP/1.1\" 200 18") {
		t.Errorf("Expected request line and status in %q", line)
	}
}
