// Package gateway exposes a session over HTTP. Requests queue for the single
// connection; when the queue is full callers get 429.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/ytget/mp3-client/internal/model"
	"github.com/ytget/mp3-client/internal/platform"
	"github.com/ytget/mp3-client/internal/session"
)

// Content types by song file extension
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
}

// Defaults
const (
	DefaultQueueLimit = 5
	shutdownTimeout   = 5 * time.Second
)

// Options configures the gateway
type Options struct {
	// QueueLimit is how many requests may wait for the connection
	QueueLimit int

	// AccessLog receives one combined-format line per request; nil disables it
	AccessLog io.Writer

	Debug bool
}

// Gateway serves catalog listings and songs fetched through a Requester
type Gateway struct {
	req   session.Requester
	queue chan struct{}
	opts  Options
}

// New creates a gateway in front of req
func New(req session.Requester, opts Options) *Gateway {
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = DefaultQueueLimit
	}
	return &Gateway{
		req:   req,
		queue: make(chan struct{}, opts.QueueLimit),
		opts:  opts,
	}
}

// Handler returns the routes wrapped with panic recovery and access logging
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /list", g.queued(g.handleList))
	mux.HandleFunc("GET /songs/{song}", g.queued(g.handleSong))

	var h http.Handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(g.opts.Debug))(mux)
	if g.opts.AccessLog != nil {
		h = handlers.CustomLoggingHandler(g.opts.AccessLog, h, accessLogFormatter)
	}
	return h
}

// ListenAndServe serves on addr until ctx is done
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] Gateway listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// queued admits a request into the bounded queue or rejects it with 429
func (g *Gateway) queued(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case g.queue <- struct{}{}:
			defer func() { <-g.queue }()
		default:
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, "Please wait before sending more requests (%d)", len(g.queue))
			return
		}
		next(w, r)
	}
}

func (g *Gateway) handleList(w http.ResponseWriter, r *http.Request) {
	outcome, err := g.req.SendListRequest(r.Context())
	if err != nil {
		g.fail(w, err)
		return
	}

	if wantsJSON(r) {
		entries := make([]*model.CatalogEntry, 0, len(outcome.Lines))
		for _, line := range outcome.Lines {
			entry, err := platform.ParseCatalogLine(line)
			if err != nil {
				continue
			}
			entries = append(entries, entry)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Printf("[http] failed to write listing: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range outcome.Lines {
		fmt.Fprintln(w, line)
	}
}

func (g *Gateway) handleSong(w http.ResponseWriter, r *http.Request) {
	song := r.PathValue("song")
	artist := r.URL.Query().Get("artist")
	if strings.TrimSpace(song) == "" || strings.TrimSpace(artist) == "" {
		http.Error(w, "song and artist are required", http.StatusBadRequest)
		return
	}

	outcome, err := g.req.SendDownloadRequest(r.Context(), song, artist)
	if err != nil {
		g.fail(w, err)
		return
	}
	if outcome.NotFound {
		http.Error(w, fmt.Sprintf("No such song: %s by %s", song, artist), http.StatusNotFound)
		return
	}

	f, err := os.Open(outcome.Path)
	if err != nil {
		g.fail(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		g.fail(w, err)
		return
	}

	name := filepath.Base(outcome.Path)
	contentType, ok := audioTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline; filename=\""+name+"\"")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// fail maps a session error to an HTTP status
func (g *Gateway) fail(w http.ResponseWriter, err error) {
	// Truncated and malformed responses stay 502
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, session.ErrTransport), errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the response
		return
	}
	if g.opts.Debug {
		log.Printf("[http] request failed with %d: %v", status, err)
	}
	http.Error(w, err.Error(), status)
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// accessLogFormatter writes Apache combined log lines with the forwarded-for address
func accessLogFormatter(writer io.Writer, params handlers.LogFormatterParams) {
	ip, _, err := net.SplitHostPort(params.Request.RemoteAddr)
	if err != nil {
		ip = params.Request.RemoteAddr
	}

	xfwd := params.Request.Header.Get("X-Forwarded-For")
	if xfwd == "" {
		xfwd = "-"
	}

	username := "-"
	if user, _, ok := params.Request.BasicAuth(); ok && user != "" {
		username = user
	}

	fmt.Fprintf(writer, "%s %s %s [%s] \"%s %s %s\" %d %d \"%s\" \"%s\"\n",
		ip,
		xfwd,
		username,
		params.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
		params.Request.Method,
		params.URL.RequestURI(),
		params.Request.Proto,
		params.StatusCode,
		params.Size,
		params.Request.Referer(),
		params.Request.UserAgent(),
	)
}
