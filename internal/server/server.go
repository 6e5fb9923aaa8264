// Package server answers catalog requests from a directory of song files
// named "<song> - <artist><ext>".
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/ytget/mp3-client/internal/model"
	"github.com/ytget/mp3-client/internal/platform"
	"github.com/ytget/mp3-client/internal/protocol"
)

// Options configures a Server
type Options struct {
	Directory string
	Extension string
	Debug     bool
}

// Server serves one catalog to any number of connections
type Server struct {
	opts Options

	catalogMutex sync.RWMutex
	catalog      *model.Catalog

	connsMutex sync.Mutex
	conns      map[io.Closer]struct{}
	closing    bool
	wg         sync.WaitGroup
}

// New scans the catalog directory and returns a ready server
func New(opts Options) (*Server, error) {
	if opts.Directory == "" {
		opts.Directory = "."
	}
	if opts.Extension == "" {
		opts.Extension = platform.DefaultSongExtension
	}

	s := &Server{
		opts:  opts,
		conns: make(map[io.Closer]struct{}),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh rescans the catalog directory
func (s *Server) Refresh() error {
	catalog, err := platform.ScanCatalogDirectory(s.opts.Directory, s.opts.Extension)
	if err != nil {
		return err
	}

	s.catalogMutex.Lock()
	s.catalog = catalog
	s.catalogMutex.Unlock()

	if s.opts.Debug {
		log.Printf("[server] catalog has %d songs", catalog.Len())
	}
	return nil
}

// Catalog returns the current catalog. It must not be modified.
func (s *Server) Catalog() *model.Catalog {
	s.catalogMutex.RLock()
	defer s.catalogMutex.RUnlock()
	return s.catalog
}

// Serve accepts connections on ln until ctx is done, then closes every open
// connection and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeConns()
	})
	defer stop()

	log.Printf("[server] Listening on %s, serving %s", ln.Addr(), s.opts.Directory)
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if s.opts.Debug {
			log.Printf("[server] Connection from %s", conn.RemoteAddr())
		}

		// Registered before the handler starts so a shutdown cannot miss it
		if !s.track(conn) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// ServeConn answers requests on conn until the peer hangs up, then closes it
func (s *Server) ServeConn(conn io.ReadWriteCloser) {
	if !s.track(conn) {
		return
	}
	s.serve(conn)
}

func (s *Server) serve(conn io.ReadWriteCloser) {
	defer s.untrack(conn)
	defer conn.Close()

	rd := protocol.NewReader(conn)
	wr := protocol.NewWriter(conn)
	for {
		msg, err := rd.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				log.Printf("[server] discarding frame: %v", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("[server] read failed: %v", err)
			}
			return
		}

		if err := s.answer(wr, msg); err != nil {
			log.Printf("[server] write failed: %v", err)
			return
		}
	}
}

func (s *Server) answer(wr *protocol.Writer, msg protocol.Message) error {
	switch msg.Kind {
	case protocol.KindListRequest:
		lines := s.Catalog().Lines()
		if s.opts.Debug {
			log.Printf("[server] list: %d songs", len(lines))
		}
		return wr.WriteListing(lines)
	case protocol.KindDownloadRequest:
		return s.sendSong(wr, msg.Request.Song, msg.Request.Artist)
	default:
		if !msg.Kind.IsRequest() {
			log.Printf("[server] ignoring %s frame from client", msg.Kind)
		}
		return nil
	}
}

func (s *Server) sendSong(wr *protocol.Writer, song, artist string) error {
	entry, ok := s.Catalog().Find(song, artist)
	if !ok {
		if s.opts.Debug {
			log.Printf("[server] not found: %s by %s", song, artist)
		}
		return wr.WriteNotFound(song, artist)
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		log.Printf("[server] failed to read %s: %v", entry.Path, err)
		return wr.WriteNotFound(song, artist)
	}
	if s.opts.Debug {
		log.Printf("[server] sending %s (%s)", entry.Path, model.FormatSize(int64(len(data))))
	}
	return wr.WriteFile(entry.Song, entry.Artist, data)
}

// track registers c for shutdown. Once the server is closing c is closed
// right away and false is returned.
func (s *Server) track(c io.Closer) bool {
	s.connsMutex.Lock()
	defer s.connsMutex.Unlock()
	if s.closing {
		c.Close()
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c io.Closer) {
	s.connsMutex.Lock()
	defer s.connsMutex.Unlock()
	delete(s.conns, c)
}

func (s *Server) closeConns() {
	s.connsMutex.Lock()
	defer s.connsMutex.Unlock()
	s.closing = true
	for c := range s.conns {
		c.Close()
	}
}
