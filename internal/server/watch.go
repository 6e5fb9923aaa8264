package server

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const catalogEvents = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Watch rescans the catalog whenever a song file in the directory changes.
// It blocks until ctx is done.
func (s *Server) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.opts.Directory); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.opts.Directory, err)
	}
	log.Printf("[server] Monitoring directory: %s", s.opts.Directory)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&catalogEvents == 0 || strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if s.opts.Debug {
				log.Printf("[server] %s", event)
			}
			if err := s.Refresh(); err != nil {
				log.Printf("[server] failed to rescan catalog: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[server] watcher error: %v", err)
		}
	}
}
