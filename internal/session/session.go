package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ytget/mp3-client/internal/model"
	"github.com/ytget/mp3-client/internal/protocol"
)

// ExchangeIDPrefix starts every exchange ID
const ExchangeIDPrefix = "xchg-"

// Options configures a Session
type Options struct {
	SaveDirectory string
	FileExtension string

	// ResponseTimeout bounds the wait for a response; zero waits forever
	ResponseTimeout time.Duration

	// Output receives listing lines as they arrive
	Output io.Writer

	Debug bool
}

var _ Client = (*Session)(nil)

// Session sends requests over one connection, one at a time
type Session struct {
	conn     io.ReadWriteCloser
	wr       *protocol.Writer
	listener *Listener
	opts     Options

	sendMu    sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	exchanges      map[string]*model.Exchange
	exchangesMutex sync.RWMutex
	onUpdate       func(*model.Exchange)
}

// NewSession takes ownership of conn and starts its listener
func NewSession(conn io.ReadWriteCloser, opts Options) *Session {
	return &Session{
		conn: conn,
		wr:   protocol.NewWriter(conn),
		listener: NewListener(conn, ListenerOptions{
			SaveDirectory: opts.SaveDirectory,
			FileExtension: opts.FileExtension,
			Output:        opts.Output,
			Debug:         opts.Debug,
		}),
		opts:      opts,
		exchanges: make(map[string]*model.Exchange),
	}
}

// Listener returns the session's listener
func (s *Session) Listener() *Listener {
	return s.listener
}

// SetUpdateCallback sets the callback function for exchange updates
func (s *Session) SetUpdateCallback(callback func(*model.Exchange)) {
	s.exchangesMutex.Lock()
	defer s.exchangesMutex.Unlock()
	s.onUpdate = callback
}

// SendListRequest asks for the catalog and waits until the listing has been received
func (s *Session) SendListRequest(ctx context.Context) (*Outcome, error) {
	return s.exchange(ctx, protocol.ListRequest())
}

// SendDownloadRequest asks for one song and waits until it has been saved or
// reported missing. A missing song is an Outcome with NotFound set, not an error.
func (s *Session) SendDownloadRequest(ctx context.Context, song, artist string) (*Outcome, error) {
	song = strings.TrimSpace(song)
	artist = strings.TrimSpace(artist)
	if song == "" || artist == "" {
		return nil, fmt.Errorf("%w: song and artist are required", ErrInvalidRequest)
	}
	if len(song) > protocol.MaxStringLength || len(artist) > protocol.MaxStringLength {
		return nil, fmt.Errorf("%w: song or artist name too long", ErrInvalidRequest)
	}
	return s.exchange(ctx, protocol.DownloadRequest(song, artist))
}

// exchange writes req and blocks until its outcome. sendMu keeps a single
// request in flight on the connection.
func (s *Session) exchange(ctx context.Context, req protocol.Request) (*Outcome, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case <-s.listener.Done():
		return nil, s.listenerErr()
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ex := s.addExchange(req)

	s.listener.expect(req)
	if err := s.wr.WriteRequest(req); err != nil {
		s.listener.abandon()
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		log.Printf("[session] failed to send %s: %v", req.Kind, err)
		s.finish(ex, model.ExchangeStatusError, err)
		s.closed.Store(true)
		return nil, err
	}
	if s.opts.Debug {
		log.Printf("[session] -> %s %s", req.Kind, ex.ID)
	}
	s.setStatus(ex, model.ExchangeStatusSent)

	o, err := s.wait(ctx)
	if err != nil {
		status := model.ExchangeStatusError
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = model.ExchangeStatusAbandoned
		}
		s.finish(ex, status, err)
		return nil, err
	}

	o.ExchangeID = ex.ID
	s.complete(ex, o)
	if o.Err != nil {
		return o, o.Err
	}
	return o, nil
}

func (s *Session) wait(ctx context.Context) (*Outcome, error) {
	var timeout <-chan time.Time
	if s.opts.ResponseTimeout > 0 {
		timer := time.NewTimer(s.opts.ResponseTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case o := <-s.listener.Outcomes():
		return o, nil
	case <-s.listener.Done():
		// The last outcome may have been delivered just before the listener stopped
		select {
		case o := <-s.listener.Outcomes():
			return o, nil
		default:
		}
		return nil, s.listenerErr()
	case <-ctx.Done():
		if o, ok := s.listener.abandon(); ok {
			return o, nil
		}
		return nil, ctx.Err()
	case <-timeout:
		if o, ok := s.listener.abandon(); ok {
			return o, nil
		}
		log.Printf("[session] no response after %v, abandoning exchange", s.opts.ResponseTimeout)
		return nil, ErrTimeout
	}
}

func (s *Session) listenerErr() error {
	if err := s.listener.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// Close closes the connection and waits for the listener to exit. No request
// is written to the server.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.listener.stop()
		s.closeErr = s.conn.Close()
		<-s.listener.Done()
	})
	return s.closeErr
}

// GetExchange returns an exchange by ID
func (s *Session) GetExchange(id string) (*model.Exchange, bool) {
	s.exchangesMutex.RLock()
	defer s.exchangesMutex.RUnlock()
	ex, exists := s.exchanges[id]
	return ex, exists
}

// GetAllExchanges returns all exchanges in the order they were started
func (s *Session) GetAllExchanges() []*model.Exchange {
	s.exchangesMutex.RLock()
	defer s.exchangesMutex.RUnlock()

	exchanges := make([]*model.Exchange, 0, len(s.exchanges))
	for _, ex := range s.exchanges {
		exchanges = append(exchanges, ex)
	}
	model.SortExchanges(exchanges)
	return exchanges
}

func (s *Session) addExchange(req protocol.Request) *model.Exchange {
	ex := &model.Exchange{
		ID:        generateExchangeID(),
		Kind:      requestKind(req),
		Song:      req.Song,
		Artist:    req.Artist,
		Status:    model.ExchangeStatusPending,
		StartedAt: time.Now(),
	}

	s.exchangesMutex.Lock()
	s.exchanges[ex.ID] = ex
	s.exchangesMutex.Unlock()

	s.notifyUpdate(ex)
	return ex
}

func (s *Session) setStatus(ex *model.Exchange, status model.ExchangeStatus) {
	s.exchangesMutex.Lock()
	ex.Status = status
	s.exchangesMutex.Unlock()

	s.notifyUpdate(ex)
}

func (s *Session) finish(ex *model.Exchange, status model.ExchangeStatus, err error) {
	s.exchangesMutex.Lock()
	ex.Status = status
	if err != nil {
		ex.LastError = err.Error()
	}
	ex.FinishedAt = time.Now()
	s.exchangesMutex.Unlock()

	s.notifyUpdate(ex)
}

func (s *Session) complete(ex *model.Exchange, o *Outcome) {
	s.exchangesMutex.Lock()
	switch {
	case o.Err != nil:
		ex.Status = model.ExchangeStatusError
		ex.LastError = o.Err.Error()
	case o.NotFound:
		ex.Status = model.ExchangeStatusNotFound
	default:
		ex.Status = model.ExchangeStatusCompleted
		ex.FileSize = o.Size
		ex.OutputPath = o.Path
		ex.Lines = len(o.Lines)
	}
	ex.FinishedAt = time.Now()
	s.exchangesMutex.Unlock()

	s.notifyUpdate(ex)
}

// notifyUpdate calls the update callback if set
func (s *Session) notifyUpdate(ex *model.Exchange) {
	s.exchangesMutex.RLock()
	callback := s.onUpdate
	s.exchangesMutex.RUnlock()

	if callback != nil {
		callback(ex)
	}
}

// generateExchangeID generates a time ordered unique exchange ID
func generateExchangeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(ExchangeIDPrefix+"%d", time.Now().UnixNano())
	}
	return ExchangeIDPrefix + id.String()
}
