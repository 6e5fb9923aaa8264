package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ytget/mp3-client/internal/model"
	"github.com/ytget/mp3-client/internal/platform"
	"github.com/ytget/mp3-client/internal/protocol"
	"github.com/ytget/mp3-client/internal/transfer"
)

// ListenerState is the receive state of a Listener
type ListenerState int32

const (
	StateAwaitingResponse ListenerState = iota
	StateReceivingChunks
	StateReceivingListing
	StateNotFound
	StateClosed
)

// String returns the string representation of ListenerState
func (s ListenerState) String() string {
	switch s {
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateReceivingChunks:
		return "ReceivingChunks"
	case StateReceivingListing:
		return "ReceivingListing"
	case StateNotFound:
		return "NotFound"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("ListenerState(%d)", int32(s))
	}
}

// Outcome is the result of one exchange as seen by the listener
type Outcome struct {
	ExchangeID string
	Kind       model.ExchangeKind
	Song       string   // download only
	Artist     string   // download only
	NotFound   bool     // the server does not have the song
	Path       string   // where the song was saved
	Size       int64    // bytes saved
	Lines      []string // listing lines in arrival order
	Err        error
}

// ListenerOptions configures where received songs and listings go
type ListenerOptions struct {
	SaveDirectory string
	FileExtension string
	Output        io.Writer // listing lines are printed here as they arrive
	Debug         bool
}

type pendingRequest struct {
	req       protocol.Request
	abandoned bool
}

// Listener owns the read half of a connection. It runs on its own goroutine
// from NewListener until the stream fails or is closed.
type Listener struct {
	rd   *protocol.Reader
	opts ListenerOptions

	outcomes chan *Outcome
	done     chan struct{}
	err      error // written once before done is closed

	state    atomic.Int32
	stopping atomic.Bool

	mu      sync.Mutex
	pending []*pendingRequest

	// Owned by the run goroutine
	pushback *protocol.Message
	fatal    error
}

// NewListener starts a listener reading frames from r
func NewListener(r io.Reader, opts ListenerOptions) *Listener {
	if opts.SaveDirectory == "" {
		opts.SaveDirectory = "."
	}
	if opts.FileExtension == "" {
		opts.FileExtension = platform.DefaultSongExtension
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}

	l := &Listener{
		rd:       protocol.NewReader(r),
		opts:     opts,
		outcomes: make(chan *Outcome, 1),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

// Outcomes delivers one outcome per answered request
func (l *Listener) Outcomes() <-chan *Outcome {
	return l.outcomes
}

// Done is closed when the listener has stopped
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Err returns why the listener stopped. It is nil while running and after a
// local close; otherwise it wraps ErrTransport.
func (l *Listener) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// State returns the current receive state
func (l *Listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

// expect registers a request about to be written, so its response is
// delivered instead of being discarded as unsolicited
func (l *Listener) expect(req protocol.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, &pendingRequest{req: req})
}

// abandon gives up on the latest request. If its outcome already arrived it is
// returned; otherwise the late response will be discarded.
func (l *Listener) abandon() (*Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	select {
	case o := <-l.outcomes:
		return o, true
	default:
	}
	if n := len(l.pending); n > 0 {
		l.pending[n-1].abandoned = true
	}
	return nil, false
}

// stop marks the next read failure as a local close
func (l *Listener) stop() {
	l.stopping.Store(true)
}

func (l *Listener) run() {
	defer close(l.done)

	for {
		msg, err := l.read()
		if err != nil {
			if !errors.Is(err, protocol.ErrMalformedMessage) {
				l.shutdown(err)
				return
			}
			log.Printf("[listener] discarding frame: %v", err)
			if l.hasPending() {
				l.deliver(&Outcome{Err: err})
			}
			continue
		}

		if err := l.handle(msg); err != nil {
			l.shutdown(err)
			return
		}
	}
}

func (l *Listener) handle(msg protocol.Message) error {
	if msg.Kind != protocol.KindHeader {
		log.Printf("[listener] discarding stray %s frame", msg.Kind)
		return nil
	}

	h := msg.Header
	switch {
	case !h.IsHeader:
		return l.receiveListing()
	case h.NotFound():
		l.setState(StateNotFound)
		song, artist := l.names(h)
		l.deliver(&Outcome{Kind: model.ExchangeKindDownload, Song: song, Artist: artist, NotFound: true})
		l.setState(StateAwaitingResponse)
		return nil
	default:
		return l.receiveFile(h)
	}
}

func (l *Listener) receiveFile(h protocol.Header) error {
	l.setState(StateReceivingChunks)
	defer l.setState(StateAwaitingResponse)

	song, artist := l.names(h)
	o := &Outcome{Kind: model.ExchangeKindDownload, Song: song, Artist: artist}
	fmt.Fprintf(l.opts.Output, "Song: %s, Size: %d\n", song, h.FileSize)

	data, err := transfer.AssembleFile(h.FileSize, transfer.ChunkSourceFunc(l.nextChunk))
	if l.fatal != nil {
		o.Err = fmt.Errorf("%w: %w", ErrTransport, l.fatal)
		l.deliver(o)
		return l.fatal
	}
	if err != nil {
		log.Printf("[listener] transfer of %q failed: %v", song, err)
		o.Err = err
		l.deliver(o)
		return nil
	}

	path, err := platform.SaveSong(l.opts.SaveDirectory, song, l.opts.FileExtension, data)
	if err != nil {
		log.Printf("[listener] failed to save %q: %v", song, err)
		o.Err = err
		l.deliver(o)
		return nil
	}
	if l.opts.Debug {
		log.Printf("[listener] saved %s (%d bytes)", path, len(data))
	}

	o.Path = path
	o.Size = int64(len(data))
	l.deliver(o)
	return nil
}

func (l *Listener) receiveListing() error {
	l.setState(StateReceivingListing)
	defer l.setState(StateAwaitingResponse)

	o := &Outcome{Kind: model.ExchangeKindList}
	listing := transfer.NewListing(transfer.LineSourceFunc(l.nextLine))
	for listing.Next() {
		fmt.Fprintln(l.opts.Output, listing.Line())
		o.Lines = append(o.Lines, listing.Line())
	}

	if l.fatal != nil {
		o.Err = fmt.Errorf("%w: %w", ErrTransport, l.fatal)
		l.deliver(o)
		return l.fatal
	}
	if err := listing.Err(); err != nil {
		log.Printf("[listener] listing failed after %d lines: %v", len(o.Lines), err)
		o.Err = err
	}
	l.deliver(o)
	return nil
}

// nextChunk feeds the assembler. Any frame other than a chunk ends the
// transfer early and is kept for the main loop.
func (l *Listener) nextChunk() ([]byte, error) {
	msg, err := l.read()
	if err != nil {
		l.noteFatal(err)
		return nil, err
	}
	if msg.Kind != protocol.KindChunk {
		l.pushback = &msg
		return nil, io.ErrUnexpectedEOF
	}
	return msg.Chunk, nil
}

// nextLine feeds the listing. The listing ends at a list end frame, at the
// end of the stream, or at any frame that does not belong to it.
func (l *Listener) nextLine() (string, error) {
	msg, err := l.read()
	if err != nil {
		l.noteFatal(err)
		return "", err
	}
	switch msg.Kind {
	case protocol.KindListEntry:
		return msg.Line, nil
	case protocol.KindListEnd:
		return "", io.EOF
	default:
		log.Printf("[listener] listing ended by %s frame", msg.Kind)
		l.pushback = &msg
		return "", io.EOF
	}
}

// read returns the next message, skipping over garbage between frames
func (l *Listener) read() (protocol.Message, error) {
	if l.pushback != nil {
		msg := *l.pushback
		l.pushback = nil
		return msg, nil
	}

	for {
		skipped := l.rd.Skipped()
		msg, err := l.rd.ReadMessage()
		if err != nil && errors.Is(err, protocol.ErrMalformedMessage) && l.rd.Skipped() > skipped {
			log.Printf("[listener] %v", err)
			continue
		}
		if err == nil && l.opts.Debug {
			log.Printf("[listener] <- %s (state %s)", msg.Kind, l.State())
		}
		return msg, err
	}
}

// noteFatal records read errors that end the connection. The end of the
// stream and bad frames only end the current payload.
func (l *Listener) noteFatal(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, protocol.ErrMalformedMessage) {
		return
	}
	l.fatal = err
}

// names returns song and artist for a response, preferring the header and
// falling back to the request it answers
func (l *Listener) names(h protocol.Header) (string, string) {
	song, artist := h.Song, h.Artist

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) > 0 {
		req := l.pending[0].req
		if song == "" {
			song = req.Song
		}
		if artist == "" {
			artist = req.Artist
		}
	}
	return song, artist
}

func (l *Listener) hasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) > 0
}

// deliver hands o to the oldest pending request it answers. Abandoned requests
// that o does not answer are dropped on the way. A response that answers
// neither the oldest live request nor anything before it is late and discarded.
func (l *Listener) deliver(o *Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.pending) > 0 {
		p := l.pending[0]
		if !answers(p.req, o) {
			if p.abandoned {
				l.pending = l.pending[1:]
				continue
			}
			log.Printf("[listener] discarding late %s response for %q", o.Kind, o.Song)
			return
		}
		l.pending = l.pending[1:]

		if o.Kind == "" {
			o.Kind = requestKind(p.req)
		}
		if p.abandoned {
			log.Printf("[listener] discarding late %s response", o.Kind)
			return
		}

		select {
		case l.outcomes <- o:
		default:
			log.Printf("[listener] outcome slot full, discarding %s response", o.Kind)
		}
		return
	}
	log.Printf("[listener] discarding unsolicited %s response", o.Kind)
}

// answers reports whether o can be the response to req. Outcomes without a
// kind come from bad frames and answer whatever is oldest.
func answers(req protocol.Request, o *Outcome) bool {
	if o.Kind == "" {
		return true
	}
	if o.Kind != requestKind(req) {
		return false
	}
	if o.Kind == model.ExchangeKindList {
		return true
	}
	entry := model.CatalogEntry{Song: req.Song, Artist: req.Artist}
	return entry.Matches(o.Song, o.Artist)
}

func (l *Listener) shutdown(err error) {
	l.setState(StateClosed)

	if l.stopping.Load() {
		if l.opts.Debug {
			log.Printf("[listener] stopped")
		}
		return
	}
	if errors.Is(err, io.EOF) {
		log.Printf("[listener] server closed the connection")
	} else {
		log.Printf("[listener] read failed: %v", err)
	}
	l.err = fmt.Errorf("%w: %w", ErrTransport, err)
}

func (l *Listener) setState(s ListenerState) {
	l.state.Store(int32(s))
}

func requestKind(req protocol.Request) model.ExchangeKind {
	if req.Kind == protocol.KindListRequest {
		return model.ExchangeKindList
	}
	return model.ExchangeKindDownload
}
