package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const readBufferSize = 16 * 1024

// Reader decodes frames from a byte stream
type Reader struct {
	br      *bufio.Reader
	skipped int64
}

// NewReader creates a frame reader on top of r
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, readBufferSize)}
}

// ReadMessage reads and decodes the next frame.
//
// io.EOF is returned only on a clean frame boundary; a stream that ends inside a
// frame yields io.ErrUnexpectedEOF. Frames with an unknown kind or a payload that
// does not decode are consumed and reported as ErrMalformedMessage, so the next
// call starts on the following frame. Garbage in front of a frame is skipped up
// to the next magic and also reported as ErrMalformedMessage.
func (r *Reader) ReadMessage() (Message, error) {
	kind, payload, err := r.readFrame()
	if err != nil {
		return Message{}, err
	}
	return decodeMessage(kind, payload)
}

// Skipped returns the number of bytes discarded while resynchronizing
func (r *Reader) Skipped() int64 {
	return r.skipped
}

func (r *Reader) readFrame() (Kind, []byte, error) {
	if err := r.sync(); err != nil {
		return 0, nil, err
	}

	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		return 0, nil, unexpectedEOF(err)
	}
	n := binary.BigEndian.Uint32(hdr[5:])
	if n > MaxPayload {
		// The length cannot be trusted, so the payload is left in the stream
		// and the next sync skips it.
		return 0, nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrMalformedMessage, n, MaxPayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return 0, nil, unexpectedEOF(err)
	}
	return Kind(hdr[4]), payload, nil
}

// sync positions the stream on the next frame magic
func (r *Reader) sync() error {
	skipped := 0
	for {
		peek, err := r.br.Peek(len(magic))
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(peek) == 0 && skipped == 0 {
					return io.EOF
				}
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if bytes.Equal(peek, magic[:]) {
			if skipped > 0 {
				r.skipped += int64(skipped)
				return fmt.Errorf("%w: skipped %d bytes before frame magic", ErrMalformedMessage, skipped)
			}
			return nil
		}
		if _, err := r.br.Discard(1); err != nil {
			return err
		}
		skipped++
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
