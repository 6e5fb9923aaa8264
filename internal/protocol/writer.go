package protocol

import (
	"fmt"
	"io"
)

// Writer encodes frames onto a byte stream. Each frame goes out in a single
// Write call.
type Writer struct {
	w io.Writer
}

// NewWriter creates a frame writer on top of w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRequest writes one list or download request
func (w *Writer) WriteRequest(r Request) error {
	frame, err := EncodeRequest(r)
	if err != nil {
		return err
	}
	return w.write(frame)
}

// WriteHeader writes a response header
func (w *Writer) WriteHeader(h Header) error {
	frame, err := EncodeHeader(h)
	if err != nil {
		return err
	}
	return w.write(frame)
}

// WriteChunk writes one zero-padded data chunk
func (w *Writer) WriteChunk(data []byte) error {
	frame, err := EncodeChunk(data)
	if err != nil {
		return err
	}
	return w.write(frame)
}

// WriteListEntry writes one catalog line
func (w *Writer) WriteListEntry(line string) error {
	frame, err := EncodeListEntry(line)
	if err != nil {
		return err
	}
	return w.write(frame)
}

// WriteListEnd writes the listing terminator
func (w *Writer) WriteListEnd() error {
	return w.write(EncodeListEnd())
}

// WriteFile writes a download response: the header followed by
// ceil(len(data)/ChunkSize) chunks
func (w *Writer) WriteFile(song, artist string, data []byte) error {
	if int64(len(data)) > int64(^uint32(0)>>1) {
		return fmt.Errorf("file of %d bytes is too large", len(data))
	}
	h := Header{IsHeader: true, Song: song, Artist: artist, FileSize: int32(len(data))}
	if err := w.WriteHeader(h); err != nil {
		return err
	}
	for off := 0; off < len(data); off += ChunkSize {
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := w.WriteChunk(data[off:end]); err != nil {
			return fmt.Errorf("write chunk at offset %d: %w", off, err)
		}
	}
	return nil
}

// WriteNotFound writes the header for a song the server does not have
func (w *Writer) WriteNotFound(song, artist string) error {
	return w.WriteHeader(Header{IsHeader: true, Song: song, Artist: artist, FileSize: NotFoundSize})
}

// WriteListing writes a listing response: an opening header, one entry per
// line and the terminator
func (w *Writer) WriteListing(lines []string) error {
	if err := w.WriteHeader(Header{IsHeader: false}); err != nil {
		return err
	}
	for _, line := range lines {
		if err := w.WriteListEntry(line); err != nil {
			return err
		}
	}
	return w.WriteListEnd()
}

func (w *Writer) write(frame []byte) error {
	_, err := w.w.Write(frame)
	return err
}
