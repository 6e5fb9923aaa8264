// Package transfer rebuilds payloads from the message stream: a file from its
// data chunks and a catalog listing from its lines.
package transfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/ytget/mp3-client/internal/protocol"
)

// maxPrealloc caps the buffer allocated up front; larger files grow as chunks arrive
const maxPrealloc = 1 << 20

var (
	// ErrTruncatedTransfer means the chunk source ended before the header's file size was reached
	ErrTruncatedTransfer = errors.New("truncated transfer")

	// ErrInvalidSize is returned for negative sizes other than the not-found sentinel
	ErrInvalidSize = errors.New("invalid file size")
)

// ChunkSource yields ChunkSize-byte data chunks in order. It returns io.EOF
// when no further chunk belongs to the current transfer.
type ChunkSource interface {
	NextChunk() ([]byte, error)
}

// ChunkSourceFunc adapts a function to ChunkSource
type ChunkSourceFunc func() ([]byte, error)

// NextChunk calls f
func (f ChunkSourceFunc) NextChunk() ([]byte, error) {
	return f()
}

// IsNotFound returns true for the header size that marks a missing song
func IsNotFound(fileSize int32) bool {
	return fileSize == protocol.NotFoundSize
}

// ChunkCount returns how many chunks carry a file of fileSize bytes.
// An exact multiple of ChunkSize needs no trailing empty chunk, and an empty
// file needs none at all.
func ChunkCount(fileSize int32) int {
	if fileSize <= 0 {
		return 0
	}
	n := int(fileSize)
	return (n + protocol.ChunkSize - 1) / protocol.ChunkSize
}

// AssembleFile reads ChunkCount(fileSize) chunks from src and returns the
// fileSize meaningful bytes. A not-found size returns (nil, nil) without
// reading. If src runs out early the partial buffer is dropped and the error
// wraps ErrTruncatedTransfer.
func AssembleFile(fileSize int32, src ChunkSource) ([]byte, error) {
	if IsNotFound(fileSize) {
		return nil, nil
	}
	if fileSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, fileSize)
	}

	buf := make([]byte, 0, min(int(fileSize), maxPrealloc))
	count := ChunkCount(fileSize)

	for i := 0; i < count; i++ {
		chunk, err := src.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: got %d of %d chunks (%d of %d bytes)",
					ErrTruncatedTransfer, i, count, len(buf), fileSize)
			}
			return nil, fmt.Errorf("read chunk %d of %d: %w", i+1, count, err)
		}

		want := protocol.ChunkSize
		if remain := int(fileSize) - len(buf); remain < want {
			want = remain
		}
		if len(chunk) < want {
			return nil, fmt.Errorf("%w: chunk %d carries %d bytes, need %d",
				protocol.ErrMalformedMessage, i+1, len(chunk), want)
		}
		buf = append(buf, chunk[:want]...)
	}

	return buf, nil
}
