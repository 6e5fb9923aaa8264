package transfer

import (
	"bytes"
	"errors"
	"io"
	"math"
	"math/rand"
	"runtime"
	"testing"

	"github.com/ytget/mp3-client/internal/protocol"
)

// frameSource replays encoded chunk frames and counts reads
type frameSource struct {
	frames [][]byte
	reads  int
}

func newFrameSource(t *testing.T, data []byte) *frameSource {
	t.Helper()
	src := &frameSource{}
	for off := 0; off < len(data); off += protocol.ChunkSize {
		end := off + protocol.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		frame, err := protocol.EncodeChunk(data[off:end])
		if err != nil {
			t.Fatalf("EncodeChunk failed: %v", err)
		}
		src.frames = append(src.frames, frame)
	}
	return src
}

func (s *frameSource) NextChunk() ([]byte, error) {
	s.reads++
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return protocol.DecodeChunk(frame)
}

func TestAssembleFile_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := []int{1, 2, 999, 1000, 1001, 1999, 2000, 2500, 10000, 12345}

	for _, size := range sizes {
		data := make([]byte, size)
		rng.Read(data)

		src := newFrameSource(t, data)
		got, err := AssembleFile(int32(size), src)
		if err != nil {
			t.Fatalf("AssembleFile(%d) failed: %v", size, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("AssembleFile(%d) did not reproduce the original buffer", size)
		}
		if src.reads != ChunkCount(int32(size)) {
			t.Errorf("AssembleFile(%d) read %d chunks, expected %d", size, src.reads, ChunkCount(int32(size)))
		}
	}
}

func TestAssembleFile_EmptyFileReadsNothing(t *testing.T) {
	src := &frameSource{}

	got, err := AssembleFile(0, src)
	if err != nil {
		t.Fatalf("AssembleFile(0) failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil buffer, got %v", got)
	}
	if src.reads != 0 {
		t.Errorf("Expected 0 chunk reads for an empty file, got %d", src.reads)
	}
}

func TestAssembleFile_NotFoundReadsNothing(t *testing.T) {
	src := &frameSource{}

	got, err := AssembleFile(protocol.NotFoundSize, src)
	if err != nil {
		t.Fatalf("AssembleFile(-1) failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil buffer for not found, got %d bytes", len(got))
	}
	if src.reads != 0 {
		t.Errorf("Expected 0 chunk reads for not found, got %d", src.reads)
	}
}

func TestAssembleFile_ExactMultipleHasNoTrailingChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 3000)
	src := newFrameSource(t, data)
	// A trailing chunk that must never be consumed.
	extra, _ := protocol.EncodeChunk([]byte("extra"))
	src.frames = append(src.frames, extra)

	got, err := AssembleFile(3000, src)
	if err != nil {
		t.Fatalf("AssembleFile(3000) failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("AssembleFile(3000) did not reproduce the original buffer")
	}
	if src.reads != 3 {
		t.Errorf("Expected 3 chunk reads, got %d", src.reads)
	}
	if len(src.frames) != 1 {
		t.Errorf("Expected the trailing chunk to be left unread, %d frames left", len(src.frames))
	}
}

func TestAssembleFile_Truncated(t *testing.T) {
	data := bytes.Repeat([]byte{1}, 2500)
	src := newFrameSource(t, data)
	src.frames = src.frames[:2]

	got, err := AssembleFile(2500, src)
	if !errors.Is(err, ErrTruncatedTransfer) {
		t.Fatalf("Expected ErrTruncatedTransfer, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected no buffer for a truncated transfer, got %d bytes", len(got))
	}
}

func TestAssembleFile_SourceError(t *testing.T) {
	boom := errors.New("connection reset")
	src := ChunkSourceFunc(func() ([]byte, error) { return nil, boom })

	_, err := AssembleFile(10, src)
	if !errors.Is(err, boom) {
		t.Errorf("Expected source error to be wrapped, got %v", err)
	}
	if errors.Is(err, ErrTruncatedTransfer) {
		t.Error("Source error should not be reported as truncation")
	}
}

func TestAssembleFile_InvalidSize(t *testing.T) {
	if _, err := AssembleFile(-5, &frameSource{}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}

func TestAssembleFile_ShortChunk(t *testing.T) {
	src := ChunkSourceFunc(func() ([]byte, error) { return make([]byte, 10), nil })

	if _, err := AssembleFile(500, src); !errors.Is(err, protocol.ErrMalformedMessage) {
		t.Errorf("Expected ErrMalformedMessage for a short chunk, got %v", err)
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		size     int32
		expected int
	}{
		{protocol.NotFoundSize, 0},
		{0, 0},
		{1, 1},
		{999, 1},
		{1000, 1},
		{1001, 2},
		{2500, 3},
		{3000, 3},
	}

	for _, test := range tests {
		if got := ChunkCount(test.size); got != test.expected {
			t.Errorf("ChunkCount(%d) = %d, expected %d", test.size, got, test.expected)
		}
	}
}

func TestAssembleFile_LargeClaimAllocatesLazily(t *testing.T) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	_, err := AssembleFile(math.MaxInt32, &frameSource{})
	if !errors.Is(err, ErrTruncatedTransfer) {
		t.Fatalf("Expected ErrTruncatedTransfer, got %v", err)
	}

	runtime.ReadMemStats(&after)
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 64<<20 {
		t.Errorf("Expected no up-front allocation for the claimed size, allocated %d bytes", grown)
	}
}
