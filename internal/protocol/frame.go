package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire constants
const (
	// ChunkSize is the fixed size of every data chunk frame
	ChunkSize = 1000

	// NotFoundSize is the header file size sent for songs the server does not have
	NotFoundSize int32 = -1

	// MaxPayload bounds a single frame payload
	MaxPayload = 64 * 1024

	// MaxStringLength bounds song, artist and listing text
	MaxStringLength = 0xFFFF

	frameHeaderLen = 9
)

var magic = [4]byte{'S', 'N', 'G', 0x01}

// ErrMalformedMessage is returned for frames that cannot be recognized or decoded
var ErrMalformedMessage = errors.New("malformed message")

// Kind is the frame discriminator
type Kind byte

const (
	KindListRequest     Kind = 0x01
	KindDownloadRequest Kind = 0x02
	KindHeader          Kind = 0x10
	KindChunk           Kind = 0x11
	KindListEntry       Kind = 0x20
	KindListEnd         Kind = 0x21
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindListRequest:
		return "list-request"
	case KindDownloadRequest:
		return "download-request"
	case KindHeader:
		return "header"
	case KindChunk:
		return "chunk"
	case KindListEntry:
		return "list-entry"
	case KindListEnd:
		return "list-end"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// IsRequest returns true for client to server kinds
func (k Kind) IsRequest() bool {
	return k == KindListRequest || k == KindDownloadRequest
}

// appendFrame appends a complete frame for kind and payload to dst
func appendFrame(dst []byte, kind Kind, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%s payload of %d bytes exceeds %d", kind, len(payload), MaxPayload)
	}
	var hdr [frameHeaderLen]byte
	copy(hdr[:4], magic[:])
	hdr[4] = byte(kind)
	binary.BigEndian.PutUint32(hdr[5:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}

// splitFrame validates one complete encoded frame and returns its kind and payload
func splitFrame(frame []byte) (Kind, []byte, error) {
	if len(frame) < frameHeaderLen {
		return 0, nil, fmt.Errorf("%w: frame of %d bytes is shorter than its header", ErrMalformedMessage, len(frame))
	}
	if !bytes.Equal(frame[:4], magic[:]) {
		return 0, nil, fmt.Errorf("%w: bad magic %x", ErrMalformedMessage, frame[:4])
	}
	n := binary.BigEndian.Uint32(frame[5:frameHeaderLen])
	if int(n) != len(frame)-frameHeaderLen {
		return 0, nil, fmt.Errorf("%w: length field %d does not match payload of %d bytes",
			ErrMalformedMessage, n, len(frame)-frameHeaderLen)
	}
	return Kind(frame[4]), frame[frameHeaderLen:], nil
}

func appendString(dst []byte, s string) ([]byte, error) {
	if len(s) > MaxStringLength {
		return nil, fmt.Errorf("string of %d bytes exceeds %d", len(s), MaxStringLength)
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...), nil
}

// readStrings decodes exactly n length-prefixed strings that fill payload
func readStrings(payload []byte, n int) ([]string, error) {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if len(payload) < 2 {
			return nil, fmt.Errorf("%w: missing length of field %d", ErrMalformedMessage, i)
		}
		l := int(binary.BigEndian.Uint16(payload))
		payload = payload[2:]
		if len(payload) < l {
			return nil, fmt.Errorf("%w: field %d wants %d bytes, %d left", ErrMalformedMessage, i, l, len(payload))
		}
		out = append(out, string(payload[:l]))
		payload = payload[l:]
	}
	if len(payload) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, len(payload))
	}
	return out, nil
}
