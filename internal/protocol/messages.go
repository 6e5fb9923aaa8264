package protocol

import (
	"encoding/binary"
	"fmt"
)

const headerFlagIsHeader = 0x01

// Request is a client request: a catalog listing or a single song download
type Request struct {
	Kind   Kind
	Song   string // download only
	Artist string // download only
}

// ListRequest creates a catalog listing request
func ListRequest() Request {
	return Request{Kind: KindListRequest}
}

// DownloadRequest creates a request for one song
func DownloadRequest(song, artist string) Request {
	return Request{Kind: KindDownloadRequest, Song: song, Artist: artist}
}

// Header precedes a response. For downloads IsHeader is true and FileSize is
// either the exact byte length or NotFoundSize. A header with IsHeader false
// opens a catalog listing.
type Header struct {
	IsHeader bool
	Song     string
	Artist   string
	FileSize int32
}

// NotFound returns true if the header reports a missing song
func (h Header) NotFound() bool {
	return h.IsHeader && h.FileSize == NotFoundSize
}

// Message is one decoded frame. Kind selects which of the other fields is set.
type Message struct {
	Kind    Kind
	Request Request // KindListRequest, KindDownloadRequest
	Header  Header  // KindHeader
	Chunk   []byte  // KindChunk, always ChunkSize bytes
	Line    string  // KindListEntry
}

// EncodeRequest encodes a request as a complete frame
func EncodeRequest(r Request) ([]byte, error) {
	switch r.Kind {
	case KindListRequest:
		return appendFrame(nil, KindListRequest, nil)
	case KindDownloadRequest:
		payload, err := appendString(nil, r.Song)
		if err != nil {
			return nil, fmt.Errorf("encode song name: %w", err)
		}
		if payload, err = appendString(payload, r.Artist); err != nil {
			return nil, fmt.Errorf("encode artist name: %w", err)
		}
		return appendFrame(nil, KindDownloadRequest, payload)
	default:
		return nil, fmt.Errorf("%w: %s is not a request", ErrMalformedMessage, r.Kind)
	}
}

// DecodeRequest decodes a complete request frame
func DecodeRequest(frame []byte) (Request, error) {
	kind, payload, err := splitFrame(frame)
	if err != nil {
		return Request{}, err
	}
	return decodeRequest(kind, payload)
}

func decodeRequest(kind Kind, payload []byte) (Request, error) {
	switch kind {
	case KindListRequest:
		if len(payload) != 0 {
			return Request{}, fmt.Errorf("%w: list request carries %d bytes", ErrMalformedMessage, len(payload))
		}
		return ListRequest(), nil
	case KindDownloadRequest:
		fields, err := readStrings(payload, 2)
		if err != nil {
			return Request{}, err
		}
		return DownloadRequest(fields[0], fields[1]), nil
	default:
		return Request{}, fmt.Errorf("%w: unrecognized request kind %s", ErrMalformedMessage, kind)
	}
}

// EncodeHeader encodes a response header as a complete frame
func EncodeHeader(h Header) ([]byte, error) {
	payload := make([]byte, 5, 5+4+len(h.Song)+len(h.Artist))
	if h.IsHeader {
		payload[0] = headerFlagIsHeader
	}
	binary.BigEndian.PutUint32(payload[1:5], uint32(h.FileSize))

	var err error
	if payload, err = appendString(payload, h.Song); err != nil {
		return nil, fmt.Errorf("encode song name: %w", err)
	}
	if payload, err = appendString(payload, h.Artist); err != nil {
		return nil, fmt.Errorf("encode artist name: %w", err)
	}
	return appendFrame(nil, KindHeader, payload)
}

// DecodeHeader decodes a complete header frame
func DecodeHeader(frame []byte) (Header, error) {
	kind, payload, err := splitFrame(frame)
	if err != nil {
		return Header{}, err
	}
	if kind != KindHeader {
		return Header{}, fmt.Errorf("%w: expected %s, got %s", ErrMalformedMessage, KindHeader, kind)
	}
	return decodeHeader(payload)
}

func decodeHeader(payload []byte) (Header, error) {
	if len(payload) < 5 {
		return Header{}, fmt.Errorf("%w: header of %d bytes", ErrMalformedMessage, len(payload))
	}
	if payload[0]&^headerFlagIsHeader != 0 {
		return Header{}, fmt.Errorf("%w: unknown header flags 0x%02x", ErrMalformedMessage, payload[0])
	}
	h := Header{
		IsHeader: payload[0]&headerFlagIsHeader != 0,
		FileSize: int32(binary.BigEndian.Uint32(payload[1:5])),
	}
	if h.IsHeader && h.FileSize < NotFoundSize {
		return Header{}, fmt.Errorf("%w: invalid file size %d", ErrMalformedMessage, h.FileSize)
	}
	fields, err := readStrings(payload[5:], 2)
	if err != nil {
		return Header{}, err
	}
	h.Song, h.Artist = fields[0], fields[1]
	return h, nil
}

// EncodeChunk encodes up to ChunkSize bytes as a chunk frame. Short data is
// zero-padded: the frame is always ChunkSize bytes and the receiver decides how
// many of them are meaningful from the header's file size.
func EncodeChunk(data []byte) ([]byte, error) {
	if len(data) > ChunkSize {
		return nil, fmt.Errorf("chunk of %d bytes exceeds %d", len(data), ChunkSize)
	}
	payload := make([]byte, ChunkSize)
	copy(payload, data)
	return appendFrame(nil, KindChunk, payload)
}

// DecodeChunk decodes a complete chunk frame into its ChunkSize bytes
func DecodeChunk(frame []byte) ([]byte, error) {
	kind, payload, err := splitFrame(frame)
	if err != nil {
		return nil, err
	}
	if kind != KindChunk {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrMalformedMessage, KindChunk, kind)
	}
	return decodeChunk(payload)
}

func decodeChunk(payload []byte) ([]byte, error) {
	if len(payload) != ChunkSize {
		return nil, fmt.Errorf("%w: chunk of %d bytes, want %d", ErrMalformedMessage, len(payload), ChunkSize)
	}
	return payload, nil
}

// EncodeListEntry encodes one catalog line
func EncodeListEntry(line string) ([]byte, error) {
	if len(line) > MaxStringLength {
		return nil, fmt.Errorf("list entry of %d bytes exceeds %d", len(line), MaxStringLength)
	}
	return appendFrame(nil, KindListEntry, []byte(line))
}

// EncodeListEnd encodes the marker that closes a catalog listing
func EncodeListEnd() []byte {
	frame, _ := appendFrame(nil, KindListEnd, nil)
	return frame
}

// decodeMessage is the single dispatch point from frame kind to message shape
func decodeMessage(kind Kind, payload []byte) (Message, error) {
	msg := Message{Kind: kind}
	var err error

	switch kind {
	case KindListRequest, KindDownloadRequest:
		msg.Request, err = decodeRequest(kind, payload)
	case KindHeader:
		msg.Header, err = decodeHeader(payload)
	case KindChunk:
		msg.Chunk, err = decodeChunk(payload)
	case KindListEntry:
		msg.Line = string(payload)
	case KindListEnd:
		if len(payload) != 0 {
			err = fmt.Errorf("%w: list end carries %d bytes", ErrMalformedMessage, len(payload))
		}
	default:
		err = fmt.Errorf("%w: unrecognized frame kind %s", ErrMalformedMessage, kind)
	}
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}
