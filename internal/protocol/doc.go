// Package protocol implements the song catalog wire format: length-prefixed
// frames carrying list/download requests, download headers, fixed-size data
// chunks and listing lines. Every frame starts with a magic and a kind byte so
// the reader can tell message shapes apart without inspecting payloads.
package protocol
