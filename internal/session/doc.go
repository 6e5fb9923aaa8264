// Package session drives one connection to the catalog server. A Session
// writes requests and waits; a Listener goroutine owns the read half, decodes
// responses, assembles and saves files, prints listings and hands each result
// back to the waiting Session as an Outcome.
package session
