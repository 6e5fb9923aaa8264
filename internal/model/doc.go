// Package model defines domain data structures shared across the client and
// the catalog server: request/response exchanges with their status enum, and
// catalog entries. Structures are plain data with explicit state transitions.
package model
