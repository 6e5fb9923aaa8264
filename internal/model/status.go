package model

// ExchangeStatus represents the status of one request/response exchange
type ExchangeStatus string

const (
	// ExchangeStatusPending means the request is created but not yet written
	ExchangeStatusPending ExchangeStatus = "Pending"

	// ExchangeStatusSent means the request is on the wire and the session waits for the response
	ExchangeStatusSent ExchangeStatus = "Sent"

	// ExchangeStatusCompleted means the response was fully received and handled
	ExchangeStatusCompleted ExchangeStatus = "Completed"

	// ExchangeStatusNotFound means the server does not have the requested song
	ExchangeStatusNotFound ExchangeStatus = "NotFound"

	// ExchangeStatusError means the exchange failed (truncated, malformed or transport error)
	ExchangeStatusError ExchangeStatus = "Error"

	// ExchangeStatusAbandoned means the session stopped waiting (timeout or cancellation)
	ExchangeStatusAbandoned ExchangeStatus = "Abandoned"
)

// String returns the string representation of ExchangeStatus
func (s ExchangeStatus) String() string {
	return string(s)
}

// IsActive returns true if the exchange still occupies the connection
func (s ExchangeStatus) IsActive() bool {
	return s == ExchangeStatusPending || s == ExchangeStatusSent
}

// IsFinished returns true if the exchange reached a final state
func (s ExchangeStatus) IsFinished() bool {
	return s == ExchangeStatusCompleted || s == ExchangeStatusNotFound ||
		s == ExchangeStatusError || s == ExchangeStatusAbandoned
}

// ExchangeKind tells list exchanges from download exchanges
type ExchangeKind string

const (
	ExchangeKindList     ExchangeKind = "list"
	ExchangeKindDownload ExchangeKind = "download"
)
