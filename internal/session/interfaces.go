package session

import (
	"context"

	"github.com/ytget/mp3-client/internal/model"
)

// Requester issues requests on a half-duplex connection. Calls block until the
// response has been handled.
type Requester interface {
	SendListRequest(ctx context.Context) (*Outcome, error)
	SendDownloadRequest(ctx context.Context, song, artist string) (*Outcome, error)
}

// Client is a Requester that also keeps a record of its exchanges
type Client interface {
	Requester

	SetUpdateCallback(func(*model.Exchange))
	GetExchange(id string) (*model.Exchange, bool)
	GetAllExchanges() []*model.Exchange

	// Close ends the session and stops the listener
	Close() error
}
