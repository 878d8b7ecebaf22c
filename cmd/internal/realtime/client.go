package realtime

import (
	"sync"

	v1 "livedeck/contracts/realtime/v1"
)

// Client is one connected websocket.
//
// Send is never closed by the server; broadcasters may still hold the client
// after it leaves a room. done signals the connection goroutines to stop.
type Client struct {
	// ID is the connection (socket) id assigned at accept time.
	ID string
	// PresenterID is set once the connection presented a valid presenter token.
	PresenterID string
	Send        chan v1.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		ID:   id,
		Send: make(chan v1.Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// IsPresenter reports whether the connection authenticated as a presenter.
func (c *Client) IsPresenter() bool { return c != nil && c.PresenterID != "" }

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// offer attempts a non-blocking send. It reports false when the client is
// closing or its queue is full.
func (c *Client) offer(env v1.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}
