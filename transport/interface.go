// Package transport defines the capability interface the dispatcher depends
// on. Adding a transport means implementing this interface; protocol logic
// never sees transport specifics.
package transport

import "context"

// Interface frames a byte stream into discrete JSON messages and back.
type Interface interface {
	// Receive blocks until the next complete frame has been read. It returns
	// io.EOF on a clean close of the peer. Any other error means the framing
	// itself is corrupted and the session cannot continue.
	Receive(ctx context.Context) ([]byte, error)

	// Send writes one frame. Implementations must be safe for concurrent use:
	// responses complete out of order and interleave on the stream.
	Send(msg any) error

	// Close releases the underlying stream. Receive unblocks afterwards.
	Close() error
}
