// Package link provides the byte transports the bus runs over. A Link
// delivers whole frames in FIFO order; framing, integrity, and connection
// handling all live here so the bus and codec never touch raw I/O.
package link

import "errors"

var (
	// ErrClosed is returned after Close, or when the peer went away.
	ErrClosed = errors.New("link closed")

	// ErrNoFrame is returned by Receive when nothing is buffered.
	// Callers gate on Available to avoid it.
	ErrNoFrame = errors.New("no frame buffered")
)

// Link is a point-to-point frame transport. Send enqueues one outgoing
// frame; Receive removes and returns the oldest buffered complete frame.
// Frame boundaries are established by the link, never by the caller.
type Link interface {
	Send(frame []byte) error
	Available() bool
	Receive() ([]byte, error)
	Close() error
}
