// internal/domain/connection.go
package domain

import (
	"net"
	"time"
)

// ConnectionHandle is an exclusively owned accepted connection.
// The worker that receives it is the only party allowed to close it.
type ConnectionHandle struct {
	ID         string
	Conn       net.Conn
	Peer       net.Addr
	AcceptedAt time.Time
}

// PeerString returns the peer address, or "unknown" when none was recorded.
func (h ConnectionHandle) PeerString() string {
	if h.Peer == nil {
		return "unknown"
	}
	return h.Peer.String()
}

// WorkerAssignment binds a claimed slot to the connection a worker must serve.
// It is passed by value so the dispatcher keeps nothing the worker depends on.
type WorkerAssignment struct {
	SlotIndex int
	Conn      ConnectionHandle
}

// Acceptor is the listener side of the dispatcher. AcceptConnection blocks
// until a connection arrives or the listener fails.
type Acceptor interface {
	AcceptConnection() (ConnectionHandle, error)
}
