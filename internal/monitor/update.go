package monitor

import (
	"time"

	"github.com/raspiblitz/blitzdash/internal/channel"
	"github.com/raspiblitz/blitzdash/internal/protocol"
	"github.com/raspiblitz/blitzdash/internal/status"
)

// Update is published every time the reconciled state or the connection moves
type Update struct {
	State      status.ReconciledState
	Conn       channel.ConnState
	Err        error // last decode or connection error, nil once healthy
	Changes    []status.Change
	Duplicates []status.Duplicate
	Snapshots  int // snapshots applied so far
	At         time.Time
}

// Available reports whether live data is flowing
func (u Update) Available() bool {
	return u.Conn == channel.StateConnected
}

// Rows renders the state in the given order
func (u Update) Rows(order status.Order) []protocol.ServiceStatus {
	return status.Render(u.State, order)
}

// Counts returns how many services are online and offline
func (u Update) Counts() (online, offline int) {
	return status.Counts(u.State)
}
