package status

import (
	"slices"
	"strings"

	"github.com/raspiblitz/blitzdash/internal/protocol"
)

// Order selects how Render sorts services.
type Order int

const (
	// OrderByName sorts case-insensitively by service name.
	OrderByName Order = iota
	// OrderFirstSeen sorts by the order in which services were first reported.
	OrderFirstSeen
)

func (o Order) String() string {
	switch o {
	case OrderFirstSeen:
		return "first seen"
	default:
		return "name"
	}
}

// Next cycles to the other ordering.
func (o Order) Next() Order {
	if o == OrderByName {
		return OrderFirstSeen
	}
	return OrderByName
}

// Render projects state into a list whose order depends only on state and
// order, never on map iteration or snapshot arrival order.
func Render(state ReconciledState, order Order) []protocol.ServiceStatus {
	entries := make([]Entry, 0, len(state))
	for _, e := range state {
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if order == OrderFirstSeen && a.Seq != b.Seq {
			return a.Seq - b.Seq
		}
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	rows := make([]protocol.ServiceStatus, len(entries))
	for i, e := range entries {
		rows[i] = protocol.ServiceStatus{Name: e.Name, State: e.State}
	}
	return rows
}

// Group splits rendered rows by state, keeping their relative order.
func Group(rows []protocol.ServiceStatus) (online, offline []protocol.ServiceStatus) {
	for _, r := range rows {
		if r.State == protocol.StateOnline {
			online = append(online, r)
		} else {
			offline = append(offline, r)
		}
	}
	return online, offline
}

// Counts returns the number of online and offline services in state.
func Counts(state ReconciledState) (online, offline int) {
	for _, e := range state {
		if e.State == protocol.StateOnline {
			online++
		} else {
			offline++
		}
	}
	return online, offline
}
