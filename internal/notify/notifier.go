package notify

import (
	"fmt"

	"github.com/martinlindhe/notify"
	"github.com/raspiblitz/blitzdash/internal/protocol"
	"github.com/raspiblitz/blitzdash/internal/status"
)

const appName = "Blitzdash"

// Notifier sends desktop notifications when a service goes offline or comes back
type Notifier struct {
	enabled bool
	send    func(title, message string)
}

// NewNotifier creates a new notifier instance
func NewNotifier(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		send: func(title, message string) {
			notify.Notify(appName, title, message, "")
		},
	}
}

// Enabled reports whether notifications are sent at all
func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled
}

// NotifyFailure sends a desktop notification when a service goes offline
func (n *Notifier) NotifyFailure(name string) error {
	if !n.Enabled() {
		return nil
	}

	title := fmt.Sprintf("⚠️  %s - Offline", name)
	n.send(title, fmt.Sprintf("%s stopped reporting online", name))
	return nil
}

// NotifyRecovery sends a desktop notification when a service comes back online
func (n *Notifier) NotifyRecovery(name string) error {
	if !n.Enabled() {
		return nil
	}

	title := fmt.Sprintf("✅ %s - Online", name)
	n.send(title, fmt.Sprintf("%s is online again", name))
	return nil
}

// NotifyStatusChange sends a desktop notification for a reconciled transition.
// Services seen for the first time and services dropped from the roster are silent.
func (n *Notifier) NotifyStatusChange(change status.Change) error {
	if !n.Enabled() || change.IsNew() || change.IsRemoved() {
		return nil
	}

	// Came back (was offline, now online)
	if change.Previous == protocol.StateOffline && change.Current == protocol.StateOnline {
		return n.NotifyRecovery(change.Name)
	}

	// Went down (was online, now offline)
	if change.Previous == protocol.StateOnline && change.Current == protocol.StateOffline {
		return n.NotifyFailure(change.Name)
	}

	return nil
}
