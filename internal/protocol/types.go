package protocol

import "fmt"

// State is the run state a Status Source reports for a service.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// ParseState validates a wire status value.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateOnline, StateOffline:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown service status %q", s)
	}
}

// TopicAppStatus is the message id of the application-status report.
const TopicAppStatus = "appstatus"

// ServiceStatus is one entry of a status report.
type ServiceStatus struct {
	Name  string `json:"name" yaml:"name"`
	State State  `json:"status" yaml:"status"`
}

// StatusSnapshot is one status report as received. Services keep wire order,
// which carries no meaning and may repeat names.
type StatusSnapshot struct {
	MessageID string          `json:"id"`
	Services  []ServiceStatus `json:"apps"`
}

// NewSnapshot builds an appstatus snapshot from the given entries.
func NewSnapshot(services ...ServiceStatus) StatusSnapshot {
	if services == nil {
		services = []ServiceStatus{}
	}
	return StatusSnapshot{MessageID: TopicAppStatus, Services: services}
}
