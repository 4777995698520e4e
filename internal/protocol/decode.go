package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedPayload is returned for frames that are not well-formed
	// structured data or lack a usable message id.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnknownTopic marks frames whose id is not in the recognized roster.
	// Consumers ignore these.
	ErrUnknownTopic = errors.New("unknown topic")
)

// Event is a decoded inbound frame.
type Event struct {
	Topic string

	// Snapshot is set for TopicAppStatus.
	Snapshot *StatusSnapshot
}

// Decode parses one complete frame into a typed event.
// Unknown topics return the event together with ErrUnknownTopic so callers can
// log the id before dropping it.
func Decode(frame []byte) (Event, error) {
	if !gjson.ValidBytes(frame) {
		return Event{}, fmt.Errorf("%w: not valid JSON", ErrMalformedPayload)
	}

	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: frame is not an object", ErrMalformedPayload)
	}

	id := root.Get("id")
	if !id.Exists() {
		return Event{}, fmt.Errorf("%w: missing id", ErrMalformedPayload)
	}
	if id.Type != gjson.String || id.String() == "" {
		return Event{}, fmt.Errorf("%w: id must be a non-empty string", ErrMalformedPayload)
	}

	topic := id.String()
	switch topic {
	case TopicAppStatus:
		snap, err := decodeAppStatus(root)
		if err != nil {
			return Event{Topic: topic}, err
		}
		return Event{Topic: topic, Snapshot: snap}, nil
	default:
		return Event{Topic: topic}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
}

// decodeAppStatus rejects the whole frame if any entry is invalid, so a
// snapshot is applied completely or not at all.
func decodeAppStatus(root gjson.Result) (*StatusSnapshot, error) {
	apps := root.Get("apps")
	if !apps.IsArray() {
		return nil, fmt.Errorf("%w: apps must be an array", ErrMalformedPayload)
	}

	entries := apps.Array()
	snap := &StatusSnapshot{
		MessageID: TopicAppStatus,
		Services:  make([]ServiceStatus, 0, len(entries)),
	}

	for i, app := range entries {
		if !app.IsObject() {
			return nil, fmt.Errorf("%w: apps[%d] is not an object", ErrMalformedPayload, i)
		}

		name := app.Get("name")
		if name.Type != gjson.String || name.String() == "" {
			return nil, fmt.Errorf("%w: apps[%d].name must be a non-empty string", ErrMalformedPayload, i)
		}

		raw := app.Get("status")
		if raw.Type != gjson.String {
			return nil, fmt.Errorf("%w: apps[%d].status must be a string", ErrMalformedPayload, i)
		}
		state, err := ParseState(raw.String())
		if err != nil {
			return nil, fmt.Errorf("%w: apps[%d]: %v", ErrMalformedPayload, i, err)
		}

		snap.Services = append(snap.Services, ServiceStatus{Name: name.String(), State: state})
	}

	return snap, nil
}

// EncodeSnapshot renders a snapshot as a wire frame.
func EncodeSnapshot(snap StatusSnapshot) ([]byte, error) {
	if snap.MessageID == "" {
		snap.MessageID = TopicAppStatus
	}
	if snap.Services == nil {
		snap.Services = []ServiceStatus{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}
