package status

import (
	"fmt"

	"github.com/raspiblitz/blitzdash/internal/protocol"
)

// Policy decides how a snapshot relates to the services it does not mention.
type Policy string

const (
	// PolicyPatch treats every snapshot as a partial report: services absent
	// from it keep their last known state.
	PolicyPatch Policy = "patch"
	// PolicyReplace treats every snapshot as the full roster: services absent
	// from it are dropped.
	PolicyReplace Policy = "replace"
)

// ParsePolicy maps a config value to a Policy. The empty string selects PolicyPatch.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPatch:
		return PolicyPatch, nil
	case PolicyReplace:
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q (want %q or %q)", s, PolicyPatch, PolicyReplace)
	}
}

// Entry is the reconciled record of one service.
type Entry struct {
	Name  string
	State protocol.State

	// Seq is the position at which the service was first seen, counting from 0.
	Seq int
}

// ReconciledState maps a service name to its latest known status.
type ReconciledState map[string]Entry

// Get returns the state of the named service.
func (s ReconciledState) Get(name string) (protocol.State, bool) {
	e, ok := s[name]
	return e.State, ok
}

// Clone returns an independent copy.
func (s ReconciledState) Clone() ReconciledState {
	out := make(ReconciledState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Change describes a service whose state differs after an apply.
type Change struct {
	Name     string
	Previous protocol.State // empty when the service was not known before
	Current  protocol.State // empty when the service was dropped
}

// IsNew reports whether the service appeared for the first time.
func (c Change) IsNew() bool { return c.Previous == "" }

// IsRemoved reports whether the service was dropped from the state.
func (c Change) IsRemoved() bool { return c.Current == "" }

// Duplicate reports a name that appeared more than once in one snapshot.
type Duplicate struct {
	Name  string
	Count int
}
