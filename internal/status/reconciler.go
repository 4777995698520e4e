package status

import (
	"sort"
	"sync"

	"github.com/raspiblitz/blitzdash/internal/protocol"
)

// Result is the outcome of applying one snapshot.
type Result struct {
	State      ReconciledState
	Changes    []Change
	Duplicates []Duplicate
}

// Reconciler folds status snapshots into a ReconciledState keyed by service
// name. Snapshots must be applied in arrival order by a single caller; reads
// are safe from any goroutine.
type Reconciler struct {
	mu      sync.RWMutex
	policy  Policy
	state   ReconciledState
	nextSeq int
	applied int
}

// NewReconciler returns an empty reconciler using the given policy.
func NewReconciler(policy Policy) *Reconciler {
	if policy == "" {
		policy = PolicyPatch
	}
	return &Reconciler{
		policy: policy,
		state:  make(ReconciledState),
	}
}

// Apply upserts every service of snap by name. When a name repeats within the
// snapshot the last occurrence wins. Under PolicyPatch nothing is ever removed.
func (r *Reconciler) Apply(snap protocol.StatusSnapshot) Result {
	latest := make(map[string]protocol.State, len(snap.Services))
	counts := make(map[string]int, len(snap.Services))
	order := make([]string, 0, len(snap.Services))

	for _, svc := range snap.Services {
		if counts[svc.Name] == 0 {
			order = append(order, svc.Name)
		}
		counts[svc.Name]++
		latest[svc.Name] = svc.State
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var res Result

	for _, name := range order {
		current := latest[name]
		prev, known := r.state[name]

		if counts[name] > 1 {
			res.Duplicates = append(res.Duplicates, Duplicate{Name: name, Count: counts[name]})
		}

		if !known {
			r.state[name] = Entry{Name: name, State: current, Seq: r.nextSeq}
			r.nextSeq++
			res.Changes = append(res.Changes, Change{Name: name, Current: current})
			continue
		}

		if prev.State != current {
			res.Changes = append(res.Changes, Change{Name: name, Previous: prev.State, Current: current})
			prev.State = current
			r.state[name] = prev
		}
	}

	if r.policy == PolicyReplace {
		var dropped []string
		for name := range r.state {
			if _, ok := latest[name]; !ok {
				dropped = append(dropped, name)
			}
		}
		sort.Strings(dropped)
		for _, name := range dropped {
			res.Changes = append(res.Changes, Change{Name: name, Previous: r.state[name].State})
			delete(r.state, name)
		}
	}

	r.applied++
	res.State = r.state.Clone()
	return res
}

// State returns a copy of the current reconciled state.
func (r *Reconciler) State() ReconciledState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

// Applied returns how many snapshots have been applied.
func (r *Reconciler) Applied() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.applied
}

// Fold applies snaps in order to a fresh reconciler and returns the final state.
func Fold(policy Policy, snaps ...protocol.StatusSnapshot) ReconciledState {
	r := NewReconciler(policy)
	for _, s := range snaps {
		r.Apply(s)
	}
	return r.State()
}
