package mockbackend

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raspiblitz/blitzdash/internal/protocol"
	"github.com/raspiblitz/blitzdash/internal/status"
)

// Step is one snapshot the status endpoint pushes. Delay is measured from
// the previous step; the first step is always sent on connect.
type Step struct {
	Delay time.Duration
	Apps  []protocol.ServiceStatus
}

// Scenario is the sequence of snapshots every new connection receives.
type Scenario struct {
	Steps []Step
}

// DefaultScenario reproduces the node's development backend: an initial
// roster, then five seconds later LIT and Balance of Satoshis go offline,
// the latter reported seven times over.
func DefaultScenario() Scenario {
	online := func(name string) protocol.ServiceStatus {
		return protocol.ServiceStatus{Name: name, State: protocol.StateOnline}
	}
	offline := func(name string) protocol.ServiceStatus {
		return protocol.ServiceStatus{Name: name, State: protocol.StateOffline}
	}

	second := []protocol.ServiceStatus{
		online("Mempool Space"),
		online("ElectRS"),
		offline("ThunderHub"),
		offline("LIT"),
	}
	for range 7 {
		second = append(second, offline("Balance of Satoshis"))
	}

	return Scenario{Steps: []Step{
		{Apps: []protocol.ServiceStatus{
			online("Mempool Space"),
			online("ElectRS"),
			offline("ThunderHub"),
			online("LIT"),
			online("Balance of Satoshis"),
		}},
		{Delay: 5 * time.Second, Apps: second},
	}}
}

// Final returns the state a dashboard reaches after every step was applied.
func (s Scenario) Final(policy status.Policy) status.ReconciledState {
	snaps := make([]protocol.StatusSnapshot, 0, len(s.Steps))
	for _, step := range s.Steps {
		snaps = append(snaps, protocol.NewSnapshot(step.Apps...))
	}
	return status.Fold(policy, snaps...)
}

type scenarioFile struct {
	Steps []struct {
		Delay string                   `yaml:"delay"`
		Apps  []protocol.ServiceStatus `yaml:"apps"`
	} `yaml:"steps"`
}

// LoadScenario reads a scenario from a YAML file of the form
//
//	steps:
//	  - apps: [{name: LND, status: online}]
//	  - delay: 5s
//	    apps: [{name: LND, status: offline}]
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if len(file.Steps) == 0 {
		return Scenario{}, fmt.Errorf("scenario %s has no steps", path)
	}

	sc := Scenario{Steps: make([]Step, 0, len(file.Steps))}
	for i, s := range file.Steps {
		var step Step
		if s.Delay != "" {
			step.Delay, err = time.ParseDuration(s.Delay)
			if err != nil {
				return Scenario{}, fmt.Errorf("step %d: invalid delay: %w", i, err)
			}
		}
		for _, app := range s.Apps {
			if app.Name == "" {
				return Scenario{}, fmt.Errorf("step %d: app without a name", i)
			}
			if _, err := protocol.ParseState(string(app.State)); err != nil {
				return Scenario{}, fmt.Errorf("step %d: %s: %w", i, app.Name, err)
			}
		}
		step.Apps = s.Apps
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}
