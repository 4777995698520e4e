package channel

import "time"

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 60 * time.Second
)

// ReconnectPolicy controls what the manager does after a failed dial or a
// dropped connection.
type ReconnectPolicy struct {
	Enabled        bool
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxAttempts bounds the reconnect attempts made in a row after a failed
	// dial or a lost connection, not counting the dial that failed. 0 means
	// retry forever.
	MaxAttempts int
}

// Backoff returns the delay before retry number attempt (starting at 1):
// InitialBackoff doubled per attempt, capped at MaxBackoff.
func (p ReconnectPolicy) Backoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	maxDelay := p.MaxBackoff
	if maxDelay <= 0 {
		maxDelay = DefaultMaxBackoff
	}
	if attempt <= 1 {
		return min(initial, maxDelay)
	}

	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}

// allows reports whether another attempt is permitted after failures
// consecutive failures. The first failure is the one that triggered
// reconnecting, so MaxAttempts failures in a row still earn one more dial.
func (p ReconnectPolicy) allows(failures int) bool {
	if !p.Enabled {
		return false
	}
	return p.MaxAttempts <= 0 || failures <= p.MaxAttempts
}
