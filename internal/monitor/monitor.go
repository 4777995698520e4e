package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raspiblitz/blitzdash/internal/channel"
	"github.com/raspiblitz/blitzdash/internal/config"
	"github.com/raspiblitz/blitzdash/internal/logging"
	"github.com/raspiblitz/blitzdash/internal/notify"
	"github.com/raspiblitz/blitzdash/internal/protocol"
	"github.com/raspiblitz/blitzdash/internal/status"
)

// Recorder stores status transitions somewhere durable
type Recorder interface {
	Record(ctx context.Context, changes []status.Change, at time.Time) error
}

// Options carries the collaborators of a Monitor. Every field is optional.
// The logger travels on the context passed to Start.
type Options struct {
	Transport channel.Transport // defaults to a websocket transport
	Notifier  *notify.Notifier
	Recorder  Recorder
}

// Monitor wires the status channel to the reconciler and publishes the
// result. It is the only writer of the reconciled state.
type Monitor struct {
	Config     *config.Config
	manager    *channel.Manager
	reconciler *status.Reconciler
	notifier   *notify.Notifier
	recorder   Recorder

	updates chan Update
	done    chan struct{}

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	conn    channel.ConnState
	lastErr error
}

// NewMonitor creates a new monitor instance
func NewMonitor(cfg *config.Config, opts Options) (*Monitor, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial timeout: %w", err)
	}
	initial, err := time.ParseDuration(cfg.Reconnect.InitialBackoff)
	if err != nil {
		return nil, fmt.Errorf("invalid initial backoff: %w", err)
	}
	maxBackoff, err := time.ParseDuration(cfg.Reconnect.MaxBackoff)
	if err != nil {
		return nil, fmt.Errorf("invalid max backoff: %w", err)
	}
	policy, err := status.ParsePolicy(cfg.MergePolicy)
	if err != nil {
		return nil, err
	}

	transport := opts.Transport
	if transport == nil {
		transport = channel.NewWebsocketTransport(dialTimeout)
	}

	m := &Monitor{
		Config:     cfg,
		reconciler: status.NewReconciler(policy),
		notifier:   opts.Notifier,
		recorder:   opts.Recorder,
		updates:    make(chan Update, 64),
		done:       make(chan struct{}),
	}

	m.manager, err = channel.NewManager(channel.Options{
		Endpoint:  cfg.Endpoint,
		Transport: transport,
		Reconnect: channel.ReconnectPolicy{
			Enabled:        cfg.Reconnect.IsEnabled(),
			InitialBackoff: initial,
			MaxBackoff:     maxBackoff,
			MaxAttempts:    cfg.Reconnect.MaxAttempts,
		},
		OnStateChange: m.onStateChange,
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Start runs the pipeline until ctx is cancelled, Stop is called, or the
// reconnect policy gives up. Updates and Done are closed when it returns.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return channel.ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	m.started = true
	m.ctx = ctx
	m.cancel = cancel
	m.mu.Unlock()

	defer cancel()
	defer func() {
		close(m.updates)
		close(m.done)
	}()

	err := m.manager.Start(ctx, func(frame []byte) {
		m.handleFrame(ctx, frame)
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-m.manager.Done():
	}

	cancel()
	m.manager.Stop()
	return nil
}

// Stop ends the pipeline and waits for Start to return
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.started = true
		m.mu.Unlock()
		m.manager.Stop()
		close(m.updates)
		close(m.done)
		return
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-m.done
}

// Updates returns the channel of published updates
func (m *Monitor) Updates() <-chan Update {
	return m.updates
}

// Done returns a channel that's closed when monitoring stops
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// State returns a copy of the reconciled state
func (m *Monitor) State() status.ReconciledState {
	return m.reconciler.State()
}

// Snapshot returns the current state as an Update without waiting for one
func (m *Monitor) Snapshot() Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

// handleFrame runs on the channel goroutine, so snapshots are applied in
// arrival order.
func (m *Monitor) handleFrame(ctx context.Context, frame []byte) {
	logger := logging.FromContext(ctx)
	ev, err := protocol.Decode(frame)
	if errors.Is(err, protocol.ErrUnknownTopic) {
		logger.Debug("ignoring frame", "topic", ev.Topic)
		return
	}
	if err != nil {
		logger.Warn("dropping malformed frame", "error", err, "bytes", len(frame))
		m.mu.Lock()
		m.lastErr = err
		u := m.currentLocked()
		m.mu.Unlock()
		m.publish(ctx, u)
		return
	}

	res := m.reconciler.Apply(*ev.Snapshot)
	now := time.Now()

	for _, d := range res.Duplicates {
		logger.Warn("duplicate service entry", "service", d.Name, "count", d.Count)
	}
	for _, c := range res.Changes {
		logger.Info("service status changed", "service", c.Name, "previous", string(c.Previous), "current", string(c.Current))
		if err := m.notifier.NotifyStatusChange(c); err != nil {
			logger.Warn("notification failed", "service", c.Name, "error", err)
		}
	}
	if m.recorder != nil && len(res.Changes) > 0 {
		if err := m.recorder.Record(ctx, res.Changes, now); err != nil {
			logger.Warn("failed to record status history", "error", err)
		}
	}

	m.mu.Lock()
	m.lastErr = nil
	u := m.currentLocked()
	m.mu.Unlock()

	u.State = res.State
	u.Changes = res.Changes
	u.Duplicates = res.Duplicates
	u.At = now
	m.publish(ctx, u)
}

func (m *Monitor) onStateChange(c channel.StateChange) {
	m.mu.Lock()
	m.conn = c.State
	switch {
	case c.Err != nil:
		m.lastErr = c.Err
	case c.State == channel.StateConnected:
		m.lastErr = nil
	}
	ctx := m.ctx
	u := m.currentLocked()
	m.mu.Unlock()

	if ctx != nil {
		m.publish(ctx, u)
	}
}

func (m *Monitor) currentLocked() Update {
	return Update{
		State:     m.reconciler.State(),
		Conn:      m.conn,
		Err:       m.lastErr,
		Snapshots: m.reconciler.Applied(),
		At:        time.Now(),
	}
}

func (m *Monitor) publish(ctx context.Context, u Update) {
	select {
	case m.updates <- u:
	case <-ctx.Done():
	}
}
