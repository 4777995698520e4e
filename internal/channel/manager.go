package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raspiblitz/blitzdash/internal/logging"
)

var (
	// ErrConnectionUnavailable means there is no live connection to the
	// Status Source. Dependents treat it as "no live data".
	ErrConnectionUnavailable = errors.New("connection unavailable")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("channel manager already started")
	// ErrStopped is returned once the manager has been stopped.
	ErrStopped = errors.New("channel manager stopped")
)

// ConnState is the connection state observed by dependents.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// StateChange is reported whenever the connection state moves.
type StateChange struct {
	State   ConnState
	Attempt int   // consecutive failures so far; 0 when connected
	Err     error // cause of a disconnect, if any
	At      time.Time
}

// Handler receives inbound frames in transport order.
type Handler func(frame []byte)

// Handle describes the live connection without exposing it.
type Handle struct {
	Endpoint    string
	ConnectedAt time.Time
}

// Options configures a Manager.
type Options struct {
	Endpoint  string
	Transport Transport
	Reconnect ReconnectPolicy
	Logger    *slog.Logger // defaults to the logger carried by the context

	// OnStateChange is called synchronously on every transition.
	OnStateChange func(StateChange)
}

// Manager owns the single connection to a Status Source. It is the only
// component that reads from or closes that connection.
type Manager struct {
	endpoint  string
	transport Transport
	reconnect ReconnectPolicy
	logger    *slog.Logger
	onState   func(StateChange)

	dialMu sync.Mutex // serializes dials so at most one connection exists

	mu          sync.Mutex
	conn        Conn
	connectedAt time.Time
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewManager validates opts and returns an idle manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("channel: endpoint is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("channel: transport is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("endpoint", opts.Endpoint)
	}
	onState := opts.OnStateChange
	if onState == nil {
		onState = func(StateChange) {}
	}

	return &Manager{
		endpoint:  opts.Endpoint,
		transport: opts.Transport,
		reconnect: opts.Reconnect,
		logger:    logger,
		onState:   onState,
		done:      make(chan struct{}),
	}, nil
}

// Endpoint returns the Status Source address.
func (m *Manager) Endpoint() string {
	return m.endpoint
}

// Connect makes one attempt to open the connection. It is a no-op when a
// connection is already live and never retries on its own.
func (m *Manager) Connect(ctx context.Context) error {
	_, err := m.current(ctx, 0)
	return err
}

// Handle returns the live connection's description, or
// ErrConnectionUnavailable when there is none.
func (m *Manager) Handle() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return Handle{}, ErrConnectionUnavailable
	}
	return Handle{Endpoint: m.endpoint, ConnectedAt: m.connectedAt}, nil
}

// Available reports whether a connection is live.
func (m *Manager) Available() bool {
	_, err := m.Handle()
	return err == nil
}

// Start runs the receive loop on its own goroutine, delivering every frame to
// handler. The loop connects if needed and applies the reconnect policy.
func (m *Manager) Start(ctx context.Context, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancel = cancel
	go m.run(runCtx, handler)
	return nil
}

// Stop releases the connection and waits for the receive loop to exit. Once
// Stop returns the handler is never invoked again. Stop is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.stopped = true
	started := m.started
	cancel := m.cancel
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if !started {
		close(m.done)
		if conn != nil {
			m.emit(StateChange{State: StateDisconnected, Err: ErrStopped})
		}
		return
	}
	<-m.done
}

// Done is closed when the receive loop has exited, either after Stop or when
// the reconnect policy gives up.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) run(ctx context.Context, handler Handler) {
	defer close(m.done)

	failures := 0
	for {
		conn, err := m.current(ctx, failures)
		if err == nil {
			failures = 0
			err = m.receive(ctx, conn, handler)
			m.release(ctx, conn, err)
		}

		if ctx.Err() != nil {
			return
		}

		failures++
		if !m.reconnect.allows(failures) {
			m.log(ctx).Warn("status channel unavailable, not reconnecting", "failures", failures, "error", err)
			return
		}

		delay := m.reconnect.Backoff(failures)
		m.log(ctx).Info("reconnecting to status channel", "attempt", failures, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// current returns the live connection, dialing once if there is none.
func (m *Manager) current(ctx context.Context, failures int) (Conn, error) {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	if m.conn != nil {
		conn := m.conn
		m.mu.Unlock()
		return conn, nil
	}
	m.mu.Unlock()

	m.emit(StateChange{State: StateConnecting, Attempt: failures})

	conn, err := m.transport.Dial(ctx, m.endpoint)
	if err != nil {
		m.log(ctx).Debug("dial failed", "error", err)
		err = fmt.Errorf("%w: %w", ErrConnectionUnavailable, err)
		m.emit(StateChange{State: StateDisconnected, Attempt: failures + 1, Err: err})
		return nil, err
	}

	m.mu.Lock()
	if m.stopped || ctx.Err() != nil {
		m.mu.Unlock()
		conn.Close()
		return nil, ErrStopped
	}
	m.conn = conn
	m.connectedAt = time.Now()
	m.mu.Unlock()

	m.log(ctx).Info("status channel connected")
	m.emit(StateChange{State: StateConnected})
	return conn, nil
}

func (m *Manager) receive(ctx context.Context, conn Conn, handler Handler) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(frame)
	}
}

// release drops conn after its receive loop ended.
func (m *Manager) release(ctx context.Context, conn Conn, cause error) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()

	conn.Close()
	m.log(ctx).Info("status channel closed", "error", cause)
	m.emit(StateChange{State: StateDisconnected, Err: fmt.Errorf("%w: %w", ErrConnectionUnavailable, cause)})
}

func (m *Manager) log(ctx context.Context) *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return logging.FromContext(ctx).With("endpoint", m.endpoint)
}

func (m *Manager) emit(c StateChange) {
	c.At = time.Now()
	m.onState(c)
}
