package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	frames []string
	states []ConnState
}

func (r *recorder) handle(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(frame))
}

func (r *recorder) onState(c StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, c.State)
}

func (r *recorder) snapshot() ([]string, []ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...), append([]ConnState(nil), r.states...)
}

func newTestManager(t *testing.T, tr Transport, policy ReconnectPolicy, rec *recorder) *Manager {
	t.Helper()
	m, err := NewManager(Options{
		Endpoint:      "ws://status.test",
		Transport:     tr,
		Reconnect:     policy,
		OnStateChange: rec.onState,
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(Options{Transport: &fakeTransport{}})
	assert.Error(t, err)
	_, err = NewManager(Options{Endpoint: "ws://x"})
	assert.Error(t, err)
}

func TestConnectSuccessMakesHandleAvailable(t *testing.T) {
	rec := &recorder{}
	tr := &fakeTransport{conns: []*fakeConn{newFakeConn()}}
	m := newTestManager(t, tr, ReconnectPolicy{}, rec)

	_, err := m.Handle()
	assert.ErrorIs(t, err, ErrConnectionUnavailable)

	require.NoError(t, m.Connect(context.Background()))
	h, err := m.Handle()
	require.NoError(t, err)
	assert.Equal(t, "ws://status.test", h.Endpoint)
	assert.False(t, h.ConnectedAt.IsZero())

	// A second connect reuses the live connection.
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 1, tr.dialCount())

	m.Stop()
	assert.False(t, m.Available())
}

func TestConnectFailureLeavesHandleUnavailable(t *testing.T) {
	rec := &recorder{}
	tr := &fakeTransport{}
	m := newTestManager(t, tr, ReconnectPolicy{Enabled: true}, rec)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionUnavailable)
	assert.False(t, m.Available())
	// Connect never retries on its own.
	assert.Equal(t, 1, tr.dialCount())

	_, states := rec.snapshot()
	assert.Equal(t, []ConnState{StateConnecting, StateDisconnected}, states)
}

func TestStartDeliversFramesInOrder(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	m := newTestManager(t, &fakeTransport{conns: []*fakeConn{conn}}, ReconnectPolicy{}, rec)

	require.NoError(t, m.Start(context.Background(), rec.handle))
	for _, f := range []string{"one", "two", "three"} {
		conn.frames <- []byte(f)
	}

	require.Eventually(t, func() bool {
		frames, _ := rec.snapshot()
		return len(frames) == 3
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	frames, states := rec.snapshot()
	assert.Equal(t, []string{"one", "two", "three"}, frames)
	assert.Equal(t, StateConnected, states[1])
	assert.True(t, conn.isClosed())
}

func TestStartTwice(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, &fakeTransport{conns: []*fakeConn{newFakeConn()}}, ReconnectPolicy{}, rec)
	require.NoError(t, m.Start(context.Background(), rec.handle))
	assert.ErrorIs(t, m.Start(context.Background(), rec.handle), ErrAlreadyStarted)
	m.Stop()
	assert.ErrorIs(t, m.Start(context.Background(), rec.handle), ErrStopped)
}

func TestNoFramesAfterStop(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	m := newTestManager(t, &fakeTransport{conns: []*fakeConn{conn}}, ReconnectPolicy{}, rec)
	require.NoError(t, m.Start(context.Background(), rec.handle))

	conn.frames <- []byte("before")
	require.Eventually(t, func() bool {
		frames, _ := rec.snapshot()
		return len(frames) == 1
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	conn.frames <- []byte("after")
	time.Sleep(20 * time.Millisecond)
	frames, _ := rec.snapshot()
	assert.Equal(t, []string{"before"}, frames)

	// Stop is idempotent.
	m.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	m := newTestManager(t, &fakeTransport{conns: []*fakeConn{conn}}, ReconnectPolicy{}, rec)
	require.NoError(t, m.Connect(context.Background()))

	m.Stop()
	assert.True(t, conn.isClosed())
	<-m.Done()
	assert.ErrorIs(t, m.Connect(context.Background()), ErrStopped)
}

func TestConnectionLossWithoutReconnect(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	m := newTestManager(t, tr, ReconnectPolicy{Enabled: false}, rec)
	require.NoError(t, m.Start(context.Background(), rec.handle))

	require.Eventually(t, m.Available, time.Second, 5*time.Millisecond)
	close(conn.frames)

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("receive loop did not exit")
	}
	assert.False(t, m.Available())
	assert.Equal(t, 1, tr.dialCount())

	_, states := rec.snapshot()
	assert.Equal(t, StateDisconnected, states[len(states)-1])
}

func TestReconnectAfterLoss(t *testing.T) {
	rec := &recorder{}
	first, second := newFakeConn(), newFakeConn()
	tr := &fakeTransport{conns: []*fakeConn{first, second}}
	policy := ReconnectPolicy{Enabled: true, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	m := newTestManager(t, tr, policy, rec)
	require.NoError(t, m.Start(context.Background(), rec.handle))

	first.frames <- []byte("a")
	close(first.frames)
	second.frames <- []byte("b")

	require.Eventually(t, func() bool {
		frames, _ := rec.snapshot()
		return len(frames) == 2
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	frames, _ := rec.snapshot()
	assert.Equal(t, []string{"a", "b"}, frames)
	assert.Equal(t, 2, tr.dialCount())
	assert.True(t, first.isClosed())
	assert.True(t, second.isClosed())
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	rec := &recorder{}
	tr := &fakeTransport{}
	policy := ReconnectPolicy{Enabled: true, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, MaxAttempts: 3}
	m := newTestManager(t, tr, policy, rec)
	require.NoError(t, m.Start(context.Background(), rec.handle))

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("manager kept retrying")
	}
	// the first dial plus three reconnect attempts
	assert.Equal(t, 4, tr.dialCount())
	m.Stop()
}

func TestMaxAttemptsCountsRedialsAfterLoss(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	tr := &fakeTransport{conns: []*fakeConn{conn}}
	policy := ReconnectPolicy{Enabled: true, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, MaxAttempts: 2}
	m := newTestManager(t, tr, policy, rec)
	require.NoError(t, m.Start(context.Background(), rec.handle))

	close(conn.frames)

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("manager kept retrying")
	}
	assert.Equal(t, 3, tr.dialCount())
	m.Stop()
}

func TestPolicyAllows(t *testing.T) {
	assert.False(t, ReconnectPolicy{}.allows(1))
	assert.True(t, ReconnectPolicy{Enabled: true}.allows(1000))

	p := ReconnectPolicy{Enabled: true, MaxAttempts: 3}
	assert.True(t, p.allows(1))
	assert.True(t, p.allows(3))
	assert.False(t, p.allows(4))
}

func TestReconnectRecoversAfterDialErrors(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	tr := &fakeTransport{
		errs:  []error{errors.New("refused"), errors.New("refused"), nil},
		conns: []*fakeConn{conn},
	}
	policy := ReconnectPolicy{Enabled: true, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	m := newTestManager(t, tr, policy, rec)
	require.NoError(t, m.Start(context.Background(), rec.handle))

	require.Eventually(t, m.Available, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, tr.dialCount())
	m.Stop()
}

func TestBackoff(t *testing.T) {
	p := ReconnectPolicy{InitialBackoff: time.Second, MaxBackoff: 60 * time.Second}
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 32*time.Second, p.Backoff(6))
	assert.Equal(t, 60*time.Second, p.Backoff(7))
	assert.Equal(t, 60*time.Second, p.Backoff(100))

	assert.Equal(t, DefaultInitialBackoff, ReconnectPolicy{}.Backoff(1))
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
}

func TestWebsocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"id":"appstatus","apps":[]}`))
		// Wait for the client to close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr := NewWebsocketTransport(time.Second)

	conn, err := tr.Dial(context.Background(), endpoint)
	require.NoError(t, err)

	frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"appstatus","apps":[]}`, string(frame))

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestWebsocketTransportDialError(t *testing.T) {
	tr := NewWebsocketTransport(100 * time.Millisecond)
	_, err := tr.Dial(context.Background(), "ws://127.0.0.1:1")
	assert.Error(t, err)
}
