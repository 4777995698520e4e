package channel

import (
	"context"
	"errors"
	"io"
	"sync"
)

// fakeConn is an in-memory frame source.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeTransport hands out queued connections or errors, one per dial.
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	errs  []error
	dials int
}

func (t *fakeTransport) Dial(ctx context.Context, endpoint string) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(t.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := t.conns[0]
	t.conns = t.conns[1:]
	return c, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}
