package mockbackend

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raspiblitz/blitzdash/internal/protocol"
)

func fastScenario() Scenario {
	sc := DefaultScenario()
	sc.Steps[1].Delay = 20 * time.Millisecond
	return sc
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStatusHandlerPushesScenario(t *testing.T) {
	srv := httptest.NewServer(NewStatusHandler(fastScenario(), nil))
	defer srv.Close()

	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// Client frames are ignored.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	var snaps []*protocol.StatusSnapshot
	for range 2 {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := protocol.Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, protocol.TopicAppStatus, ev.Topic)
		snaps = append(snaps, ev.Snapshot)
	}

	assert.Len(t, snaps[0].Services, 5)
	assert.Len(t, snaps[1].Services, 11)
}

func TestStatusHandlerEachClientGetsTheScenario(t *testing.T) {
	srv := httptest.NewServer(NewStatusHandler(fastScenario(), nil))
	defer srv.Close()

	for range 2 {
		conn := dial(t, srv)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := protocol.Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, "Mempool Space", ev.Snapshot.Services[0].Name)
		conn.Close()
	}
}
