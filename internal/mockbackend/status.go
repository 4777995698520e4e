package mockbackend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raspiblitz/blitzdash/internal/logging"
	"github.com/raspiblitz/blitzdash/internal/protocol"
)

const writeWait = 5 * time.Second

// StatusHandler is the websocket Status Source. Every connection gets the
// whole scenario, then stays open until the client leaves.
type StatusHandler struct {
	scenario Scenario
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStatusHandler serves sc to every client.
func NewStatusHandler(sc Scenario, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &StatusHandler{
		scenario: sc,
		upgrader: websocket.Upgrader{
			// The dashboard may be served from any origin during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	log := h.logger.With("remote", r.RemoteAddr)
	log.Info("status client connected")

	// Receive-only channel: drain and drop whatever the client sends.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i, step := range h.scenario.Steps {
		if i > 0 && step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-timer.C:
			case <-gone:
				timer.Stop()
				log.Info("status client left")
				return
			case <-r.Context().Done():
				timer.Stop()
				return
			}
		}

		frame, err := protocol.EncodeSnapshot(protocol.NewSnapshot(step.Apps...))
		if err != nil {
			log.Error("failed to encode snapshot", "step", i, "error", err)
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Info("status client write failed", "step", i, "error", err)
			return
		}
		log.Debug("sent snapshot", "step", i, "apps", len(step.Apps))
	}

	select {
	case <-gone:
		log.Info("status client left")
	case <-r.Context().Done():
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
	}
}
