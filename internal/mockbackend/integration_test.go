package mockbackend_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raspiblitz/blitzdash/internal/config"
	"github.com/raspiblitz/blitzdash/internal/mockbackend"
	"github.com/raspiblitz/blitzdash/internal/monitor"
	"github.com/raspiblitz/blitzdash/internal/protocol"
	"github.com/raspiblitz/blitzdash/internal/status"
)

func TestDashboardAgainstMockBackend(t *testing.T) {
	sc := mockbackend.DefaultScenario()
	sc.Steps[1].Delay = 20 * time.Millisecond

	srv := httptest.NewServer(mockbackend.NewStatusHandler(sc, nil))
	defer srv.Close()

	cfg := config.Default()
	cfg.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")

	mon, err := monitor.NewMonitor(cfg, monitor.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = mon.Start(ctx) }()

	var last monitor.Update
	for u := range mon.Updates() {
		if u.Snapshots == 2 {
			last = u
			break
		}
	}
	mon.Stop()

	require.Equal(t, 2, last.Snapshots, "did not receive both snapshots")
	assert.True(t, last.Available())
	assert.Equal(t, []status.Duplicate{{Name: "Balance of Satoshis", Count: 7}}, last.Duplicates)

	assert.Equal(t, []protocol.ServiceStatus{
		{Name: "Balance of Satoshis", State: protocol.StateOffline},
		{Name: "ElectRS", State: protocol.StateOnline},
		{Name: "LIT", State: protocol.StateOffline},
		{Name: "Mempool Space", State: protocol.StateOnline},
		{Name: "ThunderHub", State: protocol.StateOffline},
	}, last.Rows(status.OrderByName))
}
