package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raspiblitz/blitzdash/internal/logging"
)

const (
	DefaultStatusAddr = ":8080"
	DefaultAPIAddr    = ":8081"
)

// Config selects where the mock backend listens and what it pushes.
type Config struct {
	StatusAddr string
	APIAddr    string
	Scenario   Scenario
}

// Run serves the status endpoint and the API until ctx is cancelled or one
// of them fails, then shuts both down. It logs to the logger carried by ctx.
func Run(ctx context.Context, cfg Config) error {
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = DefaultStatusAddr
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = DefaultAPIAddr
	}
	if len(cfg.Scenario.Steps) == 0 {
		cfg.Scenario = DefaultScenario()
	}
	logger := logging.FromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	baseContext := func(net.Listener) context.Context { return gctx }

	statusSrv := &http.Server{
		Addr:              cfg.StatusAddr,
		Handler:           NewStatusHandler(cfg.Scenario, logger.With("server", "status")),
		BaseContext:       baseContext,
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           NewRouter(logger.With("server", "api")),
		BaseContext:       baseContext,
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, srv := range []*http.Server{statusSrv, apiSrv} {
		g.Go(func() error {
			logger.Info("mock backend listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(statusSrv.Shutdown(shutdownCtx), apiSrv.Shutdown(shutdownCtx))
	})

	return g.Wait()
}
