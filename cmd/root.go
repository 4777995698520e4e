package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/raspiblitz/blitzdash/internal/config"
	"github.com/raspiblitz/blitzdash/internal/history"
	"github.com/raspiblitz/blitzdash/internal/logging"
	"github.com/raspiblitz/blitzdash/internal/monitor"
	"github.com/raspiblitz/blitzdash/internal/notify"
	"github.com/raspiblitz/blitzdash/internal/session"
	"github.com/raspiblitz/blitzdash/internal/tui"
	"github.com/raspiblitz/blitzdash/internal/wallet"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "blitzdash",
	Short: "Watch the apps on your RaspiBlitz node from the terminal",
	Long: `Blitzdash connects to the status channel of a RaspiBlitz node and shows
which of its apps are online, updating live as the node pushes new reports.

Receive and send funds through the node API without leaving the dashboard.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}

		logPath, err := cfg.LogFilePath()
		if err != nil {
			return err
		}
		logFile, err := logging.OpenFile(logPath)
		if err != nil {
			return err
		}
		defer logFile.Close()
		logger := logging.New(logFile, cfg.LogLevel)

		mon, err := newMonitor(cfg, logger, true)
		if err != nil {
			return err
		}

		apiClient, err := wallet.NewClient(cfg.APIURL, 0)
		if err != nil {
			return fmt.Errorf("failed to create API client: %w", err)
		}

		sessionPath, err := cfg.SessionFilePath()
		if err != nil {
			return err
		}
		authenticated := session.NewStore(sessionPath).Authenticated()

		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logger))
		defer cancel()

		go func() {
			if err := mon.Start(ctx); err != nil {
				logger.Error("monitor stopped", "error", err)
			}
		}()

		model := tui.NewModel(mon.Updates(), mon.Stop, apiClient, authenticated)
		p := tea.NewProgram(model, tea.WithAltScreen())

		// Handle OS signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
				p.Quit()
			case <-ctx.Done():
			}
		}()

		logger.Info("dashboard started", "endpoint", cfg.Endpoint, "merge_policy", cfg.MergePolicy)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}

		mon.Stop()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/blitzdash/config.yml)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the --config file or the global one. A missing global
// config is created when create is set and replaced by defaults otherwise.
func loadConfig(create bool) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfig()
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config: %w (run 'blitzdash init --force' to reset it)", err)
	}
	if !create {
		return config.Default(), nil
	}

	fmt.Println("Config not found, creating default config...")
	if initErr := config.InitConfig(false); initErr != nil {
		return nil, fmt.Errorf("failed to create default config: %w", initErr)
	}
	cfg, err = config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config after creation: %w", err)
	}
	return cfg, nil
}

// newMonitor builds the status pipeline. Desktop notifications and the history
// sink are only wired for the long-running dashboard. The pipeline itself logs
// to the logger carried by the context passed to Start.
func newMonitor(cfg *config.Config, logger *slog.Logger, dashboard bool) (*monitor.Monitor, error) {
	var opts monitor.Options

	if dashboard {
		opts.Notifier = notify.NewNotifier(cfg.Notifications)

		if cfg.History != nil {
			sink, err := history.NewSink(history.Config{
				Endpoint: cfg.History.Endpoint,
				Database: cfg.History.Database,
				Table:    cfg.History.Table,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to set up status history: %w", err)
			}
			opts.Recorder = sink
		}
	}

	mon, err := monitor.NewMonitor(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}
	return mon, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
