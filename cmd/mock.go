package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raspiblitz/blitzdash/internal/logging"
	"github.com/raspiblitz/blitzdash/internal/mockbackend"
	"github.com/raspiblitz/blitzdash/internal/status"
)

var (
	mockStatusAddr string
	mockAPIAddr    string
	mockScenario   string
	mockLogLevel   string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a mock node backend for development",
	Long: `Serve a fake status channel and node API on localhost.

Every dashboard that connects receives the scenario's snapshots in order. The
built-in scenario reports five apps, then five seconds later takes LIT and
Balance of Satoshis offline. Load your own with --scenario:

  steps:
    - apps:
        - {name: LND, status: online}
    - delay: 5s
      apps:
        - {name: LND, status: offline}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario := mockbackend.DefaultScenario()
		if mockScenario != "" {
			var err error
			scenario, err = mockbackend.LoadScenario(mockScenario)
			if err != nil {
				return err
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		ctx = logging.NewContext(ctx, logging.New(os.Stderr, mockLogLevel))

		online, offline := status.Counts(scenario.Final(status.PolicyPatch))
		fmt.Printf("Status channel: ws://localhost%s\n", mockStatusAddr)
		fmt.Printf("Node API:       http://localhost%s\n", mockAPIAddr)
		fmt.Printf("Scenario:       %d steps, ends with %d online and %d offline\n", len(scenario.Steps), online, offline)
		fmt.Println("Press Ctrl+C to stop")

		return mockbackend.Run(ctx, mockbackend.Config{
			StatusAddr: mockStatusAddr,
			APIAddr:    mockAPIAddr,
			Scenario:   scenario,
		})
	},
}

func init() {
	mockCmd.Flags().StringVar(&mockStatusAddr, "ws-addr", mockbackend.DefaultStatusAddr, "listen address of the status channel")
	mockCmd.Flags().StringVar(&mockAPIAddr, "api-addr", mockbackend.DefaultAPIAddr, "listen address of the node API")
	mockCmd.Flags().StringVar(&mockScenario, "scenario", "", "YAML scenario file (default: built-in scenario)")
	mockCmd.Flags().StringVar(&mockLogLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.AddCommand(mockCmd)
}
