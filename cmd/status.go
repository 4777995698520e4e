package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raspiblitz/blitzdash/internal/logging"
	"github.com/raspiblitz/blitzdash/internal/monitor"
	"github.com/raspiblitz/blitzdash/internal/protocol"
	"github.com/raspiblitz/blitzdash/internal/status"
)

var (
	statusTimeout   time.Duration
	statusSnapshots int
	statusJSON      bool
	statusFirstSeen bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current app status and exit",
	Long: `Connect to the status channel, wait for --snapshots status reports (or until
--timeout), print the reconciled list and exit. Exits non-zero when no live
data arrived.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		if statusSnapshots < 1 {
			statusSnapshots = 1
		}

		logger := logging.New(os.Stderr, cfg.LogLevel)
		mon, err := newMonitor(cfg, logger, false)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()
		ctx = logging.NewContext(ctx, logger)
		ctx, cancelTimeout := context.WithTimeout(ctx, statusTimeout)
		defer cancelTimeout()

		go mon.Start(ctx)
		last := waitForSnapshots(mon, statusSnapshots)
		mon.Stop()

		if last.Snapshots == 0 {
			if last.Err != nil {
				return fmt.Errorf("no live data from %s: %w", cfg.Endpoint, last.Err)
			}
			return fmt.Errorf("no live data from %s within %s", cfg.Endpoint, statusTimeout)
		}
		if last.Snapshots < statusSnapshots {
			fmt.Fprintf(os.Stderr, "received %d of %d snapshots before timeout\n", last.Snapshots, statusSnapshots)
		}

		order := status.OrderByName
		if statusFirstSeen {
			order = status.OrderFirstSeen
		}
		rows := last.Rows(order)

		if statusJSON {
			data, err := protocol.EncodeSnapshot(protocol.NewSnapshot(rows...))
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		online, offline := last.Counts()
		fmt.Printf("%s: %d online, %d offline\n\n", cfg.Endpoint, online, offline)
		for _, row := range rows {
			icon := "✓"
			if row.State != protocol.StateOnline {
				icon = "✗"
			}
			fmt.Printf("  %s %-28s %s\n", icon, row.Name, row.State)
		}
		return nil
	},
}

// waitForSnapshots consumes updates until n snapshots were applied or the
// monitor stops, returning the last update seen.
func waitForSnapshots(mon *monitor.Monitor, n int) monitor.Update {
	var last monitor.Update
	for u := range mon.Updates() {
		last = u
		if u.Snapshots >= n {
			break
		}
	}
	return last
}

func init() {
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "how long to wait for status reports")
	statusCmd.Flags().IntVarP(&statusSnapshots, "snapshots", "n", 1, "number of status reports to wait for")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print an appstatus JSON frame instead of a table")
	statusCmd.Flags().BoolVar(&statusFirstSeen, "first-seen", false, "order services by first report instead of name")
	rootCmd.AddCommand(statusCmd)
}
