package history

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"github.com/raspiblitz/blitzdash/internal/logging"
	"github.com/raspiblitz/blitzdash/internal/status"
)

const (
	DefaultDatabase = "public"
	DefaultTable    = "service_status"
	defaultPort     = 4001
)

// Client is the part of the GreptimeDB ingester the sink needs.
type Client interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// Config selects the GreptimeDB instance transitions are written to.
type Config struct {
	Endpoint string // host or host:port of the gRPC endpoint
	Database string
	Table    string
}

// Sink records service transitions as rows in a GreptimeDB table.
type Sink struct {
	client Client
	table  string
	logger *slog.Logger
}

// NewSink connects to the configured GreptimeDB instance.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	host, port, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	db := cfg.Database
	if db == "" {
		db = DefaultDatabase
	}

	client, err := greptime.NewClient(greptime.NewConfig(host).WithPort(port).WithDatabase(db))
	if err != nil {
		return nil, fmt.Errorf("failed to create greptime client: %w", err)
	}
	return newSink(client, cfg.Table, logger), nil
}

func newSink(client Client, tableName string, logger *slog.Logger) *Sink {
	if tableName == "" {
		tableName = DefaultTable
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sink{client: client, table: tableName, logger: logger}
}

// Record writes one row per change, all stamped with at. Changes for dropped
// services are written with an empty status.
func (s *Sink) Record(ctx context.Context, changes []status.Change, at time.Time) error {
	if len(changes) == 0 {
		return nil
	}

	tbl, err := table.New(s.table)
	if err != nil {
		return fmt.Errorf("failed to build table: %w", err)
	}
	tbl.AddTagColumn("service", types.STRING)
	tbl.AddFieldColumn("status", types.STRING)
	tbl.AddFieldColumn("previous", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, c := range changes {
		if err := tbl.AddRow(c.Name, string(c.Current), string(c.Previous), at); err != nil {
			return fmt.Errorf("failed to add row for %s: %w", c.Name, err)
		}
	}

	if _, err := s.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("failed to write status history: %w", err)
	}

	s.logger.Debug("wrote status history", "table", s.table, "rows", len(changes))
	return nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	if endpoint == "" {
		return "", 0, fmt.Errorf("history endpoint is required")
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// No port given.
		return endpoint, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid history endpoint port %q", portStr)
	}
	return host, port, nil
}
