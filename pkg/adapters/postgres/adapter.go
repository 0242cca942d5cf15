// Package postgres provides a PostgreSQL backend adapter for LeapDB.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	pgdialect "github.com/leapstack-labs/leapdb/pkg/dialects/postgres"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter

	connName string // registered pgx connection config
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: adapter.DiscardLogger(logger)},
	}
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return pgdialect.Postgres
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("invalid postgres connection settings: %w", err)
	}
	tlsCfg, err := adapter.TLSConfig(cfg.SSL, connCfg.Host)
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		connCfg.TLSConfig = tlsCfg
		connCfg.Fallbacks = nil
	}

	a.connName = stdlib.RegisterConnConfig(connCfg)
	if err := a.Open(ctx, "pgx", a.connName, cfg); err != nil {
		stdlib.UnregisterConnConfig(a.connName)
		a.connName = ""
		return err
	}
	return nil
}

// Close closes the pool and forgets the registered connection config.
func (a *Adapter) Close() error {
	err := a.BaseSQLAdapter.Close()
	if a.connName != "" {
		stdlib.UnregisterConnConfig(a.connName)
		a.connName = ""
	}
	return err
}

// Version returns the server version.
func (a *Adapter) Version(ctx context.Context) (string, error) {
	return a.QueryString(ctx, "SHOW server_version")
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if cfg.Path != "" {
		host = cfg.Path
	}
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	database := cfg.Database
	if database == "" {
		database = "postgres"
	}

	sslmode := "disable"
	if cfg.SSL != nil && cfg.SSL.Enabled {
		sslmode = "require"
	}
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	parts := []string{
		"host=" + dsnValue(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + dsnValue(database),
		"sslmode=" + sslmode,
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}
	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(math.Ceil(cfg.Timeout.Seconds()))))
	}
	if cfg.Schema != "" {
		parts = append(parts, "search_path="+dsnValue(cfg.Schema))
	}

	return strings.Join(parts, " ")
}

// dsnValue quotes a key=value DSN value when it contains spaces, quotes or
// backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
