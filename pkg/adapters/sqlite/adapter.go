package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	litedialect "github.com/leapstack-labs/leapdb/pkg/dialects/sqlite"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: adapter.DiscardLogger(logger)},
	}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return litedialect.SQLite
}

// Connect opens the database file named by cfg.Path (":memory:" when empty).
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	a.Logger.Debug("opening sqlite", slog.String("path", path))

	if err := a.Open(ctx, "sqlite", buildDSN(path, cfg), cfg); err != nil {
		return err
	}
	// An in-memory database lives in a single connection.
	if path == ":memory:" {
		a.DB.SetMaxOpenConns(1)
	}
	return nil
}

// buildDSN appends the connection pragmas understood by modernc.org/sqlite.
func buildDSN(path string, cfg adapter.Config) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	if cfg.Timeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.Timeout.Milliseconds()))
	}
	return "file:" + path + "?" + q.Encode()
}

// Version returns the SQLite library version.
func (a *Adapter) Version(ctx context.Context) (string, error) {
	return a.QueryString(ctx, "SELECT sqlite_version()")
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
