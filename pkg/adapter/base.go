package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// ErrNotConnected is returned when a command is issued before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Ping, Alive, Exec, and Query implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	closed atomic.Bool
}

// Open opens a database/sql handle and pings it within the config timeout.
// Errors are classified into the core connect taxonomy.
func (b *BaseSQLAdapter) Open(ctx context.Context, driverName, dsn string, cfg core.AdapterConfig) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}
	b.DB = db
	b.Cfg = cfg
	b.closed.Store(false)

	if err := b.Ping(ctx); err != nil {
		_ = db.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil && b.closed.CompareAndSwap(false, true) {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Alive reports whether the handle is open. database/sql reconnects pooled
// connections on demand, so an open handle is a usable one.
func (b *BaseSQLAdapter) Alive() bool {
	return b.DB != nil && !b.closed.Load()
}

// Ping verifies the connection, bounded by the configured timeout.
func (b *BaseSQLAdapter) Ping(ctx context.Context) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if b.Cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Cfg.Timeout)
		defer cancel()
	}
	if err := b.DB.PingContext(ctx); err != nil {
		return Classify(fmt.Errorf("failed to ping %s: %w", b.Cfg.Type, err))
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	_, err := b.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement and materializes every row.
// Statements that return no rows are executed and report the affected row
// count instead.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*core.Result, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	if !ReturnsRows(sqlStr) {
		res, err := b.DB.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
		affected, _ := res.RowsAffected()
		return &core.Result{Affected: affected}, nil
	}

	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result, err := ScanRows(rows)
	if err != nil {
		return nil, err
	}
	return result, nil
}

var rowKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "SHOW": true, "PRAGMA": true, "EXPLAIN": true,
	"VALUES": true, "DESCRIBE": true, "DESC": true, "TABLE": true, "FROM": true,
	"CALL": true, "SUMMARIZE": true,
}

// ReturnsRows reports whether a statement produces a result set, judged by
// its first keyword or a RETURNING clause.
func ReturnsRows(sqlStr string) bool {
	s := stripLeadingComments(sqlStr)
	s = strings.TrimLeft(s, "( \t\r\n")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(s)
	}
	if rowKeywords[strings.ToUpper(s[:end])] {
		return true
	}
	return strings.Contains(strings.ToUpper(s), "RETURNING")
}

func stripLeadingComments(s string) string {
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			return s
		}
	}
}

// QueryString runs a query returning a single value, rendered as a string.
func (b *BaseSQLAdapter) QueryString(ctx context.Context, sqlStr string) (string, error) {
	res, err := b.Query(ctx, sqlStr)
	if err != nil {
		return "", err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return "", nil
	}
	return core.Stringify(res.Rows[0][0]), nil
}

// ScanRows drains rows into a Result. Byte slices are copied into strings.
func ScanRows(rows *sql.Rows) (*core.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &core.Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if bs, ok := v.([]byte); ok {
				values[i] = string(bs)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}
