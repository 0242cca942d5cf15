// Package adapter provides the backend session contract used by the
// connection manager and the node tree.
//
// This package contains the public contract that all backend adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"

	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter defines the interface that all backend adapters must implement.
// Commands are backend-native: SQL for relational engines, space separated
// commands for key-value stores, extended JSON for document stores and
// "METHOD /path [body]" for search engines.
type Adapter interface {
	// Connect establishes a session using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Ping verifies the session is usable.
	Ping(ctx context.Context) error

	// Query executes a command that returns data.
	Query(ctx context.Context, command string, args ...any) (*core.Result, error)

	// Exec executes a command that doesn't return data.
	Exec(ctx context.Context, command string, args ...any) error

	// Version returns the backend server version.
	Version(ctx context.Context) (string, error)

	// Alive reports whether the session can still be used, without I/O.
	Alive() bool

	// Close closes the session and releases resources.
	Close() error

	// Dialect returns the identifier and catalog rules for this backend.
	Dialect() *dialect.Dialect
}
