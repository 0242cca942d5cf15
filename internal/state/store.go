// Package state persists saved connections and saved queries.
package state

import (
	"context"
	"io"
	"time"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// SavedConnection is a connection descriptor stored by the user.
type SavedConnection struct {
	ID         string
	Descriptor core.Descriptor
	Global     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SavedQuery is a named query kept for a connection.
type SavedQuery struct {
	ID         string
	Connection string
	Name       string
	SQL        string
	CreatedAt  time.Time
}

// Store defines the interface for persisting LeapDB state.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	SaveConnection(ctx context.Context, d core.Descriptor) (*SavedConnection, error)
	GetConnection(ctx context.Context, key string) (*SavedConnection, error)
	ListConnections(ctx context.Context) ([]*SavedConnection, error)
	DeleteConnection(ctx context.Context, key string) error
	ExportConnections(ctx context.Context, w io.Writer) error

	SaveQuery(ctx context.Context, connection, name, sql string) (*SavedQuery, error)
	SavedQueries(ctx context.Context, connection string) ([]SavedQuery, error)
	DeleteQuery(ctx context.Context, connection, name string) error
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
