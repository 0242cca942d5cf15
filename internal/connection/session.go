package connection

import (
	"context"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

// Session is a live backend connection owned by the Manager.
type Session struct {
	Identity   core.Identity
	Descriptor core.Descriptor
	Adapter    adapter.Adapter

	tunnelKey string
}

// Alive reports whether the backend connection is still usable.
func (s *Session) Alive() bool {
	return s.Adapter != nil && s.Adapter.Alive()
}

// Dialect returns the backend dialect.
func (s *Session) Dialect() *dialect.Dialect {
	return s.Adapter.Dialect()
}

// Query runs a command and returns its result.
func (s *Session) Query(ctx context.Context, command string, args ...any) (*core.Result, error) {
	return s.Adapter.Query(ctx, command, args...)
}

// Exec runs a command and discards any result.
func (s *Session) Exec(ctx context.Context, command string, args ...any) error {
	return s.Adapter.Exec(ctx, command, args...)
}
