// Package redis provides a Redis backend adapter for LeapDB.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapdb/pkg/adapters/redis"
package redis

import (
	"log/slog"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
)

func init() {
	adapter.Register("redis", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
