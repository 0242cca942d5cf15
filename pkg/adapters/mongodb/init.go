// Package mongodb provides a MongoDB backend adapter for LeapDB.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapdb/pkg/adapters/mongodb"
package mongodb

import (
	"log/slog"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
)

func init() {
	adapter.Register("mongodb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
