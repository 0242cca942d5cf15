// Package elasticsearch provides an Elasticsearch backend adapter for LeapDB.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapdb/pkg/adapters/elasticsearch"
package elasticsearch

import (
	"log/slog"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
)

func init() {
	adapter.Register("elasticsearch", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
