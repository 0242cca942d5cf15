// Package mysql provides a MySQL/MariaDB backend adapter for LeapDB.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapdb/pkg/adapters/mysql"
package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
)

func init() {
	adapter.Register("mysql", func(logger *slog.Logger) adapter.Adapter { return New(logger, "mysql") })
	adapter.Register("mariadb", func(logger *slog.Logger) adapter.Adapter { return New(logger, "mariadb") })
}
