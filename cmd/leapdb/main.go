// Package main provides the CLI for LeapDB.
package main

import (
	"os"

	"github.com/leapstack-labs/leapdb/internal/cli"

	// Backends
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/elasticsearch"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/mongodb"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/redis"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/sqlite"

	// Dialects without an adapter
	_ "github.com/leapstack-labs/leapdb/pkg/dialects/mssql"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
