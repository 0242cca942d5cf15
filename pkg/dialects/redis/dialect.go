// Package redis provides the Redis dialect definition.
package redis

import (
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

func init() {
	dialect.Register(Redis)
}

// Redis is the Redis dialect. Logical databases are numbered and keys are
// plain strings; identifiers follow the backtick rule.
var Redis = dialect.NewDialect("redis").
	Family(core.FamilyKeyValue).
	WithDatabases().
	DefaultSchema("0").
	Build()
