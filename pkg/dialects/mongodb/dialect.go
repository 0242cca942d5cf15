// Package mongodb provides the MongoDB dialect definition. Document stores
// address collections by name, so identifiers are never quoted.
package mongodb

import (
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

func init() {
	dialect.Register(MongoDB)
}

// MongoDB is the MongoDB dialect.
var MongoDB = dialect.NewDialect("mongodb").
	Family(core.FamilyDocument).
	NeverQuote().
	WithDatabases().
	DefaultSchema("admin").
	Build()
