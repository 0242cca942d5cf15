// Package sqlite provides the SQLite dialect definition.
package sqlite

import (
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

var sqliteReservedWords = []string{
	"abort", "add", "alter", "and", "as", "asc", "between", "by", "case",
	"check", "collate", "column", "commit", "constraint", "create", "cross",
	"default", "delete", "distinct", "drop", "else", "escape", "except",
	"exists", "from", "full", "glob", "having", "in", "inner", "insert",
	"intersect", "into", "is", "isnull", "join", "left", "like", "limit",
	"match", "natural", "not", "notnull", "null", "of", "offset", "on", "or",
	"pragma", "primary", "references", "regexp", "replace", "right", "select",
	"set", "then", "to", "transaction", "trigger", "union", "unique",
	"update", "using", "vacuum", "values", "view", "when", "where", "with",
}

// SQLite is the SQLite dialect. The schemas of a connection are the
// attached databases ("main", "temp", ...).
var SQLite = dialect.NewDialect("sqlite").
	Identifiers("`", "`", "``", core.NormCaseInsensitive).
	DefaultSchema("main").
	PlaceholderStyle(core.PlaceholderQuestion).
	WithReservedWords(sqliteReservedWords...).
	WithCatalog(catalog).
	Build()
