// Package mssql provides the SQL Server dialect definition.
package mssql

import (
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

func init() {
	dialect.Register(MSSQL)
}

var mssqlReservedWords = []string{
	"add", "alter", "and", "as", "asc", "authorization", "between", "browse",
	"bulk", "by", "cascade", "case", "check", "checkpoint", "clustered",
	"column", "commit", "constraint", "create", "cross", "database", "default",
	"delete", "deny", "distinct", "drop", "else", "end", "exec", "execute",
	"exists", "file", "for", "foreign", "from", "full", "function", "having",
	"identity", "in", "inner", "insert", "into", "is", "join", "left", "like",
	"merge", "not", "null", "of", "on", "open", "or", "over", "percent",
	"plan", "primary", "print", "proc", "procedure", "public", "references",
	"return", "revoke", "right", "rule", "schema", "select", "set", "top",
	"tran", "transaction", "trigger", "union", "unique", "update", "use",
	"user", "view", "when", "where", "while", "with",
}

// MSSQL is the SQL Server dialect.
var MSSQL = dialect.NewDialect("mssql").
	Identifiers("[", "]", "]]", core.NormCaseInsensitive).
	WithDatabases().
	DefaultSchema("dbo").
	PlaceholderStyle(core.PlaceholderAtP).
	WithReservedWords(mssqlReservedWords...).
	WithCatalog(catalog).
	Build()
