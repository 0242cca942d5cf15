// Package mysql provides the MySQL/MariaDB dialect definition.
package mysql

import (
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
	dialect.Register(MariaDB)
}

var mysqlReservedWords = []string{
	"add", "alter", "and", "as", "asc", "between", "by", "call", "case",
	"change", "check", "column", "constraint", "create", "cross", "database",
	"databases", "default", "delete", "describe", "distinct", "div", "drop",
	"else", "exists", "explain", "false", "fetch", "for", "foreign", "from",
	"fulltext", "having", "in", "inner", "insert", "interval", "into", "is",
	"join", "keys", "kill", "left", "like", "limit", "lines", "load", "lock",
	"match", "mod", "not", "null", "on", "option", "or", "outer", "primary",
	"range", "read", "references", "rename", "replace", "right", "schema",
	"select", "set", "show", "status", "then", "to", "true", "union",
	"unique", "update", "usage", "use", "using", "values", "when", "where",
	"with", "write",
}

func build(name string) *dialect.Dialect {
	return dialect.NewDialect(name).
		Identifiers("`", "`", "``", core.NormCaseSensitive).
		PlaceholderStyle(core.PlaceholderQuestion).
		WithReservedWords(mysqlReservedWords...).
		WithCatalog(catalog).
		Build()
}

// MySQL is the MySQL dialect. Schemas and databases are the same thing, so
// connections list schemas directly.
var MySQL = build("mysql")

// MariaDB shares the MySQL rule.
var MariaDB = build("mariadb")
