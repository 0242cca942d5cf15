package duckdb

import "github.com/leapstack-labs/leapdb/pkg/dialect"

var catalog = dialect.Catalog{
	ListSchemas: `SELECT schema_name AS name FROM information_schema.schemata
WHERE catalog_name = current_database() ORDER BY schema_name`,

	ListTables: `SELECT table_name AS name FROM information_schema.tables
WHERE table_catalog = current_database() AND table_schema = ? AND table_type = 'BASE TABLE'
ORDER BY table_name`,

	ListViews: `SELECT table_name AS name FROM information_schema.tables
WHERE table_catalog = current_database() AND table_schema = ? AND table_type = 'VIEW'
ORDER BY table_name`,

	ListFunctions: `SELECT DISTINCT function_name AS name FROM duckdb_functions()
WHERE database_name = current_database() AND schema_name = ? AND NOT internal
ORDER BY function_name`,

	ListColumns: `SELECT column_name AS name, data_type AS type, is_nullable AS nullable, '' AS key
FROM information_schema.columns
WHERE table_catalog = current_database() AND table_schema = ? AND table_name = ?
ORDER BY ordinal_position`,

	TruncateDatabase: `SELECT 'DELETE FROM "' || replace(table_schema, '"', '""') || '"."' || replace(table_name, '"', '""') || '";' AS stmt
FROM information_schema.tables
WHERE table_catalog = current_database() AND table_schema = ? AND table_type = 'BASE TABLE'`,

	DropSchema:    "DROP SCHEMA %s CASCADE",
	DropTable:     "DROP TABLE %s",
	TruncateTable: "DELETE FROM %s",
	CountRows:     "SELECT COUNT(*) AS count FROM %s",
	SelectPage:    "SELECT * FROM %s LIMIT %d",
}
