package postgres

import "github.com/leapstack-labs/leapdb/pkg/dialect"

var catalog = dialect.Catalog{
	ListDatabases: `SELECT datname AS name FROM pg_database
WHERE datistemplate = false ORDER BY datname`,

	ListSchemas: `SELECT schema_name AS name FROM information_schema.schemata
WHERE schema_name NOT LIKE 'pg\_%' AND schema_name <> 'information_schema'
ORDER BY schema_name`,

	ListTables: `SELECT table_name AS name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`,

	ListViews: `SELECT table_name AS name FROM information_schema.views
WHERE table_schema = $1 ORDER BY table_name`,

	ListProcedures: `SELECT DISTINCT routine_name AS name FROM information_schema.routines
WHERE routine_schema = $1 AND routine_type = 'PROCEDURE' ORDER BY routine_name`,

	ListFunctions: `SELECT DISTINCT routine_name AS name FROM information_schema.routines
WHERE routine_schema = $1 AND routine_type = 'FUNCTION' ORDER BY routine_name`,

	ListTriggers: `SELECT DISTINCT trigger_name AS name FROM information_schema.triggers
WHERE trigger_schema = $1 ORDER BY trigger_name`,

	ListColumns: `SELECT c.column_name AS name, c.data_type AS type, c.is_nullable AS nullable,
  CASE WHEN EXISTS (
    SELECT 1 FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage k
      ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
      AND k.column_name = c.column_name
  ) THEN 'PRI' ELSE '' END AS key,
  COALESCE(col_description((quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass, c.ordinal_position::int), '') AS comment
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`,

	TruncateDatabase: `SELECT 'TRUNCATE TABLE ' || quote_ident(table_schema) || '.' || quote_ident(table_name) || ' CASCADE;' AS stmt
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'`,

	DropDatabase:  "DROP DATABASE %s",
	DropSchema:    "DROP SCHEMA %s CASCADE",
	DropTable:     "DROP TABLE %s",
	TruncateTable: "TRUNCATE TABLE %s",
	CountRows:     "SELECT COUNT(*) AS count FROM %s",
	SelectPage:    "SELECT * FROM %s LIMIT %d",
}
