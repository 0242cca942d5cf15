package mssql

import "github.com/leapstack-labs/leapdb/pkg/dialect"

var catalog = dialect.Catalog{
	ListDatabases: `SELECT name FROM sys.databases ORDER BY name`,

	ListSchemas: `SELECT SCHEMA_NAME AS name FROM INFORMATION_SCHEMA.SCHEMATA
WHERE SCHEMA_NAME NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest') AND SCHEMA_NAME NOT LIKE 'db[_]%'
ORDER BY SCHEMA_NAME`,

	ListTables: `SELECT TABLE_NAME AS name FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,

	ListViews: `SELECT TABLE_NAME AS name FROM INFORMATION_SCHEMA.VIEWS
WHERE TABLE_SCHEMA = @p1 ORDER BY TABLE_NAME`,

	ListProcedures: `SELECT ROUTINE_NAME AS name FROM INFORMATION_SCHEMA.ROUTINES
WHERE ROUTINE_SCHEMA = @p1 AND ROUTINE_TYPE = 'PROCEDURE' ORDER BY ROUTINE_NAME`,

	ListFunctions: `SELECT ROUTINE_NAME AS name FROM INFORMATION_SCHEMA.ROUTINES
WHERE ROUTINE_SCHEMA = @p1 AND ROUTINE_TYPE = 'FUNCTION' ORDER BY ROUTINE_NAME`,

	ListTriggers: `SELECT t.name AS name FROM sys.triggers t
JOIN sys.tables tb ON t.parent_id = tb.object_id
WHERE SCHEMA_NAME(tb.schema_id) = @p1 ORDER BY t.name`,

	ListColumns: `SELECT c.COLUMN_NAME AS name, c.DATA_TYPE AS type, c.IS_NULLABLE AS nullable,
  CASE WHEN k.COLUMN_NAME IS NULL THEN '' ELSE 'PRI' END AS [key]
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
  ON tc.TABLE_SCHEMA = c.TABLE_SCHEMA AND tc.TABLE_NAME = c.TABLE_NAME AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
LEFT JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
  ON k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND k.COLUMN_NAME = c.COLUMN_NAME
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`,

	TruncateDatabase: `SELECT 'TRUNCATE TABLE ' + QUOTENAME(TABLE_SCHEMA) + '.' + QUOTENAME(TABLE_NAME) + ';' AS stmt
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'`,

	DropDatabase:  "DROP DATABASE %s",
	DropSchema:    "DROP SCHEMA %s",
	DropTable:     "DROP TABLE %s",
	TruncateTable: "TRUNCATE TABLE %s",
	CountRows:     "SELECT COUNT(*) AS count FROM %s",
	SelectPage:    "SELECT TOP %[2]d * FROM %[1]s",
}
