package mysql

import "github.com/leapstack-labs/leapdb/pkg/dialect"

var catalog = dialect.Catalog{
	ListSchemas: `SELECT SCHEMA_NAME AS name, DEFAULT_CHARACTER_SET_NAME AS charset, DEFAULT_COLLATION_NAME AS collation
FROM information_schema.SCHEMATA ORDER BY SCHEMA_NAME`,

	ListTables: `SELECT TABLE_NAME AS name, TABLE_COMMENT AS comment FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,

	ListViews: `SELECT TABLE_NAME AS name FROM information_schema.VIEWS
WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`,

	ListProcedures: `SELECT ROUTINE_NAME AS name FROM information_schema.ROUTINES
WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'PROCEDURE' ORDER BY ROUTINE_NAME`,

	ListFunctions: `SELECT ROUTINE_NAME AS name FROM information_schema.ROUTINES
WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'FUNCTION' ORDER BY ROUTINE_NAME`,

	ListTriggers: `SELECT TRIGGER_NAME AS name FROM information_schema.TRIGGERS
WHERE TRIGGER_SCHEMA = ? ORDER BY TRIGGER_NAME`,

	ListColumns: "SELECT COLUMN_NAME AS name, COLUMN_TYPE AS type, IS_NULLABLE AS nullable,\n" +
		"  COLUMN_KEY AS `key`, COLUMN_COMMENT AS comment\n" +
		"FROM information_schema.COLUMNS\n" +
		"WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?\n" +
		"ORDER BY ORDINAL_POSITION",

	TruncateDatabase: "SELECT CONCAT('TRUNCATE TABLE `', REPLACE(TABLE_SCHEMA, '`', '``'), '`.`', REPLACE(TABLE_NAME, '`', '``'), '`;') AS stmt\n" +
		"FROM information_schema.TABLES\n" +
		"WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'",

	DropDatabase:  "DROP DATABASE %s",
	DropSchema:    "DROP DATABASE %s",
	DropTable:     "DROP TABLE %s",
	TruncateTable: "TRUNCATE TABLE %s",
	CountRows:     "SELECT COUNT(*) AS count FROM %s",
	SelectPage:    "SELECT * FROM %s LIMIT %d",
}
