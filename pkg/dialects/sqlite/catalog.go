package sqlite

import "github.com/leapstack-labs/leapdb/pkg/dialect"

var catalog = dialect.Catalog{
	ListSchemas: `SELECT name FROM pragma_database_list ORDER BY seq`,

	ListTables: `SELECT name FROM pragma_table_list
WHERE schema = ?1 AND type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY name`,

	ListViews: `SELECT name FROM pragma_table_list
WHERE schema = ?1 AND type = 'view' ORDER BY name`,

	ListColumns: `SELECT name, type,
  CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END AS nullable,
  CASE WHEN pk > 0 THEN 'PRI' ELSE '' END AS key
FROM pragma_table_info(?2, ?1) ORDER BY cid`,

	TruncateDatabase: `SELECT 'DELETE FROM "' || replace(?1, '"', '""') || '"."' || replace(name, '"', '""') || '";' AS stmt
FROM pragma_table_list
WHERE schema = ?1 AND type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'`,

	DropTable:     "DROP TABLE %s",
	TruncateTable: "DELETE FROM %s",
	CountRows:     "SELECT COUNT(*) AS count FROM %s",
	SelectPage:    "SELECT * FROM %s LIMIT %d",
}
