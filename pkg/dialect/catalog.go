package dialect

// Catalog is the structural SQL a relational dialect uses to enumerate and
// manipulate its objects. An empty field means the dialect does not support
// the operation; the matching tree group then lists nothing.
//
// Listing queries return a "name" column first and may add "type",
// "nullable", "key", "comment", "charset" and "collation" columns. They bind
// the schema as the first parameter and, for columns, the table as the
// second, using the dialect's placeholder style.
//
// Statement templates take the quoted target through a single %s verb;
// SelectPage additionally takes the row limit as %d (indexed verbs allowed).
type Catalog struct {
	ListDatabases  string // no parameters
	ListSchemas    string // no parameters, current database
	ListTables     string // schema
	ListViews      string // schema
	ListProcedures string // schema
	ListFunctions  string // schema
	ListTriggers   string // schema
	ListColumns    string // schema, table

	// TruncateDatabase yields one statement per row in a "stmt" column,
	// emptying every table of the schema bound as the first parameter.
	TruncateDatabase string

	DropDatabase  string
	DropSchema    string
	DropTable     string
	TruncateTable string
	CountRows     string
	SelectPage    string
}
