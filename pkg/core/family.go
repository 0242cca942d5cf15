package core

import "fmt"

// Family is the closed set of backend families a connection can belong to.
// Tree strategies are selected by family, never by concrete backend type.
type Family int

const (
	// FamilyRelational covers SQL engines (PostgreSQL, MySQL, SQL Server, SQLite, DuckDB).
	FamilyRelational Family = iota
	// FamilyDocument covers document stores (MongoDB).
	FamilyDocument
	// FamilyKeyValue covers key-value stores (Redis).
	FamilyKeyValue
	// FamilySearch covers search indices (Elasticsearch).
	FamilySearch
)

// String returns the string representation of Family.
func (f Family) String() string {
	switch f {
	case FamilyRelational:
		return "relational"
	case FamilyDocument:
		return "document"
	case FamilyKeyValue:
		return "keyvalue"
	case FamilySearch:
		return "search"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ParseFamily converts a family name back into a Family.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "relational", "sql":
		return FamilyRelational, nil
	case "document":
		return FamilyDocument, nil
	case "keyvalue", "kv":
		return FamilyKeyValue, nil
	case "search":
		return FamilySearch, nil
	default:
		return 0, fmt.Errorf("unknown backend family %q", s)
	}
}
