package dialect

import (
	"testing"

	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pgLike() *Dialect {
	return NewDialect("pglike").
		Identifiers(`"`, `"`, `""`, core.NormLowercase).
		QuoteEverySegment().
		WithReservedWords("user").
		Build()
}

func mssqlLike() *Dialect {
	return NewDialect("mssqllike").
		Identifiers("[", "]", "]]", core.NormCaseInsensitive).
		Build()
}

func TestQuote(t *testing.T) {
	pg := pgLike()
	ms := mssqlLike()
	bt := NewDialect("bt").Build()
	doc := NewDialect("doc").Family(core.FamilyDocument).NeverQuote().Build()

	tests := []struct {
		name string
		d    *Dialect
		in   string
		want string
	}{
		{"plain identifier unchanged", bt, "users", "users"},
		{"plain identifier unchanged pg", pg, "users", "users"},
		{"empty unchanged", pg, "", ""},
		{"reserved word", bt, "order", "`order`"},
		{"reserved word any case", bt, "ORDER", "`ORDER`"},
		{"dialect reserved word", pg, "user", `"user"`},
		{"base reserved word pg", pg, "Group", `"Group"`},
		{"hyphen between words", bt, "my-table", "`my-table`"},
		{"whitespace between words", ms, "order items", "[order items]"},
		{"pg dotted quotes every segment", pg, "a.b", `"a"."b"`},
		{"backtick dotted quotes only problematic", bt, "sales.order", "sales.`order`"},
		{"mssql dotted", ms, "dbo.my table", "dbo.[my table]"},
		{"escape quote end pg", pg, `we"ird.x`, `"we""ird"."x"`},
		{"escape bracket", ms, "a]b c", "[a]]b c]"},
		{"escape backtick", bt, "a`b-c", "`a``b-c`"},
		{"document never quotes", doc, "order items", "order items"},
		{"document never quotes dotted", doc, "a.b", "a.b"},
		{"trailing hyphen is fine", bt, "name-", "name-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Quote(tt.in))
		})
	}
}

func TestQuoteUnknownDialectFallsBackToBacktick(t *testing.T) {
	assert.Equal(t, "`select me`", Quote("select me", "no-such-dialect"))
	assert.Equal(t, "users", Quote("users", "no-such-dialect"))
}

func TestRegistry(t *testing.T) {
	d := NewDialect("RegistryTest").Build()
	Register(d)

	got, ok := Get("registrytest")
	require.True(t, ok)
	assert.Same(t, d, got)
	assert.Contains(t, List(), "registrytest")
	assert.Same(t, d, Lookup("REGISTRYTEST"))
	assert.Same(t, fallback, Lookup("missing"))
}

func TestStatements(t *testing.T) {
	d := NewDialect("stmts").
		Identifiers(`"`, `"`, `""`, core.NormLowercase).
		QuoteEverySegment().
		WithCatalog(Catalog{
			DropTable:     "DROP TABLE %s",
			TruncateTable: "TRUNCATE TABLE %s",
			SelectPage:    "SELECT * FROM %s LIMIT %d",
		}).
		Build()

	assert.Equal(t, `DROP TABLE "public"."orders"`, d.DropTable("public", "orders"))
	assert.Equal(t, `TRUNCATE TABLE orders`, d.TruncateTable("", "orders"))
	assert.Equal(t, `SELECT * FROM "s"."t" LIMIT 10`, d.SelectPage("s", "t", 10))
	assert.Empty(t, d.DropDatabase("x"))
	assert.Empty(t, d.CountRows("s", "t"))
}

func TestSelectPageIndexedVerbs(t *testing.T) {
	d := NewDialect("top").
		Identifiers("[", "]", "]]", core.NormCaseInsensitive).
		WithCatalog(Catalog{SelectPage: "SELECT TOP %[2]d * FROM %[1]s"}).
		Build()
	assert.Equal(t, "SELECT TOP 5 * FROM dbo.[order]", d.SelectPage("dbo", "order", 5))
}
