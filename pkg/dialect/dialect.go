// Package dialect provides identifier quoting rules and catalog SQL per backend.
//
// This package contains the public contract for dialect definitions used by the
// node tree, the adapters and the CLI. Concrete dialect implementations are
// registered from pkg/dialects/*/ packages.
package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// BaseReservedWords are the words every SQL-like rule quotes, matched
// case-insensitively. Concrete dialects add their own on top.
var BaseReservedWords = []string{
	"if", "key", "desc", "length", "group", "order", "index", "condition",
	"system", "table", "type", "value", "backup", "begin", "account",
	"action", "all", "any", "current", "data", "grant",
}

// separatorRe matches whitespace runs or hyphens between word characters.
var separatorRe = regexp.MustCompile(`\b[-\s]+\b`)

// fallback is the rule applied to unknown dialect names.
var fallback = NewDialect("default").
	Identifiers("`", "`", "``", core.NormCaseSensitive).
	Build()

// Dialect represents a backend's identifier and catalog configuration.
// Dialects are immutable once built.
type Dialect struct {
	Name        string
	Family      core.Family
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters

	// QuoteEverySegment quotes each segment of a dot-qualified name even when
	// the segment itself is harmless.
	QuoteEverySegment bool

	// HasDatabases reports whether a connection lists databases before schemas.
	HasDatabases bool

	// Catalog holds the structural SQL of relational dialects.
	Catalog Catalog

	reservedWords map[string]struct{} // All keywords that need quoting as identifiers
}

// Quote quotes identifier under the named dialect's rule. Unknown names use
// the backtick rule.
func Quote(identifier, dialectName string) string {
	return Lookup(dialectName).Quote(identifier)
}

// Quote returns identifier ready to be embedded in a command. Plain,
// non-reserved identifiers are returned unchanged. Dot-qualified names are
// split and every segment is handled on its own.
func (d *Dialect) Quote(identifier string) string {
	if identifier == "" || d.Identifiers.Quote == "" {
		return identifier
	}
	if !strings.Contains(identifier, ".") {
		if d.NeedsQuoting(identifier) {
			return d.QuoteIdentifier(identifier)
		}
		return identifier
	}

	segments := strings.Split(identifier, ".")
	for i, seg := range segments {
		if d.QuoteEverySegment || d.NeedsQuoting(seg) {
			segments[i] = d.QuoteIdentifier(seg)
		}
	}
	return strings.Join(segments, ".")
}

// NeedsQuoting reports whether a single segment is reserved or contains
// whitespace or hyphens between word characters.
func (d *Dialect) NeedsQuoting(segment string) bool {
	return d.IsReservedWord(segment) || separatorRe.MatchString(segment)
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	if d.Identifiers.Quote == "" {
		return name
	}
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// Qualify joins non-empty parts with dots and quotes the result.
func (d *Dialect) Qualify(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return d.Quote(strings.Join(kept, "."))
}

// IsRelational reports whether the dialect speaks SQL.
func (d *Dialect) IsRelational() bool {
	return d.Family == core.FamilyRelational
}

// DropDatabase returns the statement dropping a database, or "" when unsupported.
func (d *Dialect) DropDatabase(name string) string {
	return d.render(d.Catalog.DropDatabase, d.Quote(name))
}

// DropSchema returns the statement dropping a schema, or "" when unsupported.
func (d *Dialect) DropSchema(name string) string {
	return d.render(d.Catalog.DropSchema, d.Quote(name))
}

// DropTable returns the statement dropping a table.
func (d *Dialect) DropTable(schema, table string) string {
	return d.render(d.Catalog.DropTable, d.Qualify(schema, table))
}

// TruncateTable returns the statement emptying a table.
func (d *Dialect) TruncateTable(schema, table string) string {
	return d.render(d.Catalog.TruncateTable, d.Qualify(schema, table))
}

// CountRows returns a statement counting the rows of a table.
func (d *Dialect) CountRows(schema, table string) string {
	return d.render(d.Catalog.CountRows, d.Qualify(schema, table))
}

// SelectPage returns a statement reading the first limit rows of a table.
func (d *Dialect) SelectPage(schema, table string, limit int) string {
	if d.Catalog.SelectPage == "" {
		return ""
	}
	return fmt.Sprintf(d.Catalog.SelectPage, d.Qualify(schema, table), limit)
}

func (d *Dialect) render(tmpl, target string) string {
	if tmpl == "" {
		return ""
	}
	return fmt.Sprintf(tmpl, target)
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
// The builder starts with the backtick rule and the base reserved words.
func NewDialect(name string) *Builder {
	b := &Builder{
		dialect: &Dialect{
			Name:   name,
			Family: core.FamilyRelational,
			Identifiers: core.IdentifierConfig{
				Quote:         "`",
				QuoteEnd:      "`",
				Escape:        "``",
				Normalization: core.NormCaseSensitive,
			},
			reservedWords: make(map[string]struct{}),
		},
	}
	return b.WithReservedWords(BaseReservedWords...)
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// NeverQuote disables quoting entirely (document stores).
func (b *Builder) NeverQuote() *Builder {
	b.dialect.Identifiers.Quote = ""
	b.dialect.Identifiers.QuoteEnd = ""
	b.dialect.Identifiers.Escape = ""
	return b
}

// Family sets the backend family.
func (b *Builder) Family(f core.Family) *Builder {
	b.dialect.Family = f
	return b
}

// QuoteEverySegment makes dot-qualified names quote all of their segments.
func (b *Builder) QuoteEverySegment() *Builder {
	b.dialect.QuoteEverySegment = true
	return b
}

// WithDatabases marks the dialect as listing databases above schemas.
func (b *Builder) WithDatabases() *Builder {
	b.dialect.HasDatabases = true
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// WithCatalog sets the structural SQL.
func (b *Builder) WithCatalog(c Catalog) *Builder {
	b.dialect.Catalog = c
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
