package tree

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/ohler55/ojg/jp"
)

// strategy computes the children of a node for one backend family.
type strategy interface {
	children(ctx context.Context, n *Node) ([]*Node, error)
}

func strategyFor(f core.Family) strategy {
	switch f {
	case core.FamilyDocument:
		return documentStrategy{}
	case core.FamilyKeyValue:
		return keyValueStrategy{}
	case core.FamilySearch:
		return searchStrategy{}
	default:
		return relationalStrategy{}
	}
}

// query runs a command on the node's session.
func (n *Node) query(ctx context.Context, command string, args ...any) (*core.Result, error) {
	s, err := n.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, command, args...)
}

// nameAt returns the "name" column of a row, or its first column.
func nameAt(res *core.Result, row int) string {
	if res.ColumnIndex("name") >= 0 {
		return res.String(row, "name")
	}
	if row < len(res.Rows) && len(res.Rows[row]) > 0 {
		return core.Stringify(res.Rows[row][0])
	}
	return ""
}

// rowMeta copies the non-name columns of a row into a map.
func rowMeta(res *core.Result, row int) map[string]any {
	meta := make(map[string]any, len(res.Columns))
	for i, c := range res.Columns {
		if c == "name" || i >= len(res.Rows[row]) {
			continue
		}
		meta[c] = res.Rows[row][i]
	}
	return meta
}

// --- relational ---

type relationalStrategy struct{}

// groupLabels are the display names of schema object groups.
var groupLabels = map[Kind]string{
	KindTable:     "Tables",
	KindView:      "Views",
	KindQuery:     "Queries",
	KindProcedure: "Procedures",
	KindFunction:  "Functions",
	KindTrigger:   "Triggers",
}

func (relationalStrategy) children(ctx context.Context, n *Node) ([]*Node, error) {
	cat := n.dialect.Catalog
	switch n.Kind {
	case KindConnection:
		if n.dialect.HasDatabases {
			return n.relationalList(ctx, KindDatabase, cat.ListDatabases)
		}
		return n.relationalList(ctx, KindSchema, cat.ListSchemas)
	case KindDatabase:
		return n.relationalList(ctx, KindSchema, cat.ListSchemas)
	case KindSchema:
		return n.groups(), nil
	case KindGroup:
		switch n.member {
		case KindTable:
			return n.relationalList(ctx, KindTable, cat.ListTables, n.Schema)
		case KindView:
			return n.relationalList(ctx, KindView, cat.ListViews, n.Schema)
		case KindProcedure:
			return n.relationalList(ctx, KindProcedure, cat.ListProcedures, n.Schema)
		case KindFunction:
			return n.relationalList(ctx, KindFunction, cat.ListFunctions, n.Schema)
		case KindTrigger:
			return n.relationalList(ctx, KindTrigger, cat.ListTriggers, n.Schema)
		case KindQuery:
			return n.savedQueries(ctx)
		}
	case KindTable, KindView:
		return n.columns(ctx)
	}
	return nil, nil
}

// groups returns the object groups of a schema. Tables are always shown;
// the others follow the settings.
func (n *Node) groups() []*Node {
	s := n.env.Settings()
	members := []Kind{KindTable}
	for _, g := range []struct {
		kind Kind
		show bool
	}{
		{KindView, s.ShowView},
		{KindQuery, s.ShowQuery},
		{KindProcedure, s.ShowProcedure},
		{KindFunction, s.ShowFunction},
		{KindTrigger, s.ShowTrigger},
	} {
		if g.show {
			members = append(members, g.kind)
		}
	}

	out := make([]*Node, 0, len(members))
	for _, m := range members {
		g := n.child(KindGroup, string(m))
		g.Name = groupLabels[m]
		g.label = groupLabels[m]
		g.member = m
		out = append(out, g)
	}
	return out
}

// relationalList runs a catalog listing. An empty statement lists nothing.
func (n *Node) relationalList(ctx context.Context, kind Kind, stmt string, args ...any) ([]*Node, error) {
	if stmt == "" {
		return nil, nil
	}
	res, err := n.query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	out := make([]*Node, 0, len(res.Rows))
	for i := range res.Rows {
		name := nameAt(res, i)
		c := n.child(kind, name)
		c.Meta = rowMeta(res, i)
		switch kind {
		case KindDatabase:
			c.Database = name
			c.desc = n.desc.WithDatabase(name)
		case KindSchema:
			c.Schema = name
			if charset := core.Stringify(c.Meta["charset"]); charset != "" {
				c.description = strings.TrimSpace(charset + " " + core.Stringify(c.Meta["collation"]))
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (n *Node) columns(ctx context.Context) ([]*Node, error) {
	stmt := n.dialect.Catalog.ListColumns
	if stmt == "" {
		return nil, nil
	}
	res, err := n.query(ctx, stmt, n.Schema, n.Name)
	if err != nil {
		return nil, err
	}

	out := make([]*Node, 0, len(res.Rows))
	for i := range res.Rows {
		c := n.child(KindColumn, nameAt(res, i))
		c.Meta = rowMeta(res, i)
		desc := core.Stringify(c.Meta["type"])
		if key := core.Stringify(c.Meta["key"]); key != "" {
			desc = strings.TrimSpace(desc + " " + key)
		}
		if strings.EqualFold(core.Stringify(c.Meta["nullable"]), "NO") {
			desc = strings.TrimSpace(desc + " not null")
		}
		c.description = desc
		out = append(out, c)
	}
	return out, nil
}

func (n *Node) savedQueries(ctx context.Context) ([]*Node, error) {
	if n.env.Queries == nil {
		return nil, nil
	}
	queries, err := n.env.Queries.SavedQueries(ctx, n.desc.Key())
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(queries))
	for _, q := range queries {
		c := n.child(KindQuery, q.Name)
		c.Meta = map[string]any{"sql": q.SQL, "id": q.ID}
		c.description, _, _ = strings.Cut(strings.TrimSpace(q.SQL), "\n")
		out = append(out, c)
	}
	return out, nil
}

// --- document ---

type documentStrategy struct{}

func (documentStrategy) children(ctx context.Context, n *Node) ([]*Node, error) {
	switch n.Kind {
	case KindConnection:
		res, err := n.query(ctx, "listDatabases", 1, "nameOnly", true)
		if err != nil {
			return nil, err
		}
		out := make([]*Node, 0, len(res.Rows))
		for i := range res.Rows {
			name := nameAt(res, i)
			c := n.child(KindDatabase, name)
			c.Database = name
			c.desc = n.desc.WithDatabase(name)
			out = append(out, c)
		}
		return out, nil
	case KindDatabase:
		res, err := n.query(ctx, "listCollections", 1, "nameOnly", true)
		if err != nil {
			return nil, err
		}
		out := make([]*Node, 0, len(res.Rows))
		for i := range res.Rows {
			c := n.child(KindCollection, nameAt(res, i))
			c.Meta = rowMeta(res, i)
			c.description = core.Stringify(c.Meta["type"])
			out = append(out, c)
		}
		return out, nil
	}
	return nil, nil
}

// --- key-value ---

type keyValueStrategy struct{}

func (keyValueStrategy) children(ctx context.Context, n *Node) ([]*Node, error) {
	switch n.Kind {
	case KindConnection:
		res, err := n.query(ctx, "INFO keyspace")
		if err != nil {
			return nil, err
		}
		spaces := parseKeyspace(core.Stringify(res.Value(0, "info")), n.desc.Database)
		out := make([]*Node, 0, len(spaces))
		for _, ks := range spaces {
			c := n.child(KindKeyspace, ks.db)
			c.label = "db" + ks.db
			c.Database = ks.db
			c.desc = n.desc.WithDatabase(ks.db)
			c.Meta = map[string]any{"keys": ks.keys}
			if ks.keys > 0 {
				c.description = fmt.Sprintf("%d keys", ks.keys)
			}
			out = append(out, c)
		}
		return out, nil
	case KindKeyspace:
		res, err := n.query(ctx, "KEYS *")
		if err != nil {
			return nil, err
		}
		keys := res.Strings()
		if limit := n.env.Settings().DefaultPageSize; limit > 0 && len(keys) > limit {
			keys = keys[:limit]
		}
		out := make([]*Node, 0, len(keys))
		for _, k := range keys {
			out = append(out, n.child(KindKey, k))
		}
		return out, nil
	}
	return nil, nil
}

type keyspace struct {
	db   string
	keys int
}

// parseKeyspace reads the "# Keyspace" section of INFO, e.g.
// "db0:keys=12,expires=0,avg_ttl=0". An empty report yields the configured
// database (or "0"); a configured database missing from the report is
// prepended.
func parseKeyspace(info, configured string) []keyspace {
	var out []keyspace
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "db")
		if !ok {
			continue
		}
		db, stats, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(db); err != nil {
			continue
		}
		ks := keyspace{db: db}
		for _, kv := range strings.Split(stats, ",") {
			if v, ok := strings.CutPrefix(kv, "keys="); ok {
				ks.keys, _ = strconv.Atoi(v)
			}
		}
		out = append(out, ks)
	}

	if len(out) == 0 {
		if configured == "" {
			configured = "0"
		}
		return []keyspace{{db: configured}}
	}
	if configured != "" {
		for _, ks := range out {
			if ks.db == configured {
				return out
			}
		}
		out = append([]keyspace{{db: configured}}, out...)
	}
	return out
}

// --- search ---

type searchStrategy struct{}

var mappingProperties = jp.MustParseString("$.*.mappings.properties")

func (searchStrategy) children(ctx context.Context, n *Node) ([]*Node, error) {
	switch n.Kind {
	case KindConnection:
		res, err := n.query(ctx, "GET /_cat/indices?format=json")
		if err != nil {
			return nil, err
		}
		out := make([]*Node, 0, len(res.Rows))
		for i := range res.Rows {
			c := n.child(KindIndex, res.String(i, "index"))
			c.Meta = rowMeta(res, i)
			c.description = strings.TrimSpace(res.String(i, "health") + " " + res.String(i, "docs.count"))
			out = append(out, c)
		}
		return out, nil
	case KindIndex:
		res, err := n.query(ctx, "GET /%s/_mapping", n.Name)
		if err != nil {
			return nil, err
		}
		var props map[string]any
		for _, p := range mappingProperties.Get(res.Raw) {
			if m, ok := p.(map[string]any); ok {
				props = m
				break
			}
		}
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make([]*Node, 0, len(names))
		for _, name := range names {
			c := n.child(KindField, name)
			if field, ok := props[name].(map[string]any); ok {
				typ := core.Stringify(field["type"])
				if typ == "" {
					if _, nested := field["properties"]; nested {
						typ = "object"
					}
				}
				c.description = typ
				c.Meta = map[string]any{"type": typ}
			}
			out = append(out, c)
		}
		return out, nil
	}
	return nil, nil
}
