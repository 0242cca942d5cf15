package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// Command is an action a front-end can offer on a node.
type Command string

const (
	CommandDrop             Command = "drop"
	CommandTruncate         Command = "truncate"
	CommandNewQuery         Command = "newQuery"
	CommandCopyName         Command = "copyName"
	CommandRefresh          Command = "refresh"
	CommandDeleteConnection Command = "deleteConnection"
	CommandOpenTerminal     Command = "openTerminal"
	CommandShowStatus       Command = "showStatus"
)

// Confirmer asks the user to type the name of the object a destructive
// action targets. ok is false when the user cancelled.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (input string, ok bool, err error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (string, bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (string, bool, error) {
	return f(ctx, prompt)
}

type op func(ctx context.Context) error

// Commands returns the actions available on the node.
func (n *Node) Commands() []Command {
	var cmds []Command
	switch n.Kind {
	case KindConnection:
		cmds = append(cmds, CommandRefresh, CommandNewQuery, CommandShowStatus)
		if n.Family == core.FamilyKeyValue || n.Family == core.FamilyRelational {
			cmds = append(cmds, CommandOpenTerminal)
		}
		cmds = append(cmds, CommandDeleteConnection)
		return cmds
	case KindInfo:
		return nil
	}

	if n.Expandable() {
		cmds = append(cmds, CommandRefresh)
	}
	if n.Kind != KindGroup {
		cmds = append(cmds, CommandNewQuery, CommandCopyName)
	}
	if n.truncateOp() != nil {
		cmds = append(cmds, CommandTruncate)
	}
	if n.dropOp() != nil {
		cmds = append(cmds, CommandDrop)
	}
	return cmds
}

// Drop removes the object after the user typed its name. It reports whether
// the object was dropped; a mismatched or cancelled confirmation is not an error.
func (n *Node) Drop(ctx context.Context, c Confirmer) (bool, error) {
	return n.destroy(ctx, c, "drop", n.dropOp())
}

// Truncate empties the object after the user typed its name.
func (n *Node) Truncate(ctx context.Context, c Confirmer) (bool, error) {
	return n.destroy(ctx, c, "truncate", n.truncateOp())
}

func (n *Node) destroy(ctx context.Context, c Confirmer, verb string, run op) (bool, error) {
	if run == nil {
		return false, fmt.Errorf("%s %s %q: %w", verb, n.Kind, n.Name, core.ErrUnsupportedOperation)
	}
	if err := n.confirm(ctx, c, verb); err != nil {
		if errors.Is(err, core.ErrInvalidConfirmation) {
			return false, nil
		}
		return false, err
	}

	if err := run(ctx); err != nil {
		return false, fmt.Errorf("%s %s %q: %w", verb, n.Kind, n.Name, err)
	}
	n.env.logger.Info(verb+" succeeded",
		slog.String("kind", string(n.Kind)),
		slog.String("name", n.Name),
		slog.String("connection", n.Root().ID))

	n.Invalidate(true)
	target := n
	if n.parent != nil {
		target = n.parent
		n.parent.Invalidate(false)
	}
	if n.env.Refresh != nil {
		n.env.Refresh(target)
	}
	return true, nil
}

func (n *Node) confirm(ctx context.Context, c Confirmer, verb string) error {
	prompt := fmt.Sprintf("Type the name of the %s to %s: %s", n.Kind, verb, n.Name)
	input, ok, err := c.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok || !strings.EqualFold(strings.TrimSpace(input), n.Name) {
		return core.ErrInvalidConfirmation
	}
	return nil
}

// exec returns an op running one command on the session of scope.
func exec(scope *Node, command string, args ...any) op {
	if command == "" {
		return nil
	}
	return func(ctx context.Context) error {
		s, err := scope.Session(ctx)
		if err != nil {
			return err
		}
		return s.Exec(ctx, command, args...)
	}
}

func (n *Node) dropOp() op {
	d := n.dialect
	switch n.Family {
	case core.FamilyRelational:
		switch n.Kind {
		case KindDatabase:
			return exec(n.parent, d.DropDatabase(n.Name))
		case KindSchema:
			return exec(n, d.DropSchema(n.Name))
		case KindTable:
			return exec(n, d.DropTable(n.Schema, n.Name))
		}
	case core.FamilyDocument:
		switch n.Kind {
		case KindDatabase:
			return exec(n, "dropDatabase")
		case KindCollection:
			return exec(n, "drop", n.Name)
		}
	case core.FamilyKeyValue:
		if n.Kind == KindKey {
			return exec(n, "DEL", n.Name)
		}
	case core.FamilySearch:
		if n.Kind == KindIndex {
			return exec(n, "DELETE /%s", n.Name)
		}
	}
	return nil
}

func (n *Node) truncateOp() op {
	d := n.dialect
	switch n.Family {
	case core.FamilyRelational:
		switch n.Kind {
		case KindSchema:
			if d.Catalog.TruncateDatabase == "" {
				return nil
			}
			return n.truncateSchema
		case KindTable:
			return exec(n, d.TruncateTable(n.Schema, n.Name))
		}
	case core.FamilyDocument:
		if n.Kind == KindCollection {
			deleteAll := []any{map[string]any{"q": map[string]any{}, "limit": 0}}
			return exec(n, "delete", n.Name, "deletes", deleteAll)
		}
	case core.FamilyKeyValue:
		if n.Kind == KindKeyspace {
			return exec(n, "FLUSHDB")
		}
	case core.FamilySearch:
		if n.Kind == KindIndex {
			return exec(n, `POST /%s/_delete_by_query {"query":{"match_all":{}}}`, n.Name)
		}
	}
	return nil
}

// truncateSchema asks the backend for one TRUNCATE statement per table and
// runs them in order.
func (n *Node) truncateSchema(ctx context.Context) error {
	s, err := n.Session(ctx)
	if err != nil {
		return err
	}
	res, err := s.Query(ctx, n.dialect.Catalog.TruncateDatabase, n.Name)
	if err != nil {
		return err
	}
	for i := range res.Rows {
		stmt := res.String(i, "stmt")
		if stmt == "" {
			continue
		}
		if err := s.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CopyName returns the name of the object as it should be written in a
// query: quoted by the dialect and qualified with its schema.
func (n *Node) CopyName() string {
	switch n.Kind {
	case KindTable, KindView, KindProcedure, KindFunction, KindTrigger:
		if n.Family == core.FamilyRelational {
			return n.dialect.Qualify(n.Schema, n.Name)
		}
	case KindConnection, KindGroup, KindInfo:
		return n.Name
	}
	return n.dialect.Quote(n.Name)
}

// NewQuery returns a starter query for the node and a file name for it.
func (n *Node) NewQuery() (text, fileName string) {
	limit := n.env.Settings().DefaultPageSize
	var ext string
	switch n.Family {
	case core.FamilyDocument:
		ext = ".json"
		switch n.Kind {
		case KindCollection:
			text = fmt.Sprintf(`{"find": %q, "limit": %d}`, n.Name, limit)
		default:
			text = `{"listCollections": 1, "nameOnly": true}`
		}
	case core.FamilyKeyValue:
		ext = ".redis"
		switch n.Kind {
		case KindKey:
			text = "TYPE " + n.Name
		default:
			text = "KEYS *"
		}
	case core.FamilySearch:
		ext = ".es"
		switch n.Kind {
		case KindIndex, KindField:
			index := n.Name
			if n.Kind == KindField {
				index = n.parent.Name
			}
			text = fmt.Sprintf(`POST /%s/_search {"query":{"match_all":{}},"size":%d}`, index, limit)
		default:
			text = "GET /_cat/indices?format=json"
		}
	default:
		ext = ".sql"
		switch n.Kind {
		case KindTable, KindView:
			text = n.dialect.SelectPage(n.Schema, n.Name, limit)
		case KindQuery:
			text = core.Stringify(n.Meta["sql"])
		default:
			text = fmt.Sprintf("-- %s\n", strings.Join(n.Path(), " / "))
		}
	}

	base := n.Root().Name
	if n.Kind != KindConnection {
		base += "-" + n.Name
	}
	return text, sanitizeFileName(base) + ext
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFileName(s string) string {
	s = unsafeFileChars.ReplaceAllString(filepath.Base(s), "_")
	return strings.Trim(s, "_")
}

// Activate gives the node the focus.
func (n *Node) Activate() {
	n.env.Connections.SetActive(n)
}

// IconKey names the icon of the node; the focused node gets "-active".
func (n *Node) IconKey() string {
	key := string(n.Kind)
	switch n.Kind {
	case KindConnection:
		key = "connection-" + strings.ToLower(n.desc.Type)
	case KindGroup:
		key = "group-" + string(n.member)
	case KindColumn:
		if strings.Contains(core.Stringify(n.Meta["key"]), "PRI") {
			key = "column-primary"
		}
	}
	if n.env.Connections.IsActive(n.ID) {
		key += "-active"
	}
	return key
}
