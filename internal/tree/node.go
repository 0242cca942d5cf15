// Package tree is the lazily expanded, cached hierarchy a front-end browses:
// connections, databases, schemas, object groups, objects and their fields.
//
// Nodes never hold sessions. Each node keeps the descriptor of its
// connection, scoped to its database, and asks the connection manager for a
// session when it needs one. How a node expands depends only on the backend
// family, chosen once when the connection node is built.
package tree

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapdb/internal/config"
	"github.com/leapstack-labs/leapdb/internal/connection"
	"github.com/leapstack-labs/leapdb/internal/state"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	"golang.org/x/sync/singleflight"
)

// Kind identifies what a node represents.
type Kind string

const (
	KindConnection Kind = "connection"
	KindDatabase   Kind = "database"
	KindSchema     Kind = "schema"
	KindGroup      Kind = "group"
	KindTable      Kind = "table"
	KindView       Kind = "view"
	KindProcedure  Kind = "procedure"
	KindFunction   Kind = "function"
	KindTrigger    Kind = "trigger"
	KindQuery      Kind = "query"
	KindColumn     Kind = "column"
	KindCollection Kind = "collection"
	KindKeyspace   Kind = "keyspace"
	KindKey        Kind = "key"
	KindIndex      Kind = "index"
	KindField      Kind = "field"
	KindInfo       Kind = "info"
)

var leafKinds = map[Kind]bool{
	KindProcedure:  true,
	KindFunction:   true,
	KindTrigger:    true,
	KindQuery:      true,
	KindColumn:     true,
	KindCollection: true,
	KindKey:        true,
	KindField:      true,
	KindInfo:       true,
}

// QueryStore lists the saved queries of a connection.
type QueryStore interface {
	SavedQueries(ctx context.Context, connection string) ([]state.SavedQuery, error)
}

// Env is what every node of a tree shares: the connection manager, the
// settings and the hooks of the embedding front-end.
type Env struct {
	Connections *connection.Manager
	Queries     QueryStore

	// Refresh is called with the node whose children changed after a
	// destructive action. Optional.
	Refresh func(*Node)

	logger *slog.Logger

	mu       sync.RWMutex
	settings config.Settings
}

// NewEnv creates the shared environment of a tree.
// If logger is nil, a discard logger is used.
func NewEnv(conns *connection.Manager, settings config.Settings, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	config.ApplySettingsDefaults(&settings)
	return &Env{Connections: conns, settings: settings, logger: logger}
}

// Settings returns the current settings.
func (e *Env) Settings() config.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// SetSettings replaces the settings. Cached children are not invalidated.
func (e *Env) SetSettings(s config.Settings) {
	config.ApplySettingsDefaults(&s)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
}

// Node is one entry of the tree.
type Node struct {
	Kind     Kind
	ID       string
	Name     string
	Family   core.Family
	Database string
	Schema   string
	Meta     map[string]any

	// Err is set on info placeholders standing for a failed expansion.
	Err error

	label       string
	description string

	desc     core.Descriptor
	dialect  *dialect.Dialect
	member   Kind
	parent   *Node
	env      *Env
	strategy strategy

	mu       sync.Mutex
	children []*Node
	gen      uint64 // advanced by Invalidate and refresh; stale loads don't store
	loads    singleflight.Group
}

// New builds one connection node per descriptor.
func New(env *Env, descs []core.Descriptor) []*Node {
	nodes := make([]*Node, 0, len(descs))
	for _, d := range descs {
		nodes = append(nodes, NewConnection(env, d))
	}
	return nodes
}

// NewConnection builds the root node of a saved connection.
func NewConnection(env *Env, d core.Descriptor) *Node {
	dl := dialect.Lookup(d.Type)
	n := &Node{
		Kind:     KindConnection,
		ID:       d.Key(),
		Name:     d.Name,
		Family:   dl.Family,
		Database: d.Database,
		Schema:   d.Schema,
		desc:     d,
		dialect:  dl,
		env:      env,
		strategy: strategyFor(dl.Family),
	}
	n.label, n.description = connectionLabels(d, dl.Family, env.Settings())
	if n.Name == "" {
		n.Name = n.label
	}
	return n
}

// child creates a node below n that inherits its connection scope.
func (n *Node) child(kind Kind, name string) *Node {
	return &Node{
		Kind:     kind,
		ID:       n.ID + "/" + string(kind) + ":" + name,
		Name:     name,
		Family:   n.Family,
		Database: n.Database,
		Schema:   n.Schema,
		label:    name,
		desc:     n.desc,
		dialect:  n.dialect,
		parent:   n,
		env:      n.env,
		strategy: n.strategy,
	}
}

// Key returns the node ID.
func (n *Node) Key() string {
	return n.ID
}

// Label returns the display label.
func (n *Node) Label() string {
	return n.label
}

// Description returns the secondary display text.
func (n *Node) Description() string {
	if n.Kind != KindConnection {
		return n.description
	}
	desc := n.description
	if v, ok := n.env.Connections.CachedVersion(n.desc.Identity()); ok && v != "" {
		desc = strings.TrimSpace(desc + " " + v)
	}
	return desc
}

// Parent returns the parent node, or nil for a connection.
func (n *Node) Parent() *Node {
	return n.parent
}

// Descriptor returns the connection descriptor scoped to this node's database.
func (n *Node) Descriptor() core.Descriptor {
	return n.desc
}

// Dialect returns the dialect of the node's backend.
func (n *Node) Dialect() *dialect.Dialect {
	return n.dialect
}

// Root returns the connection node of n.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Path returns the names from the connection node down to n.
func (n *Node) Path() []string {
	var path []string
	for c := n; c != nil; c = c.parent {
		path = append(path, c.Name)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Expandable reports whether the node can have children.
func (n *Node) Expandable() bool {
	if leafKinds[n.Kind] {
		return false
	}
	return !(n.Kind == KindConnection && n.desc.Disabled)
}

// Session returns the live session for the node's connection scope.
func (n *Node) Session(ctx context.Context) (*connection.Session, error) {
	return n.env.Connections.Get(ctx, n.desc)
}

// Children returns the cached children, computing them on a miss or when
// refresh is set. Concurrent calls share one computation; a refresh never
// joins a computation started before it. A failed computation yields a
// single uncached info node carrying the error.
func (n *Node) Children(ctx context.Context, refresh bool) []*Node {
	if !n.Expandable() {
		return nil
	}
	n.mu.Lock()
	if !refresh && n.children != nil {
		kids := n.children
		n.mu.Unlock()
		return kids
	}
	if refresh {
		n.gen++
	}
	gen := n.gen
	n.mu.Unlock()

	ch := n.loads.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		if !refresh {
			// A load may have finished between the check above and here.
			if kids, ok := n.Cached(); ok {
				return kids, nil
			}
		}
		return n.load(context.WithoutCancel(ctx), gen), nil
	})
	select {
	case <-ctx.Done():
		return []*Node{n.placeholder(ctx.Err())}
	case r := <-ch:
		return r.Val.([]*Node)
	}
}

// load computes the children and caches them unless the cache was
// invalidated or refreshed since gen was read.
func (n *Node) load(ctx context.Context, gen uint64) []*Node {
	kids, err := n.strategy.children(ctx, n)
	if err != nil {
		n.env.logger.Debug("failed to expand node", slog.String("node", n.ID), slog.String("error", err.Error()))
		return []*Node{n.placeholder(err)}
	}
	if kids == nil {
		kids = []*Node{}
	}
	n.mu.Lock()
	if n.gen == gen {
		n.children = kids
	}
	n.mu.Unlock()
	return kids
}

// Cached returns the cached children without any I/O.
func (n *Node) Cached() ([]*Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.children, n.children != nil
}

// Invalidate clears the child cache; with cascade every descendant is
// cleared first.
func (n *Node) Invalidate(cascade bool) {
	if cascade {
		kids, _ := n.Cached()
		for _, k := range kids {
			k.Invalidate(true)
		}
	}
	n.mu.Lock()
	n.children = nil
	n.gen++
	n.mu.Unlock()
}

func (n *Node) placeholder(err error) *Node {
	p := n.child(KindInfo, "error")
	p.label = core.Describe(err)
	p.Err = err
	return p
}
