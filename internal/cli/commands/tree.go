package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/leapstack-labs/leapdb/internal/cli/output"
	"github.com/leapstack-labs/leapdb/internal/tree"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TreeOptions holds options for the tree command.
type TreeOptions struct {
	Depth   int
	Refresh bool
	Format  string
}

// NewTreeCommand creates the tree command.
func NewTreeCommand() *cobra.Command {
	opts := &TreeOptions{}
	cmd := &cobra.Command{
		Use:   "tree [connection] [path...]",
		Short: "Browse connections, databases, schemas and objects",
		Long: `Print the object tree of the configured connections.

Without arguments every connection is listed. A path selects a node by
name, for example "prod shop public Tables", and prints its subtree.
Segments match names case-insensitively.`,
		Example: `  # List connections
  leapdb tree

  # Expand a connection two levels deep
  leapdb tree prod --depth 2

  # Show the columns of a table
  leapdb tree prod shop public Tables orders

  # Machine readable
  leapdb tree prod --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 1, "Levels to expand below the selected node")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "Ignore cached children")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json")

	return cmd
}

func runTree(cmd *cobra.Command, args []string, opts *TreeOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	roots, err := cc.Roots(ctx)
	if err != nil {
		return err
	}

	depth := opts.Depth
	nodes := roots
	if len(args) > 0 {
		n, err := tree.Find(ctx, roots, args...)
		if err != nil {
			return err
		}
		nodes = []*tree.Node{n}
	} else if !cmd.Flags().Changed("depth") {
		depth = 0
	}

	if formatFlag(cmd, cc.Cfg) == "json" {
		out := make([]treeJSON, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, toTreeJSON(ctx, n, depth, opts.Refresh))
		}
		return renderJSON(cmd.OutOrStdout(), out)
	}
	return renderTree(ctx, cmd.OutOrStdout(), cc.Styles, nodes, depth, opts.Refresh)
}

var titleCaser = cases.Title(language.English)

// renderTree prints nodes and depth levels of their children as a list.
func renderTree(ctx context.Context, w io.Writer, styles *output.Styles, nodes []*tree.Node, depth int, refresh bool) error {
	if len(nodes) == 0 {
		_, _ = fmt.Fprintln(w, "(no connections)")
		return nil
	}

	l := list.NewWriter()
	l.SetOutputMirror(w)
	l.SetStyle(list.StyleConnectedLight)

	var walk func(n *tree.Node, level int)
	walk = func(n *tree.Node, level int) {
		l.AppendItem(nodeLine(styles, n))
		if level >= depth || !n.Expandable() {
			return
		}
		kids := n.Children(ctx, refresh)
		if len(kids) == 0 {
			return
		}
		l.Indent()
		for _, k := range kids {
			walk(k, level+1)
		}
		l.UnIndent()
	}
	for _, n := range nodes {
		walk(n, 0)
	}

	l.Render()
	return nil
}

func nodeLine(styles *output.Styles, n *tree.Node) string {
	if n.Err != nil {
		return styles.Error.Render(n.Label())
	}
	parts := []string{n.Label()}
	if d := n.Description(); d != "" {
		parts = append(parts, styles.Muted.Render(d))
	}
	if n.Kind != tree.KindGroup {
		parts = append(parts, styles.Muted.Render("["+titleCaser.String(string(n.Kind))+"]"))
	}
	return strings.Join(parts, " ")
}

type treeJSON struct {
	Kind        string     `json:"kind"`
	Name        string     `json:"name"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Error       string     `json:"error,omitempty"`
	Children    []treeJSON `json:"children,omitempty"`
}

func toTreeJSON(ctx context.Context, n *tree.Node, depth int, refresh bool) treeJSON {
	out := treeJSON{
		Kind:        string(n.Kind),
		Name:        n.Name,
		Label:       n.Label(),
		Description: n.Description(),
	}
	if n.Err != nil {
		out.Error = n.Err.Error()
	}
	if depth > 0 && n.Expandable() {
		for _, k := range n.Children(ctx, refresh) {
			out.Children = append(out.Children, toTreeJSON(ctx, k, depth-1, refresh))
		}
	}
	return out
}
