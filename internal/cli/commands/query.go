package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/leapdb/internal/cli/output"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Connection string
	Database   string
	Format     string
	Input      string
	Saved      string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [COMMAND]",
		Short: "Run a command against a connection",
		Long: `Run a backend-native command against a connection and print the result.

Commands are passed through unchanged: SQL for relational engines,
space separated commands for Redis, a command name or extended JSON
document for MongoDB and "METHOD /path [body]" for Elasticsearch.

When invoked without a command on a terminal, enters interactive REPL mode.`,
		Example: `  # SQL
  leapdb query -c prod "SELECT * FROM orders LIMIT 10"

  # Redis
  leapdb query -c cache GET session:42

  # MongoDB
  leapdb query -c docs -d shop '{"find": "orders", "limit": 5}'

  # Elasticsearch
  leapdb query -c logs 'POST /orders/_count'

  # Output as JSON
  leapdb query -c prod "SELECT 1" --format json

  # Run a saved query
  leapdb query -c prod --saved "top customers"

  # Interactive mode
  leapdb query -c prod`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Connection, "connection", "c", "", "Connection name (optional when only one exists)")
	cmd.PersistentFlags().StringVarP(&opts.Database, "database", "d", "", "Database to use instead of the connection's")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read the command from file")
	cmd.Flags().StringVarP(&opts.Saved, "saved", "s", "", "Run the saved query with this name")

	cmd.AddCommand(newQuerySaveCommand(opts))
	cmd.AddCommand(newQueryListCommand(opts))
	cmd.AddCommand(newQueryRemoveCommand(opts))

	return cmd
}

// target resolves the connection the query runs against.
func (o *QueryOptions) target(ctx context.Context, cc *CommandContext) (core.Descriptor, error) {
	key := o.Connection
	if key == "" {
		descs, err := cc.Descriptors(ctx)
		if err != nil {
			return core.Descriptor{}, err
		}
		if len(descs) != 1 {
			return core.Descriptor{}, fmt.Errorf("--connection is required (%d connections defined)", len(descs))
		}
		key = descs[0].Key()
	}
	d, err := cc.Resolve(ctx, key)
	if err != nil {
		return core.Descriptor{}, err
	}
	if d.Disabled {
		return core.Descriptor{}, fmt.Errorf("connection %q is disabled", key)
	}
	if o.Database != "" {
		d = d.WithDatabase(o.Database)
	}
	return d, nil
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	desc, err := opts.target(ctx, cc)
	if err != nil {
		return err
	}
	format := opts.Format
	if format == "" {
		format = cc.Cfg.OutputFormat
	}

	var text string
	switch {
	case len(args) > 0:
		text = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		text = string(content)
	case opts.Saved != "":
		text, err = savedQueryText(ctx, cc, desc, opts.Saved)
		if err != nil {
			return err
		}
	case !output.IsTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(content)
	default:
		return runQueryREPL(cmd, cc, desc, format)
	}

	return executeAndRender(ctx, cmd.OutOrStdout(), cc, desc, text, format)
}

func executeAndRender(ctx context.Context, w io.Writer, cc *CommandContext, desc core.Descriptor, text, format string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty command")
	}
	s, err := cc.Conns.Get(ctx, desc)
	if err != nil {
		return err
	}
	res, err := s.Query(ctx, text)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return renderResult(w, res, format, cc.Env.Settings().DefaultPageSize)
}

func savedQueryText(ctx context.Context, cc *CommandContext, desc core.Descriptor, name string) (string, error) {
	queries, err := cc.Store.SavedQueries(ctx, desc.Key())
	if err != nil {
		return "", err
	}
	for _, q := range queries {
		if q.Name == name {
			return q.SQL, nil
		}
	}
	return "", fmt.Errorf("saved query %q not found for %s", name, desc.Key())
}

// newQuerySaveCommand creates the save subcommand.
func newQuerySaveCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name> <command>",
		Short: "Save a query for a connection",
		Long: `Save a named query for a connection. Saved queries of relational
connections appear in the Queries group of every schema in the tree.`,
		Example: `  leapdb query save -c prod "top customers" "SELECT * FROM customers ORDER BY total DESC LIMIT 10"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			desc, err := opts.target(cmd.Context(), cc)
			if err != nil {
				return err
			}
			q, err := cc.Store.SaveQuery(cmd.Context(), desc.Key(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved query %q for %s\n", q.Name, desc.Name)
			return nil
		},
	}
}

// newQueryListCommand creates the list subcommand.
func newQueryListCommand(opts *QueryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the saved queries of a connection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			desc, err := opts.target(cmd.Context(), cc)
			if err != nil {
				return err
			}
			queries, err := cc.Store.SavedQueries(cmd.Context(), desc.Key())
			if err != nil {
				return err
			}
			res := &core.Result{Columns: []string{"name", "query", "created_at"}}
			for _, q := range queries {
				res.Rows = append(res.Rows, []any{q.Name, q.SQL, q.CreatedAt})
			}
			return renderResult(cmd.OutOrStdout(), res, formatFlag(cmd, cc.Cfg), 0)
		},
	}
	cmd.Flags().StringP("format", "f", "", "Output format: table, json, csv, md")
	return cmd
}

// newQueryRemoveCommand creates the rm subcommand.
func newQueryRemoveCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			desc, err := opts.target(cmd.Context(), cc)
			if err != nil {
				return err
			}
			if err := cc.Store.DeleteQuery(cmd.Context(), desc.Key(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted query %q\n", args[0])
			return nil
		},
	}
}
