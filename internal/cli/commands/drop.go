package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/leapdb/internal/tree"
	"github.com/spf13/cobra"
)

// DestroyOptions holds options for the drop and truncate commands.
type DestroyOptions struct {
	Confirm string
}

// NewDropCommand creates the drop command.
func NewDropCommand() *cobra.Command {
	return newDestroyCommand("drop", "Drop a database, schema, table, collection, key or index",
		func(ctx context.Context, n *tree.Node, c tree.Confirmer) (bool, error) { return n.Drop(ctx, c) })
}

// NewTruncateCommand creates the truncate command.
func NewTruncateCommand() *cobra.Command {
	return newDestroyCommand("truncate", "Empty a schema, table, collection, keyspace or index",
		func(ctx context.Context, n *tree.Node, c tree.Confirmer) (bool, error) { return n.Truncate(ctx, c) })
}

type destroyFunc func(ctx context.Context, n *tree.Node, c tree.Confirmer) (bool, error)

func newDestroyCommand(verb, short string, run destroyFunc) *cobra.Command {
	opts := &DestroyOptions{}
	cmd := &cobra.Command{
		Use:   verb + " <connection> <path...>",
		Short: short,
		Long: fmt.Sprintf(`%s the object at a tree path.

The name of the object must be typed to confirm, case-insensitively. A
mismatch cancels without error. Use --confirm to pass the name when
running non-interactively.`, strings.ToUpper(verb[:1])+verb[1:]),
		Example: fmt.Sprintf(`  leapdb %[1]s prod shop public Tables orders
  leapdb %[1]s cache db0 --confirm 0`, verb),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			n, err := tree.Find(ctx, roots, args...)
			if err != nil {
				return err
			}

			confirmer := promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr(), opts.Confirm, cmd.Flags().Changed("confirm"))
			done, err := run(ctx, n, confirmer)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !done {
				_, _ = fmt.Fprintln(out, cc.Styles.Warning.Render("Confirmation did not match; nothing was changed."))
				return nil
			}
			past := map[string]string{"drop": "Dropped", "truncate": "Truncated"}[verb]
			_, _ = fmt.Fprintf(out, "%s %s %s\n", cc.Styles.Success.Render(past), n.Kind, n.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Confirm, "confirm", "", "Object name typed in advance")
	return cmd
}

// promptConfirmer confirms with a preset answer when one was given, and
// otherwise prompts on out and reads a line from in.
func promptConfirmer(in io.Reader, out io.Writer, preset string, hasPreset bool) tree.Confirmer {
	return tree.ConfirmFunc(func(_ context.Context, prompt string) (string, bool, error) {
		if hasPreset {
			return preset, true, nil
		}
		_, _ = fmt.Fprint(out, prompt+"\n> ")
		line, ok, err := readLine(in)
		return line, ok, err
	})
}

// readLine reads one line. ok is false when the input ended before any text.
func readLine(in io.Reader) (string, bool, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	line = strings.TrimRight(line, "\r\n")
	if errors.Is(err, io.EOF) && line == "" {
		return "", false, nil
	}
	return line, true, nil
}
