package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapdb/internal/cli/config"
	intconfig "github.com/leapstack-labs/leapdb/internal/config"
	"github.com/leapstack-labs/leapdb/internal/tree"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/spf13/cobra"
)

// replSession is the state of one interactive query session.
type replSession struct {
	cmd    *cobra.Command
	cc     *CommandContext
	desc   core.Descriptor
	root   *tree.Node
	format string
	last   string
}

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, desc core.Descriptor, format string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	r := &replSession{
		cmd:    cmd,
		cc:     cc,
		desc:   desc,
		root:   tree.NewConnection(cc.Env, desc),
		format: format,
	}

	// Reload settings when the config file is saved.
	if file := cc.Cfg.ConfigFile; file != "" {
		err := intconfig.Watch(ctx, file, cc.Logger, func() {
			cfg, err := config.LoadConfig(file, nil)
			if err != nil {
				cc.Logger.Warn("config reload failed", slog.String("error", err.Error()))
				return
			}
			cc.Env.SetSettings(cfg.Settings)
			r.root.Invalidate(true)
			cc.Logger.Info("config reloaded", slog.String("file", file))
		})
		if err != nil {
			cc.Logger.Warn("config watch disabled", slog.String("error", err.Error()))
		}
	}

	historyFile := filepath.Join(filepath.Dir(cc.Cfg.StatePath), "query_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    r.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "LeapDB query REPL (%s, %s)\n", desc.Key(), desc.Type)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	// Relational statements end with a semicolon; other backends take one
	// command per line.
	multiLine := r.root.Family == core.FamilyRelational
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(r.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := r.dotCommand(ctx, line); quit {
				break
			}
			rl.SetPrompt(r.prompt())
			continue
		}

		buf.WriteString(line)
		if multiLine && !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt("    ...> ")
			continue
		}
		rl.SetPrompt(r.prompt())

		text := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()
		r.last = text

		if err := executeAndRender(ctx, cmd.OutOrStdout(), cc, r.desc, text, r.format); err != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cc.Styles.Error.Render("Error: "+core.Describe(err)))
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

func (r *replSession) prompt() string {
	if r.desc.Database != "" {
		return fmt.Sprintf("%s/%s> ", r.desc.Key(), r.desc.Database)
	}
	return r.desc.Key() + "> "
}

// dotCommand handles a REPL command. It reports whether the REPL should exit.
func (r *replSession) dotCommand(ctx context.Context, line string) bool {
	out, errOut := r.cmd.OutOrStdout(), r.cmd.ErrOrStderr()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".use":
		if arg == "" {
			_, _ = fmt.Fprintln(errOut, "Usage: .use <database>")
			return false
		}
		r.desc = r.desc.WithDatabase(arg)
		r.root = tree.NewConnection(r.cc.Env, r.desc)

	case ".tree":
		depth := 1
		if arg != "" {
			_, _ = fmt.Sscanf(arg, "%d", &depth)
		}
		if err := renderTree(ctx, out, r.cc.Styles, []*tree.Node{r.root}, depth, false); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".format":
		if arg == "" {
			_, _ = fmt.Fprintf(out, "format: %s\n", r.format)
			return false
		}
		r.format = arg

	case ".save":
		if arg == "" || r.last == "" {
			_, _ = fmt.Fprintln(errOut, "Usage: .save <name> (saves the last query)")
			return false
		}
		if _, err := r.cc.Store.SaveQuery(ctx, r.desc.Key(), arg, r.last); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprintf(out, "Saved query %q\n", arg)

	case ".saved":
		queries, err := r.cc.Store.SavedQueries(ctx, r.desc.Key())
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		res := &core.Result{Columns: []string{"name", "query"}}
		for _, q := range queries {
			res.Rows = append(res.Rows, []any{q.Name, q.SQL})
		}
		_ = renderResult(out, res, r.format, 0)

	case ".run":
		text, err := savedQueryText(ctx, r.cc, r.desc, arg)
		if err == nil {
			r.last = text
			err = executeAndRender(ctx, out, r.cc, r.desc, text, r.format)
		}
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %s\n", core.Describe(err))
		}

	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .use <db>       Switch to another database of the connection
  .tree [depth]   Show the connection tree
  .format [fmt]   Show or set the output format (table, json, csv, md)
  .save <name>    Save the last query
  .saved          List saved queries
  .run <name>     Run a saved query
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Other backends run one command per line
  - Use arrow keys to navigate history
  - Tab completion works for object names
`
	_, _ = fmt.Fprintln(w, help)
}

// completionKinds are the node kinds offered by tab completion.
var completionKinds = map[tree.Kind]bool{
	tree.KindTable:      true,
	tree.KindView:       true,
	tree.KindCollection: true,
	tree.KindIndex:      true,
	tree.KindKeyspace:   true,
}

// completer creates a readline completer from the object names of the
// connection tree, limited to the connection's own database.
func (r *replSession) completer(ctx context.Context) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	seen := map[string]bool{}

	var walk func(n *tree.Node, depth int)
	walk = func(n *tree.Node, depth int) {
		if depth > 4 || !n.Expandable() {
			return
		}
		for _, c := range n.Children(ctx, false) {
			if c.Kind == tree.KindInfo {
				continue
			}
			if c.Kind == tree.KindDatabase && r.desc.Database != "" && c.Name != r.desc.Database {
				continue
			}
			if completionKinds[c.Kind] {
				if !seen[c.Name] {
					seen[c.Name] = true
					items = append(items, readline.PcItem(c.Name))
				}
				continue
			}
			walk(c, depth+1)
		}
	}
	walk(r.root, 0)

	for _, dot := range []string{".help", ".use", ".tree", ".format", ".save", ".saved", ".run", ".clear", ".quit", ".exit"} {
		items = append(items, readline.PcItem(dot))
	}
	return readline.NewPrefixCompleter(items...)
}
