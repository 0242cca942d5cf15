package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	intconfig "github.com/leapstack-labs/leapdb/internal/config"
	"github.com/leapstack-labs/leapdb/internal/state"
	"github.com/leapstack-labs/leapdb/internal/tree"
	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewConnCommand creates the conn command and its subcommands.
func NewConnCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage saved connections",
		Long: `Add, list, test, remove and export the connections kept in the state
database. Connections defined in leapdb.yaml are listed too but can only be
changed in the file.`,
	}
	cmd.AddCommand(newConnAddCommand())
	cmd.AddCommand(newConnListCommand())
	cmd.AddCommand(newConnRemoveCommand())
	cmd.AddCommand(newConnExportCommand())
	cmd.AddCommand(newConnTestCommand())
	return cmd
}

// ConnAddOptions holds the flags of conn add.
type ConnAddOptions struct {
	Desc           core.Descriptor
	SSH            core.SSHConfig
	AskPassword    bool
	ConnectTimeout time.Duration
}

func newConnAddCommand() *cobra.Command {
	opts := &ConnAddOptions{}
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a connection",
		Example: `  leapdb conn add prod --type postgres --host db.internal --user app --ask-password
  leapdb conn add cache --type redis --port 6380
  leapdb conn add local --type sqlite --file ./app.db
  leapdb conn add private --type mysql --host 10.0.0.5 --ssh-host bastion --ssh-user deploy --ssh-key ~/.ssh/id_ed25519`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnAdd(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Desc.Type, "type", "", "Backend type: "+strings.Join(adapter.ListAdapters(), ", "))
	f.StringVar(&opts.Desc.Host, "host", "", "Server host")
	f.IntVar(&opts.Desc.Port, "port", 0, "Server port (default depends on type)")
	f.StringVar(&opts.Desc.Socket, "file", "", "Database file for sqlite and duckdb, or a unix socket")
	f.StringVar(&opts.Desc.User, "user", "", "User name")
	f.StringVar(&opts.Desc.Password, "password", "", "Password (prefer --ask-password)")
	f.BoolVar(&opts.AskPassword, "ask-password", false, "Read the password from the terminal")
	f.StringVar(&opts.Desc.Database, "database", "", "Database")
	f.StringVar(&opts.Desc.Schema, "schema", "", "Schema")
	f.BoolVar(&opts.Desc.Cluster, "cluster", false, "Connect to a cluster (redis)")
	f.BoolVar(&opts.Desc.Global, "global", false, "Mark the connection as user-wide")
	f.DurationVar(&opts.ConnectTimeout, "timeout", 0, "Connect timeout (default 5s)")
	f.StringVar(&opts.SSH.Host, "ssh-host", "", "SSH server to tunnel through")
	f.IntVar(&opts.SSH.Port, "ssh-port", 0, "SSH port (default 22)")
	f.StringVar(&opts.SSH.User, "ssh-user", "", "SSH user")
	f.StringVar(&opts.SSH.PrivateKeyPath, "ssh-key", "", "SSH private key file")
	f.StringVar(&opts.SSH.KnownHostsPath, "ssh-known-hosts", "", "known_hosts file to verify the SSH server")
	_ = cmd.MarkFlagRequired("type")

	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListAdapters(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runConnAdd(cmd *cobra.Command, name string, opts *ConnAddOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, ok := cc.Cfg.Connection(name); ok {
		return fmt.Errorf("connection %q is defined in %s", name, cc.Cfg.ConfigFile)
	}

	d := opts.Desc
	d.Name = name
	if opts.ConnectTimeout > 0 {
		d.ConnectTimeout = int(opts.ConnectTimeout.Milliseconds())
	}
	if opts.SSH.Host != "" {
		ssh := opts.SSH
		d.SSH = &ssh
	}
	if opts.AskPassword {
		pw, err := readPassword(cmd, fmt.Sprintf("Password for %s: ", name))
		if err != nil {
			return err
		}
		d.Password = pw
	}

	intconfig.ApplyConnectionDefaults(&d)
	if err := intconfig.ValidateConnection(&d); err != nil {
		return err
	}

	saved, err := cc.Store.SaveConnection(cmd.Context(), d)
	if err != nil {
		return err
	}
	cc.Logger.Debug("connection saved", slog.String("id", saved.ID))
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved connection %s (%s)\n", saved.Descriptor.Name, saved.Descriptor.Type)
	return nil
}

// readPassword reads a password without echo from a terminal, or a line
// from piped input.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, _, err := readLine(cmd.InOrStdin())
	return line, err
}

func newConnListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			saved, err := cc.Store.ListConnections(ctx)
			if err != nil {
				return err
			}
			inStore := make(map[string]bool, len(saved))
			for _, s := range saved {
				inStore[s.Descriptor.Key()] = true
			}

			descs, err := cc.Descriptors(ctx)
			if err != nil {
				return err
			}
			res := &core.Result{Columns: []string{"name", "type", "address", "source"}}
			for _, d := range descs {
				source := "config"
				if inStore[d.Key()] {
					source = "state"
					if d.Global {
						source = "state (global)"
					}
				}
				n := tree.NewConnection(cc.Env, d)
				address := n.Label()
				if address == d.Name {
					address = n.Description()
				}
				res.Rows = append(res.Rows, []any{d.Name, d.Type, address, source})
			}
			return renderResult(cmd.OutOrStdout(), res, formatFlag(cmd, cc.Cfg), 0)
		},
	}
	cmd.Flags().StringP("format", "f", "", "Output format: table, json, csv, md")
	return cmd
}

func newConnRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Delete a saved connection and its saved queries",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, ok := cc.Cfg.Connection(args[0]); ok {
				return fmt.Errorf("connection %q is defined in %s; remove it there", args[0], cc.Cfg.ConfigFile)
			}
			if err := cc.Store.DeleteConnection(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, state.ErrNotFound) {
					return fmt.Errorf("connection %q not found", args[0])
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted connection %s\n", args[0])
			return nil
		},
	}
}

func newConnExportCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved connections as YAML",
		Long: `Write the saved connections in the connections format of leapdb.yaml.
Passwords and key passphrases are left out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			w := cmd.OutOrStdout()
			if file != "" {
				f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return cc.Store.ExportConnections(cmd.Context(), w)
		},
	}
	cmd.Flags().StringVarP(&file, "output-file", "O", "", "Write to file instead of stdout")
	return cmd
}

func newConnTestCommand() *cobra.Command {
	var reconnect bool
	cmd := &cobra.Command{
		Use:   "test <name>",
		Short: "Connect and print the server version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			d, err := cc.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if reconnect {
				if _, err := cc.Conns.Reconnect(ctx, d); err != nil {
					return err
				}
			}
			v, err := cc.Conns.Version(ctx, d)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cc.Styles.Success.Render("Connected to "+d.Name), v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reconnect, "reconnect", false, "Drop any existing session first")
	return cmd
}
