package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [connection...]",
		Short: "Connect and report sessions and SSH tunnels",
		Long: `Connect to the given connections (all of them by default) in parallel
and print their server versions, the open sessions and the SSH tunnels in
use. Connections sharing an SSH hop share one tunnel.`,
		RunE: runStatus,
	}
	cmd.Flags().StringP("format", "f", "", "Output format: table, json, csv, md")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	var descs []core.Descriptor
	if len(args) == 0 {
		if descs, err = cc.Descriptors(ctx); err != nil {
			return err
		}
	} else {
		for _, a := range args {
			d, err := cc.Resolve(ctx, a)
			if err != nil {
				return err
			}
			descs = append(descs, d)
		}
	}

	rows := make([][]any, len(descs))
	var g errgroup.Group
	g.SetLimit(8)
	for i, d := range descs {
		g.Go(func() error {
			if d.Disabled {
				rows[i] = []any{d.Name, d.Type, "disabled", ""}
				return nil
			}
			v, err := cc.Conns.Version(ctx, d)
			if err != nil {
				rows[i] = []any{d.Name, d.Type, core.Describe(err), ""}
				return nil
			}
			rows[i] = []any{d.Name, d.Type, "connected", v}
			return nil
		})
	}
	_ = g.Wait()

	format := formatFlag(cmd, cc.Cfg)
	w := cmd.OutOrStdout()
	conns := &core.Result{Columns: []string{"connection", "type", "status", "version"}, Rows: rows}

	sessions := &core.Result{Columns: []string{"identity", "type", "alive", "tunneled"}}
	for _, s := range cc.Conns.Sessions() {
		sessions.Rows = append(sessions.Rows, []any{s.Identity.String(), s.Type, s.Alive, s.Tunneled})
	}

	tunnels := &core.Result{Columns: []string{"tunnel", "local_port", "refs", "status"}}
	for _, t := range cc.Conns.Tunnels() {
		tunnels.Rows = append(tunnels.Rows, []any{t.Key, t.LocalPort, t.Refs, t.Status.String()})
	}

	if format == "json" {
		return renderJSON(w, map[string]any{
			"connections": rowMaps(conns.Columns, conns.Rows),
			"sessions":    rowMaps(sessions.Columns, sessions.Rows),
			"tunnels":     rowMaps(tunnels.Columns, tunnels.Rows),
		})
	}

	for _, section := range []struct {
		title string
		res   *core.Result
	}{
		{"Connections", conns},
		{"Sessions", sessions},
		{"SSH tunnels", tunnels},
	} {
		_, _ = fmt.Fprintln(w, cc.Styles.Bold.Render(section.title))
		if err := renderResult(w, section.res, format, 0); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
	}
	return nil
}
