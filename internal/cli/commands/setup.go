package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdb/internal/cli/config"
	"github.com/leapstack-labs/leapdb/internal/cli/output"
	intconfig "github.com/leapstack-labs/leapdb/internal/config"
	"github.com/leapstack-labs/leapdb/internal/connection"
	"github.com/leapstack-labs/leapdb/internal/state"
	"github.com/leapstack-labs/leapdb/internal/tree"
	"github.com/leapstack-labs/leapdb/internal/tunnel"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Store  state.Store
	Conns  *connection.Manager
	Env    *tree.Env
	Styles *output.Styles
}

// NewCommandContext opens the state database and builds the connection
// manager and the tree environment.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	tunnels := tunnel.NewManager(logger)
	conns := connection.NewManager(logger, connection.WithTunnels(tunnels))
	env := tree.NewEnv(conns, cfg.Settings, logger)
	env.Queries = store
	env.Refresh = func(n *tree.Node) {
		logger.Debug("node changed", slog.String("node", n.ID))
	}

	cleanup := func() {
		_ = conns.Close()
		_ = tunnels.Close()
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:    cfg,
		Logger: logger,
		Store:  store,
		Conns:  conns,
		Env:    env,
		Styles: output.StylesFor(cmd.OutOrStdout()),
	}, cleanup, nil
}

// Descriptors returns the connections of the config file followed by the
// saved ones. A saved connection shadowed by a configured one is skipped.
func (c *CommandContext) Descriptors(ctx context.Context) ([]core.Descriptor, error) {
	out := append([]core.Descriptor(nil), c.Cfg.Connections...)
	seen := make(map[string]bool, len(out))
	for _, d := range out {
		seen[d.Key()] = true
		seen[d.Name] = true
	}

	saved, err := c.Store.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range saved {
		if seen[s.Descriptor.Name] || seen[s.Descriptor.Key()] {
			continue
		}
		out = append(out, s.Descriptor)
	}
	return out, nil
}

// Resolve returns the connection named key.
func (c *CommandContext) Resolve(ctx context.Context, key string) (core.Descriptor, error) {
	if d, ok := c.Cfg.Connection(key); ok {
		return d, nil
	}
	saved, err := c.Store.GetConnection(ctx, key)
	if err != nil {
		return core.Descriptor{}, fmt.Errorf("connection %q not found", key)
	}
	return saved.Descriptor, nil
}

// Roots builds one tree per connection.
func (c *CommandContext) Roots(ctx context.Context) ([]*tree.Node, error) {
	descs, err := c.Descriptors(ctx)
	if err != nil {
		return nil, err
	}
	return tree.New(c.Env, descs), nil
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Settings:     intconfig.DefaultSettings(),
		StatePath:    config.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
	}
}

// formatFlag returns the command's --format value, falling back to the
// configured output format.
func formatFlag(cmd *cobra.Command, cfg *config.Config) string {
	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		return f.Value.String()
	}
	return cfg.OutputFormat
}
