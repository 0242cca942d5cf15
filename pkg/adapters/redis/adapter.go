package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	redisdialect "github.com/leapstack-labs/leapdb/pkg/dialects/redis"
	goredis "github.com/redis/go-redis/v9"
)

// Params holds Redis-specific configuration.
type Params struct {
	// Addrs lists extra seed nodes for cluster mode.
	Addrs    []string `mapstructure:"addrs"`
	PoolSize int      `mapstructure:"pool_size"`
}

// Adapter implements the adapter.Adapter interface for Redis.
// Commands are space separated; extra args are appended verbatim.
type Adapter struct {
	client  goredis.UniversalClient
	cluster *goredis.ClusterClient
	cfg     adapter.Config
	logger  *slog.Logger
	closed  atomic.Bool
}

// New creates a new Redis adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{logger: adapter.DiscardLogger(logger)}
}

// Dialect returns the Redis dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return redisdialect.Redis
}

// Connect creates the client and pings the server.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return err
	}
	opts, err := buildOptions(cfg, params)
	if err != nil {
		return err
	}

	a.logger.Debug("connecting to redis",
		slog.Any("addrs", opts.Addrs),
		slog.Int("db", opts.DB),
		slog.Bool("cluster", cfg.Cluster))

	a.cfg = cfg
	a.closed.Store(false)
	if cfg.Cluster {
		a.cluster = goredis.NewClusterClient(opts.Cluster())
		a.client = a.cluster
	} else {
		a.client = goredis.NewClient(opts.Simple())
	}

	if err := a.Ping(ctx); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

func buildOptions(cfg adapter.Config, params Params) (*goredis.UniversalOptions, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	opts := &goredis.UniversalOptions{
		Addrs:       append([]string{net.JoinHostPort(host, strconv.Itoa(port))}, params.Addrs...),
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.Timeout,
		PoolSize:    params.PoolSize,
		MaxRetries:  -1,
	}
	if cfg.Path != "" {
		opts.Addrs = []string{cfg.Path}
	}
	if !cfg.Cluster && cfg.Database != "" {
		db, err := strconv.Atoi(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("redis database must be a number, got %q", cfg.Database)
		}
		opts.DB = db
	}
	tlsCfg, err := adapter.TLSConfig(cfg.SSL, host)
	if err != nil {
		return nil, err
	}
	opts.TLSConfig = tlsCfg
	return opts, nil
}

// Ping verifies the server answers.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.client == nil {
		return adapter.ErrNotConnected
	}
	if err := a.client.Ping(ctx).Err(); err != nil {
		return adapter.Classify(fmt.Errorf("failed to ping redis: %w", err))
	}
	return nil
}

// Alive reports whether the client is open.
func (a *Adapter) Alive() bool {
	return a.client != nil && !a.closed.Load()
}

// Close closes the client.
func (a *Adapter) Close() error {
	if a.client == nil || !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.logger.Debug("closing redis connection")
	return a.client.Close()
}

// Exec runs a command and discards its reply.
func (a *Adapter) Exec(ctx context.Context, command string, args ...any) error {
	_, err := a.Query(ctx, command, args...)
	return err
}

// Query runs a command. INFO, KEYS, DEL and FLUSHDB go through the typed
// client and work in cluster mode; anything else is sent raw, which a
// cluster rejects with core.ErrUnsupportedOperation.
func (a *Adapter) Query(ctx context.Context, command string, args ...any) (*core.Result, error) {
	if a.client == nil {
		return nil, adapter.ErrNotConnected
	}
	parts := splitCommand(command, args...)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty redis command")
	}

	name := strings.ToUpper(fmt.Sprint(parts[0]))
	rest := parts[1:]
	switch name {
	case "INFO":
		text, err := a.client.Info(ctx, stringArgs(rest)...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis INFO: %w", err)
		}
		return &core.Result{Columns: []string{"info"}, Rows: [][]any{{text}}, Raw: text}, nil
	case "KEYS":
		pattern := "*"
		if len(rest) > 0 {
			pattern = fmt.Sprint(rest[0])
		}
		keys, err := a.keys(ctx, pattern)
		if err != nil {
			return nil, fmt.Errorf("redis KEYS: %w", err)
		}
		return listResult("key", keys), nil
	case "DEL":
		n, err := a.client.Del(ctx, stringArgs(rest)...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis DEL: %w", err)
		}
		return &core.Result{Affected: n}, nil
	case "FLUSHDB":
		if err := a.flushDB(ctx); err != nil {
			return nil, fmt.Errorf("redis FLUSHDB: %w", err)
		}
		return &core.Result{}, nil
	}

	if a.cluster != nil {
		return nil, fmt.Errorf("redis %s in cluster mode: %w", name, core.ErrUnsupportedOperation)
	}
	v, err := a.client.Do(ctx, parts...).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis %s: %w", name, err)
	}
	return toResult(v), nil
}

func (a *Adapter) keys(ctx context.Context, pattern string) ([]string, error) {
	if a.cluster == nil {
		return a.client.Keys(ctx, pattern).Result()
	}
	var (
		mu  sync.Mutex
		all []string
	)
	err := a.cluster.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
		keys, err := node.Keys(ctx, pattern).Result()
		if err != nil {
			return err
		}
		mu.Lock()
		all = append(all, keys...)
		mu.Unlock()
		return nil
	})
	sort.Strings(all)
	return all, err
}

func (a *Adapter) flushDB(ctx context.Context) error {
	if a.cluster == nil {
		return a.client.FlushDB(ctx).Err()
	}
	return a.cluster.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
		return node.FlushDB(ctx).Err()
	})
}

// Version returns redis_version from INFO server.
func (a *Adapter) Version(ctx context.Context) (string, error) {
	if a.client == nil {
		return "", adapter.ErrNotConnected
	}
	text, err := a.client.Info(ctx, "server").Result()
	if err != nil {
		return "", fmt.Errorf("redis INFO server: %w", err)
	}
	return infoField(text, "redis_version"), nil
}

// splitCommand splits a command line on spaces and appends args.
func splitCommand(command string, args ...any) []any {
	fields := strings.Fields(command)
	parts := make([]any, 0, len(fields)+len(args))
	for _, f := range fields {
		parts = append(parts, f)
	}
	return append(parts, args...)
}

func stringArgs(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// infoField returns the value of a "field:value" line of an INFO reply.
func infoField(text, field string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, field+":"); ok {
			return v
		}
	}
	return ""
}

func listResult(column string, vals []string) *core.Result {
	res := &core.Result{Columns: []string{column}, Raw: vals}
	for _, v := range vals {
		res.Rows = append(res.Rows, []any{v})
	}
	return res
}

// toResult shapes a raw reply: arrays become one row per element, maps one
// row per entry, scalars a single row.
func toResult(v any) *core.Result {
	res := &core.Result{Raw: v}
	switch t := v.(type) {
	case []any:
		res.Columns = []string{"value"}
		for _, e := range t {
			res.Rows = append(res.Rows, []any{e})
		}
	case map[any]any:
		res.Columns = []string{"key", "value"}
		keys := make([]string, 0, len(t))
		byKey := make(map[string]any, len(t))
		for k, e := range t {
			ks := fmt.Sprint(k)
			keys = append(keys, ks)
			byKey[ks] = e
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Rows = append(res.Rows, []any{k, byKey[k]})
		}
	default:
		res.Columns = []string{"value"}
		res.Rows = [][]any{{t}}
	}
	return res
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
