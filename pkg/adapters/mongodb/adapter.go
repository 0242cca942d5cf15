package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	mongodialect "github.com/leapstack-labs/leapdb/pkg/dialects/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Params holds MongoDB-specific configuration.
type Params struct {
	AuthSource       string `mapstructure:"auth_source"`
	ReplicaSet       string `mapstructure:"replica_set"`
	DirectConnection bool   `mapstructure:"direct_connection"`
	SRV              bool   `mapstructure:"srv"`
}

// adminCommands always run against the admin database.
var adminCommands = map[string]bool{
	"listdatabases": true,
	"buildinfo":     true,
	"serverstatus":  true,
	"hostinfo":      true,
	"ping":          true,
}

// Adapter implements the adapter.Adapter interface for MongoDB.
//
// A command is either an extended JSON document such as
// {"find": "orders", "limit": 10}, or a bare command name whose first arg is
// its value and remaining args are key/value pairs: ("drop", "orders").
type Adapter struct {
	client   *mongo.Client
	database string
	cfg      adapter.Config
	logger   *slog.Logger
	closed   atomic.Bool
}

// New creates a new MongoDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{logger: adapter.DiscardLogger(logger)}
}

// Dialect returns the MongoDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return mongodialect.MongoDB
}

// Connect creates the client and pings the primary.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return err
	}
	opts, err := buildOptions(cfg, params)
	if err != nil {
		return err
	}

	a.logger.Debug("connecting to mongodb", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return adapter.Classify(fmt.Errorf("failed to create mongodb client: %w", err))
	}
	a.client = client
	a.cfg = cfg
	a.database = cfg.Database
	if a.database == "" {
		a.database = a.Dialect().DefaultSchema
	}
	a.closed.Store(false)

	if err := a.Ping(ctx); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

func buildOptions(cfg adapter.Config, params Params) (*options.ClientOptions, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	var uri string
	if params.SRV {
		uri = "mongodb+srv://" + host
	} else {
		port := cfg.Port
		if port == 0 {
			port = 27017
		}
		uri = "mongodb://" + net.JoinHostPort(host, strconv.Itoa(port))
	}

	opts := options.Client().ApplyURI(uri)
	if cfg.Timeout > 0 {
		opts.SetConnectTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}
	if cfg.Username != "" {
		cred := options.Credential{Username: cfg.Username, Password: cfg.Password, AuthSource: params.AuthSource}
		opts.SetAuth(cred)
	}
	if params.ReplicaSet != "" {
		opts.SetReplicaSet(params.ReplicaSet)
	}
	if params.DirectConnection {
		opts.SetDirect(true)
	}
	tlsCfg, err := adapter.TLSConfig(cfg.SSL, host)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// Ping checks the primary answers.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.client == nil {
		return adapter.ErrNotConnected
	}
	if err := a.client.Ping(ctx, readpref.Primary()); err != nil {
		return adapter.Classify(fmt.Errorf("failed to ping mongodb: %w", err))
	}
	return nil
}

// Alive reports whether the client is open.
func (a *Adapter) Alive() bool {
	return a.client != nil && !a.closed.Load()
}

// Close disconnects the client.
func (a *Adapter) Close() error {
	if a.client == nil || !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.logger.Debug("closing mongodb connection")
	return a.client.Disconnect(context.Background())
}

// Exec runs a command and discards its reply.
func (a *Adapter) Exec(ctx context.Context, command string, args ...any) error {
	_, err := a.Query(ctx, command, args...)
	return err
}

// Query runs a database command through RunCommand and flattens the reply.
func (a *Adapter) Query(ctx context.Context, command string, args ...any) (*core.Result, error) {
	if a.client == nil {
		return nil, adapter.ErrNotConnected
	}
	cmd, err := buildCommand(command, args...)
	if err != nil {
		return nil, err
	}

	db := a.database
	if adminCommands[strings.ToLower(cmd[0].Key)] {
		db = "admin"
	}

	var reply bson.D
	if err := a.client.Database(db).RunCommand(ctx, cmd).Decode(&reply); err != nil {
		return nil, fmt.Errorf("mongodb %s: %w", cmd[0].Key, err)
	}
	return toResult(reply), nil
}

// Version returns the server version from buildInfo.
func (a *Adapter) Version(ctx context.Context) (string, error) {
	res, err := a.Query(ctx, "buildInfo")
	if err != nil {
		return "", err
	}
	return res.String(0, "version"), nil
}

// buildCommand turns a command line and args into an ordered command document.
func buildCommand(command string, args ...any) (bson.D, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("empty mongodb command")
	}

	var doc bson.D
	var pairs []any
	if strings.HasPrefix(command, "{") {
		if err := bson.UnmarshalExtJSON([]byte(command), false, &doc); err != nil {
			return nil, fmt.Errorf("invalid mongodb command: %w", err)
		}
		if len(doc) == 0 {
			return nil, fmt.Errorf("empty mongodb command")
		}
		pairs = args
	} else {
		name := strings.Fields(command)[0]
		var value any = 1
		if len(args) > 0 {
			value, pairs = args[0], args[1:]
		}
		doc = bson.D{{Key: name, Value: value}}
	}

	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("mongodb command %s: odd number of key/value args", doc[0].Key)
	}
	for i := 0; i < len(pairs); i += 2 {
		doc = append(doc, bson.E{Key: fmt.Sprint(pairs[i]), Value: pairs[i+1]})
	}
	return doc, nil
}

// toResult flattens a command reply: cursor batches and database lists
// become one row per document, anything else a single row.
func toResult(reply bson.D) *core.Result {
	if cursor, ok := lookup(reply, "cursor").(bson.D); ok {
		if batch, ok := lookup(cursor, "firstBatch").(bson.A); ok {
			return documentsResult(batch, reply)
		}
	}
	if dbs, ok := lookup(reply, "databases").(bson.A); ok {
		return documentsResult(dbs, reply)
	}
	return documentsResult(bson.A{reply}, reply)
}

func documentsResult(docs bson.A, raw bson.D) *core.Result {
	res := &core.Result{Raw: raw}
	index := map[string]int{}
	var rows []map[string]any
	for _, d := range docs {
		doc, ok := d.(bson.D)
		if !ok {
			continue
		}
		row := make(map[string]any, len(doc))
		for _, e := range doc {
			if _, seen := index[e.Key]; !seen {
				index[e.Key] = len(res.Columns)
				res.Columns = append(res.Columns, e.Key)
			}
			row[e.Key] = e.Value
		}
		rows = append(rows, row)
	}
	for _, row := range rows {
		values := make([]any, len(res.Columns))
		for k, v := range row {
			values[index[k]] = v
		}
		res.Rows = append(res.Rows, values)
	}
	return res
}

func lookup(d bson.D, key string) any {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
