package elasticsearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	esdialect "github.com/leapstack-labs/leapdb/pkg/dialects/elasticsearch"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Params holds Elasticsearch-specific configuration.
type Params struct {
	Addresses []string `mapstructure:"addresses"`
	APIKey    string   `mapstructure:"api_key"`
	CloudID   string   `mapstructure:"cloud_id"`
}

var (
	versionPath = jp.MustParseString("$.version.number")
	reasonPath  = jp.MustParseString("$.error.reason")
)

// Adapter implements the adapter.Adapter interface for Elasticsearch.
//
// A command is "METHOD /path [body]". Args fill format verbs in the command;
// string args are path-escaped.
type Adapter struct {
	client    *es.Client
	transport *http.Transport
	cfg       adapter.Config
	logger    *slog.Logger
	closed    atomic.Bool
}

// New creates a new Elasticsearch adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{logger: adapter.DiscardLogger(logger)}
}

// Dialect returns the Elasticsearch dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return esdialect.Elasticsearch
}

// Connect builds the client and pings the cluster.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return err
	}
	esCfg, transport, err := buildConfig(cfg, params)
	if err != nil {
		return err
	}

	a.logger.Debug("connecting to elasticsearch", slog.Any("addresses", esCfg.Addresses))

	client, err := es.NewClient(esCfg)
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	a.client = client
	a.transport = transport
	a.cfg = cfg
	a.closed.Store(false)

	if err := a.Ping(ctx); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

func buildConfig(cfg adapter.Config, params Params) (es.Config, *http.Transport, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 9200
	}

	tlsCfg, err := adapter.TLSConfig(cfg.SSL, host)
	if err != nil {
		return es.Config{}, nil, err
	}
	scheme := "http"
	if tlsCfg != nil {
		scheme = "https"
	}

	addresses := params.Addresses
	if len(addresses) == 0 && params.CloudID == "" {
		addresses = []string{scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}

	return es.Config{
		Addresses:    addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		APIKey:       params.APIKey,
		CloudID:      params.CloudID,
		Transport:    transport,
		DisableRetry: true,
	}, transport, nil
}

// Ping checks the cluster answers.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.client == nil {
		return adapter.ErrNotConnected
	}
	res, err := a.client.Ping(a.client.Ping.WithContext(ctx))
	if err != nil {
		return adapter.Classify(fmt.Errorf("failed to ping elasticsearch: %w", err))
	}
	defer res.Body.Close()
	return statusError(res.StatusCode, nil)
}

// Alive reports whether the client is open.
func (a *Adapter) Alive() bool {
	return a.client != nil && !a.closed.Load()
}

// Close releases idle transport connections.
func (a *Adapter) Close() error {
	if a.client == nil || !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.logger.Debug("closing elasticsearch connection")
	if a.transport != nil {
		a.transport.CloseIdleConnections()
	}
	return nil
}

// Exec performs a request and discards the reply.
func (a *Adapter) Exec(ctx context.Context, command string, args ...any) error {
	_, err := a.Query(ctx, command, args...)
	return err
}

// Query performs a REST request and flattens the JSON reply.
func (a *Adapter) Query(ctx context.Context, command string, args ...any) (*core.Result, error) {
	if a.client == nil {
		return nil, adapter.ErrNotConnected
	}
	method, path, body, err := parseCommand(command, args...)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return nil, fmt.Errorf("invalid elasticsearch request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Perform(req)
	if err != nil {
		return nil, adapter.Classify(fmt.Errorf("elasticsearch %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elasticsearch response: %w", err)
	}

	var parsed any
	if len(bytes.TrimSpace(data)) > 0 {
		if parsed, err = oj.Parse(data); err != nil {
			if resp.StatusCode >= 400 {
				return nil, statusError(resp.StatusCode, nil)
			}
			return &core.Result{Columns: []string{"response"}, Rows: [][]any{{string(data)}}, Raw: string(data)}, nil
		}
	}
	if err := statusError(resp.StatusCode, parsed); err != nil {
		return nil, fmt.Errorf("elasticsearch %s %s: %w", method, path, err)
	}
	return toResult(parsed), nil
}

// Version returns the cluster version number.
func (a *Adapter) Version(ctx context.Context) (string, error) {
	res, err := a.Query(ctx, "GET /")
	if err != nil {
		return "", err
	}
	if v := versionPath.First(res.Raw); v != nil {
		return core.Stringify(v), nil
	}
	return "", fmt.Errorf("elasticsearch did not report a version")
}

func statusError(code int, parsed any) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", core.ErrAuthentication, code)
	}
	if reason := reasonPath.First(parsed); reason != nil {
		return fmt.Errorf("status %d: %s", code, core.Stringify(reason))
	}
	return fmt.Errorf("status %d", code)
}

// parseCommand splits "METHOD /path body" into its parts.
func parseCommand(command string, args ...any) (method, path, body string, err error) {
	if len(args) > 0 {
		escaped := make([]any, len(args))
		for i, arg := range args {
			if s, ok := arg.(string); ok {
				escaped[i] = url.PathEscape(s)
			} else {
				escaped[i] = arg
			}
		}
		command = fmt.Sprintf(command, escaped...)
	}

	command = strings.TrimSpace(command)
	method, rest, _ := strings.Cut(command, " ")
	if method == "" {
		return "", "", "", fmt.Errorf("empty elasticsearch command")
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", "", "", fmt.Errorf("elasticsearch command %q has no path", method)
	}
	path, body, _ = strings.Cut(rest, " ")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.ToUpper(method), path, strings.TrimSpace(body), nil
}

// toResult flattens a reply: arrays of objects and search hits become rows,
// any other object a single row.
func toResult(parsed any) *core.Result {
	res := &core.Result{Raw: parsed}
	switch v := parsed.(type) {
	case []any:
		fillRows(res, v)
	case map[string]any:
		if hits, ok := jp.C("hits").C("hits").First(v).([]any); ok {
			docs := make([]any, 0, len(hits))
			for _, h := range hits {
				hit, ok := h.(map[string]any)
				if !ok {
					continue
				}
				doc := map[string]any{"_id": hit["_id"]}
				if src, ok := hit["_source"].(map[string]any); ok {
					for k, val := range src {
						doc[k] = val
					}
				}
				docs = append(docs, doc)
			}
			fillRows(res, docs)
			return res
		}
		fillRows(res, []any{v})
	case nil:
	default:
		res.Columns = []string{"value"}
		res.Rows = [][]any{{v}}
	}
	return res
}

func fillRows(res *core.Result, items []any) {
	seen := map[string]bool{}
	var columns []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		// _id leads so Strings() lists document ids.
		if (columns[i] == "_id") != (columns[j] == "_id") {
			return columns[i] == "_id"
		}
		return columns[i] < columns[j]
	})
	if len(columns) == 0 {
		columns = []string{"value"}
	}
	res.Columns = columns

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			res.Rows = append(res.Rows, []any{item})
			continue
		}
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = obj[c]
		}
		res.Rows = append(res.Rows, row)
	}
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
