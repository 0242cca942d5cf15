package elasticsearch

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"reason":"no such index [missing]"},"status":404}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"node-1","version":{"number":"8.17.0"},"tagline":"You Know, for Search"}`))
	})
	mux.HandleFunc("/_cat/indices", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"index":"orders","health":"green"},{"index":"logs-2024","health":"yellow"}]`))
	})
	mux.HandleFunc("/orders/_search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_id":"a1","_source":{"sku":"x","qty":2}}]}}`))
	})
	mux.HandleFunc("/secret/_search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func connect(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	a := New(nil)
	require.NoError(t, a.Connect(context.Background(), adapter.Config{Host: host, Port: port}))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		args       []any
		wantMethod string
		wantPath   string
		wantBody   string
		wantErr    bool
	}{
		{name: "get", command: "GET /_cat/indices?format=json", wantMethod: "GET", wantPath: "/_cat/indices?format=json"},
		{name: "lowercase method", command: "get _cluster/health", wantMethod: "GET", wantPath: "/_cluster/health"},
		{
			name:       "body",
			command:    `POST /orders/_search {"size": 5}`,
			wantMethod: "POST",
			wantPath:   "/orders/_search",
			wantBody:   `{"size": 5}`,
		},
		{name: "escaped arg", command: "GET /%s/_mapping", args: []any{"a b"}, wantMethod: "GET", wantPath: "/a%20b/_mapping"},
		{name: "empty", command: "", wantErr: true},
		{name: "no path", command: "GET", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, path, body, err := parseCommand(tt.command, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, method)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestToResult(t *testing.T) {
	t.Run("array of objects", func(t *testing.T) {
		res := toResult([]any{
			map[string]any{"index": "a", "health": "green"},
			map[string]any{"index": "b"},
		})
		assert.Equal(t, []string{"health", "index"}, res.Columns)
		assert.Equal(t, "b", res.String(1, "index"))
		assert.Nil(t, res.Value(1, "health"))
	})

	t.Run("scalars", func(t *testing.T) {
		res := toResult([]any{"a", "b"})
		assert.Equal(t, []string{"value"}, res.Columns)
		assert.Equal(t, []string{"a", "b"}, res.Strings())
	})

	t.Run("nil", func(t *testing.T) {
		res := toResult(nil)
		assert.Empty(t, res.Rows)
	})
}

func TestBuildConfig(t *testing.T) {
	cfg, transport, err := buildConfig(adapter.Config{Username: "elastic"}, Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Addresses)
	assert.True(t, cfg.DisableRetry)
	assert.Nil(t, transport.TLSClientConfig)

	cfg, transport, err = buildConfig(adapter.Config{Host: "es", Port: 9243, SSL: &core.SSLConfig{Enabled: true}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://es:9243"}, cfg.Addresses)
	assert.NotNil(t, transport.TLSClientConfig)

	cfg, _, err = buildConfig(adapter.Config{}, Params{Addresses: []string{"http://a:9200", "http://b:9200"}})
	require.NoError(t, err)
	assert.Len(t, cfg.Addresses, 2)
}

func TestAdapter_EndToEnd(t *testing.T) {
	a := connect(t, newServer(t))
	ctx := context.Background()

	assert.True(t, a.Alive())

	version, err := a.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "8.17.0", version)

	indices, err := a.Query(ctx, "GET /_cat/indices?format=json")
	require.NoError(t, err)
	require.Len(t, indices.Rows, 2)
	assert.Equal(t, "orders", indices.String(0, "index"))

	hits, err := a.Query(ctx, "POST /%s/_search {\"query\":{\"match_all\":{}}}", "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "qty", "sku"}, hits.Columns)
	assert.Equal(t, []string{"a1"}, hits.Strings())

	_, err = a.Query(ctx, "GET /missing/_mapping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such index")

	_, err = a.Query(ctx, "POST /secret/_search")
	assert.ErrorIs(t, err, core.ErrAuthentication)

	require.NoError(t, a.Close())
	assert.False(t, a.Alive())
}

func TestNotConnected(t *testing.T) {
	a := New(nil)
	assert.ErrorIs(t, a.Ping(context.Background()), adapter.ErrNotConnected)
	_, err := a.Query(context.Background(), "GET /")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.Equal(t, core.FamilySearch, a.Dialect().Family)
}
