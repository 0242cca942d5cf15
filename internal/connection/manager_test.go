package connection

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdb/internal/testutil"
	"github.com/leapstack-labs/leapdb/internal/tunnel"
	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter records its lifecycle. Connect blocks on gate when set and
// ignores ctx so late completions can be exercised.
type fakeAdapter struct {
	gate     chan struct{}
	err      error
	cfg      adapter.Config
	alive    atomic.Bool
	closed   atomic.Bool
	versions atomic.Int32
}

func (f *fakeAdapter) Connect(_ context.Context, cfg adapter.Config) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return f.err
	}
	f.cfg = cfg
	f.alive.Store(true)
	return nil
}

func (f *fakeAdapter) Ping(context.Context) error { return nil }
func (f *fakeAdapter) Query(context.Context, string, ...any) (*core.Result, error) {
	return &core.Result{}, nil
}
func (f *fakeAdapter) Exec(context.Context, string, ...any) error { return nil }
func (f *fakeAdapter) Version(context.Context) (string, error) {
	f.versions.Add(1)
	return "16.2", nil
}
func (f *fakeAdapter) Alive() bool { return f.alive.Load() && !f.closed.Load() }
func (f *fakeAdapter) Close() error {
	f.closed.Store(true)
	return nil
}
func (f *fakeAdapter) Dialect() *dialect.Dialect { return dialect.Lookup("postgres") }

// fakeFactory hands out adapters built by next and counts them.
type fakeFactory struct {
	mu      sync.Mutex
	made    []*fakeAdapter
	next    func() *fakeAdapter
	created atomic.Int32
}

func (f *fakeFactory) factory(adapter.Config, *slog.Logger) (adapter.Adapter, error) {
	f.created.Add(1)
	a := &fakeAdapter{}
	if f.next != nil {
		a = f.next()
	}
	f.mu.Lock()
	f.made = append(f.made, a)
	f.mu.Unlock()
	return a, nil
}

func (f *fakeFactory) last() *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.made[len(f.made)-1]
}

var desc = core.Descriptor{Name: "local", Type: "postgres", Host: "db", Port: 5432, User: "app", Database: "shop"}

func TestGet_ConcurrentCallersConnectOnce(t *testing.T) {
	gate := make(chan struct{})
	ff := &fakeFactory{next: func() *fakeAdapter { return &fakeAdapter{gate: gate} }}
	m := NewManager(testutil.NewTestLogger(t), WithFactory(ff.factory))
	defer func() { _ = m.Close() }()

	const n = 20
	sessions := make([]*Session, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = m.Get(context.Background(), desc)
		}(i)
	}
	require.Eventually(t, func() bool { return ff.created.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, int32(1), ff.created.Load())
}

func TestGet_ReusesAliveSession(t *testing.T) {
	ff := &fakeFactory{}
	m := NewManager(nil, WithFactory(ff.factory))
	ctx := context.Background()

	s1, err := m.Get(ctx, desc)
	require.NoError(t, err)
	s2, err := m.Get(ctx, desc)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	// A different database is a different identity.
	s3, err := m.Get(ctx, desc.WithDatabase("billing"))
	require.NoError(t, err)
	assert.NotSame(t, s1, s3)

	// A dead session is replaced.
	ff.made[0].alive.Store(false)
	s4, err := m.Get(ctx, desc)
	require.NoError(t, err)
	assert.NotSame(t, s1, s4)
	assert.True(t, ff.made[0].closed.Load())
	assert.Equal(t, int32(3), ff.created.Load())
}

func TestGet_TimeoutReportedOnce(t *testing.T) {
	gate := make(chan struct{})
	ff := &fakeFactory{next: func() *fakeAdapter { return &fakeAdapter{gate: gate} }}
	m := NewManager(nil, WithFactory(ff.factory))

	d := desc
	d.ConnectTimeout = 30

	const n = 3
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Get(context.Background(), d)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, core.IsConnectTimeoutErr(err))
		var ce *core.ConnectError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, d.Identity(), ce.Identity)
	}
	assert.Equal(t, int32(1), ff.created.Load())

	// The late success is closed and never registered.
	close(gate)
	late := ff.last()
	require.Eventually(t, late.closed.Load, time.Second, 5*time.Millisecond)
	assert.Empty(t, m.Sessions())
}

func TestGet_ConnectFailureIsWrapped(t *testing.T) {
	ff := &fakeFactory{next: func() *fakeAdapter {
		return &fakeAdapter{err: core.ErrAuthentication}
	}}
	m := NewManager(nil, WithFactory(ff.factory))

	_, err := m.Get(context.Background(), desc)
	require.Error(t, err)
	assert.True(t, core.IsAuthenticationErr(err))
	var ce *core.ConnectError
	assert.ErrorAs(t, err, &ce)
	assert.Empty(t, m.Sessions())
}

func TestGet_CallerCancelDetachesOnlyCaller(t *testing.T) {
	gate := make(chan struct{})
	ff := &fakeFactory{next: func() *fakeAdapter { return &fakeAdapter{gate: gate} }}
	m := NewManager(nil, WithFactory(ff.factory))
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, desc)
		cancelled <- err
	}()
	require.Eventually(t, func() bool { return ff.created.Load() == 1 }, time.Second, 5*time.Millisecond)

	patient := make(chan error, 1)
	go func() {
		_, err := m.Get(context.Background(), desc)
		patient <- err
	}()

	cancel()
	assert.ErrorIs(t, <-cancelled, context.Canceled)

	close(gate)
	assert.NoError(t, <-patient)
	assert.Equal(t, int32(1), ff.created.Load())
}

func TestRemove_ThenGetGivesNewSession(t *testing.T) {
	ff := &fakeFactory{}
	m := NewManager(nil, WithFactory(ff.factory))
	ctx := context.Background()

	s1, err := m.Get(ctx, desc)
	require.NoError(t, err)

	m.Remove(desc.Identity())
	assert.True(t, ff.made[0].closed.Load())

	s2, err := m.Get(ctx, desc)
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, int32(2), ff.created.Load())

	// Removing an unknown identity is a no-op.
	m.Remove("postgres://nobody@nowhere:1/")
}

func TestRemoveAll(t *testing.T) {
	ff := &fakeFactory{}
	m := NewManager(nil, WithFactory(ff.factory))
	ctx := context.Background()

	other := core.Descriptor{Name: "other", Type: "postgres", Host: "db2", Port: 5432}
	_, err := m.Get(ctx, desc)
	require.NoError(t, err)
	_, err = m.Get(ctx, desc.WithDatabase("billing"))
	require.NoError(t, err)
	_, err = m.Get(ctx, other)
	require.NoError(t, err)

	m.RemoveAll(desc.Key())

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, other.Identity(), sessions[0].Identity)
}

func TestReconnect(t *testing.T) {
	ff := &fakeFactory{}
	m := NewManager(nil, WithFactory(ff.factory))
	ctx := context.Background()

	s1, err := m.Get(ctx, desc)
	require.NoError(t, err)
	s2, err := m.Reconnect(ctx, desc)
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.True(t, ff.made[0].closed.Load())
}

func TestVersion_Cached(t *testing.T) {
	ff := &fakeFactory{}
	m := NewManager(nil, WithFactory(ff.factory), WithVersionCacheSize(4))
	ctx := context.Background()

	_, ok := m.CachedVersion(desc.Identity())
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		v, err := m.Version(ctx, desc)
		require.NoError(t, err)
		assert.Equal(t, "16.2", v)
	}
	assert.Equal(t, int32(1), ff.made[0].versions.Load())

	v, ok := m.CachedVersion(desc.Identity())
	assert.True(t, ok)
	assert.Equal(t, "16.2", v)

	m.Remove(desc.Identity())
	_, ok = m.CachedVersion(desc.Identity())
	assert.False(t, ok)
}

// gatedFactory returns a factory whose i-th adapter blocks on gates[i].
func gatedFactory(gates ...chan struct{}) *fakeFactory {
	var n atomic.Int32
	return &fakeFactory{next: func() *fakeAdapter {
		i := int(n.Add(1)) - 1
		if i < len(gates) {
			return &fakeAdapter{gate: gates[i]}
		}
		return &fakeAdapter{}
	}}
}

func openAdapters(ff *fakeFactory) int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	open := 0
	for _, a := range ff.made {
		if a.Alive() {
			open++
		}
	}
	return open
}

func TestRemove_DuringConnect(t *testing.T) {
	tests := []struct {
		name        string
		releaseLast bool // release the overtaken attempt after the new one
	}{
		{name: "overtaken attempt finishes first"},
		{name: "overtaken attempt finishes last", releaseLast: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := make(chan struct{}), make(chan struct{})
			ff := gatedFactory(first, second)
			m := NewManager(testutil.NewTestLogger(t), WithFactory(ff.factory))
			ctx := context.Background()

			type got struct {
				s   *Session
				err error
			}
			a := make(chan got, 1)
			go func() {
				s, err := m.Get(ctx, desc)
				a <- got{s, err}
			}()
			require.Eventually(t, func() bool { return ff.created.Load() == 1 }, time.Second, 5*time.Millisecond)

			m.Remove(desc.Identity())

			b := make(chan got, 1)
			go func() {
				s, err := m.Get(ctx, desc)
				b <- got{s, err}
			}()
			require.Eventually(t, func() bool { return ff.created.Load() == 2 }, time.Second, 5*time.Millisecond)

			var ra, rb got
			if tt.releaseLast {
				close(second)
				rb = <-b
				close(first)
				ra = <-a
			} else {
				close(first)
				ra = <-a
				close(second)
				rb = <-b
			}

			require.NoError(t, rb.err)
			if tt.releaseLast {
				require.NoError(t, ra.err)
				assert.Same(t, rb.s, ra.s, "overtaken caller gets the registered session")
			} else {
				assert.ErrorIs(t, ra.err, ErrRemoved)
			}

			assert.True(t, ff.made[0].closed.Load(), "overtaken session is closed")
			assert.Equal(t, 1, openAdapters(ff))
			require.Len(t, m.Sessions(), 1)

			require.NoError(t, m.Close())
			assert.Zero(t, openAdapters(ff))
		})
	}
}

func TestClose_DuringConnect(t *testing.T) {
	gate := make(chan struct{})
	ff := gatedFactory(gate)
	m := NewManager(nil, WithFactory(ff.factory))

	errs := make(chan error, 1)
	go func() {
		_, err := m.Get(context.Background(), desc)
		errs <- err
	}()
	require.Eventually(t, func() bool { return ff.created.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
	close(gate)

	assert.ErrorIs(t, <-errs, ErrRemoved)
	assert.Empty(t, m.Sessions())
	assert.Zero(t, openAdapters(ff))
}

func TestWithVersionCacheSize_IgnoresNonPositive(t *testing.T) {
	m := NewManager(nil, WithVersionCacheSize(0))
	require.NotNil(t, m.versions)
	m.versions.Add(desc.Identity(), "1")
	v, ok := m.CachedVersion(desc.Identity())
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

type focus string

func (f focus) Key() string { return string(f) }

func TestActive(t *testing.T) {
	m := NewManager(nil)
	assert.Nil(t, m.Active())
	assert.False(t, m.IsActive("a"))

	m.SetActive(focus("a"))
	assert.Equal(t, focus("a"), m.Active())
	assert.True(t, m.IsActive("a"))
	assert.False(t, m.IsActive("b"))
}

type passDialer struct{}

type passClient struct{}

func (passClient) Dial(network, addr string) (net.Conn, error) { return net.Dial(network, addr) }
func (passClient) Close() error { return nil }

func (passDialer) Dial(context.Context, core.SSHConfig) (tunnel.Client, error) {
	return passClient{}, nil
}

type failDialer struct{}

func (failDialer) Dial(context.Context, core.SSHConfig) (tunnel.Client, error) {
	return nil, errors.New("no route to bastion")
}

func TestGet_ThroughTunnel(t *testing.T) {
	ff := &fakeFactory{}
	tunnels := tunnel.NewManager(nil, tunnel.WithDialer(passDialer{}))
	m := NewManager(nil, WithFactory(ff.factory), WithTunnels(tunnels))
	ctx := context.Background()

	d := desc
	d.SSH = &core.SSHConfig{Host: "bastion", User: "deploy"}

	s, err := m.Get(ctx, d)
	require.NoError(t, err)
	cfg := ff.made[0].cfg
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.NotEqual(t, 5432, cfg.Port)

	stats := m.Tunnels()
	require.Len(t, stats, 1)
	assert.Equal(t, cfg.Port, stats[0].LocalPort)
	assert.True(t, m.Sessions()[0].Tunneled)

	m.Remove(s.Identity)
	assert.Empty(t, m.Tunnels())
}

func TestGet_TunnelFailure(t *testing.T) {
	ff := &fakeFactory{}
	tunnels := tunnel.NewManager(nil, tunnel.WithDialer(failDialer{}))
	m := NewManager(nil, WithFactory(ff.factory), WithTunnels(tunnels))

	d := desc
	d.SSH = &core.SSHConfig{Host: "bastion", User: "deploy"}

	_, err := m.Get(context.Background(), d)
	require.Error(t, err)
	assert.True(t, core.IsTransportErr(err))
	assert.Equal(t, int32(0), ff.created.Load())
}

func TestGet_UnknownAdapter(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Get(context.Background(), core.Descriptor{Type: "oracle", Host: "x"})
	require.Error(t, err)
	var unknown *adapter.UnknownAdapterError
	assert.ErrorAs(t, err, &unknown)
}
