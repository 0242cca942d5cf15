// Package connection keeps one live backend session per connection identity.
//
// Sessions are created on demand by Get, shared by every caller asking for
// the same identity, and torn down by Remove. When a descriptor carries an
// SSH hop the manager routes the session through a tunnel.Manager forward.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/leapstack-labs/leapdb/internal/tunnel"
	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"golang.org/x/sync/singleflight"
)

const defaultVersionCacheSize = 128

// ErrRemoved is returned to callers whose connect attempt was overtaken by a
// Remove or Close of the same identity.
var ErrRemoved = errors.New("session removed while connecting")

// Factory creates an unconnected adapter for a config.
type Factory func(cfg adapter.Config, logger *slog.Logger) (adapter.Adapter, error)

// Focused is anything that can hold the focus, usually a tree node.
type Focused interface {
	Key() string
}

// Manager is the registry of live sessions. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[core.Identity]*Session
	active   Focused

	// epochs advance on Remove, resets on Close. An attempt registers its
	// session only if neither moved since it started.
	epochs map[core.Identity]uint64
	resets uint64

	group    singleflight.Group
	tunnels  *tunnel.Manager
	versions *lru.Cache[core.Identity, string]
	factory  Factory
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTunnels sets the tunnel manager used for SSH descriptors.
func WithTunnels(t *tunnel.Manager) Option {
	return func(m *Manager) { m.tunnels = t }
}

// WithFactory replaces the adapter registry lookup.
func WithFactory(f Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithVersionCacheSize bounds the version cache. Sizes below one keep the
// default.
func WithVersionCacheSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.versions = newVersionCache(n)
		}
	}
}

// newVersionCache creates the version LRU. lru.New fails only for a
// non-positive size, which callers rule out.
func newVersionCache(size int) *lru.Cache[core.Identity, string] {
	c, err := lru.New[core.Identity, string](size)
	if err != nil {
		panic(fmt.Sprintf("connection: version cache of size %d: %v", size, err))
	}
	return c
}

// NewManager creates a connection manager.
// If logger is nil, a discard logger is used.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		sessions: make(map[core.Identity]*Session),
		epochs:   make(map[core.Identity]uint64),
		versions: newVersionCache(defaultVersionCacheSize),
		factory:  adapter.NewAdapter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tunnels == nil {
		m.tunnels = tunnel.NewManager(logger)
	}
	return m
}

// Get returns the live session for the descriptor, connecting if there is
// none. Concurrent calls for one identity share a single attempt; cancelling
// ctx detaches only this caller.
func (m *Manager) Get(ctx context.Context, desc core.Descriptor) (*Session, error) {
	id := desc.Identity()
	if s := m.lookup(id); s != nil {
		return s, nil
	}

	ch := m.group.DoChan(string(id), func() (any, error) {
		return m.connect(desc)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Session), nil
	}
}

// lookup returns the session for id if it is alive, dropping a dead one.
func (m *Manager) lookup(id core.Identity) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if s.Alive() {
		m.mu.Unlock()
		return s
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Debug("dropping dead session", slog.String("identity", id.String()))
	m.closeSession(s)
	return nil
}

type outcome struct {
	session *Session
	err     error
}

type epoch struct {
	id     uint64
	resets uint64
}

func (m *Manager) epochLocked(id core.Identity) epoch {
	return epoch{id: m.epochs[id], resets: m.resets}
}

// connect runs one attempt bounded by the descriptor timeout. The timeout and
// the attempt race through a compare-and-swap so exactly one of them reports.
func (m *Manager) connect(desc core.Descriptor) (*Session, error) {
	id := desc.Identity()
	if s := m.lookup(id); s != nil {
		return s, nil
	}
	m.mu.Lock()
	started := m.epochLocked(id)
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Bool
	results := make(chan outcome, 1)
	go func() {
		s, err := m.dial(ctx, desc)
		if !fired.CompareAndSwap(false, true) {
			if err == nil {
				m.logger.Debug("closing session that connected after timeout", slog.String("identity", id.String()))
				m.closeSession(s)
			}
			return
		}
		results <- outcome{s, err}
	}()

	timer := time.NewTimer(desc.Timeout())
	defer timer.Stop()

	var r outcome
	select {
	case r = <-results:
	case <-timer.C:
		if fired.CompareAndSwap(false, true) {
			m.logger.Debug("connect timed out", slog.String("identity", id.String()), slog.Duration("timeout", desc.Timeout()))
			return nil, &core.ConnectError{Identity: id, Err: core.ErrConnectTimeout}
		}
		r = <-results
	}

	if r.err != nil {
		m.logger.Debug("connect failed", slog.String("identity", id.String()), slog.String("error", r.err.Error()))
		return nil, &core.ConnectError{Identity: id, Err: r.err}
	}

	return m.register(id, started, r.session)
}

// register stores s as the session for id unless the attempt that produced
// it was overtaken. A stale or duplicate session is closed; the caller gets
// the registered one, or ErrRemoved when there is none.
func (m *Manager) register(id core.Identity, started epoch, s *Session) (*Session, error) {
	m.mu.Lock()
	current, ok := m.sessions[id]
	var dead *Session
	if ok && !current.Alive() {
		dead, ok = current, false
		delete(m.sessions, id)
	}
	if m.epochLocked(id) == started && !ok {
		m.sessions[id] = s
		m.mu.Unlock()
		if dead != nil {
			m.closeSession(dead)
		}
		m.logger.Debug("session opened", slog.String("identity", id.String()))
		return s, nil
	}
	m.mu.Unlock()

	if dead != nil {
		m.closeSession(dead)
	}
	m.logger.Debug("closing overtaken session", slog.String("identity", id.String()))
	m.closeSession(s)
	if ok {
		return current, nil
	}
	return nil, &core.ConnectError{Identity: id, Err: ErrRemoved}
}

// dial opens the tunnel if any, then the adapter.
func (m *Manager) dial(ctx context.Context, desc core.Descriptor) (*Session, error) {
	cfg := core.AdapterConfigFrom(desc)
	s := &Session{Identity: desc.Identity(), Descriptor: desc}

	if desc.UsingSSH() {
		port, err := m.tunnels.Acquire(ctx, *desc.SSH, desc.Host, desc.Port)
		if err != nil {
			return nil, err
		}
		s.tunnelKey = tunnel.Key(*desc.SSH, desc.Host, desc.Port)
		cfg.Host, cfg.Port, cfg.Path = "127.0.0.1", port, ""
	}

	a, err := m.factory(cfg, m.logger)
	if err == nil {
		err = a.Connect(ctx, cfg)
	}
	if err != nil {
		m.releaseTunnel(s)
		return nil, err
	}
	s.Adapter = a
	return s, nil
}

func (m *Manager) closeSession(s *Session) {
	if s.Adapter != nil {
		if err := s.Adapter.Close(); err != nil {
			m.logger.Debug("error closing session", slog.String("identity", s.Identity.String()), slog.String("error", err.Error()))
		}
	}
	m.releaseTunnel(s)
}

func (m *Manager) releaseTunnel(s *Session) {
	if s.tunnelKey != "" {
		m.tunnels.Release(s.tunnelKey)
		s.tunnelKey = ""
	}
}

// Remove closes the session for id, releases its tunnel and forgets its
// cached version.
func (m *Manager) Remove(id core.Identity) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.epochs[id]++
	m.mu.Unlock()

	m.group.Forget(string(id))
	m.versions.Remove(id)
	if ok {
		m.logger.Debug("removing session", slog.String("identity", id.String()))
		m.closeSession(s)
	}
}

// RemoveAll removes every session opened for the saved connection key,
// whatever database it was scoped to.
func (m *Manager) RemoveAll(connectionKey string) {
	m.mu.Lock()
	var ids []core.Identity
	for id, s := range m.sessions {
		if s.Descriptor.Key() == connectionKey {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
}

// Reconnect drops the session for desc and opens a fresh one.
func (m *Manager) Reconnect(ctx context.Context, desc core.Descriptor) (*Session, error) {
	m.Remove(desc.Identity())
	return m.Get(ctx, desc)
}

// SetActive records the focused node.
func (m *Manager) SetActive(n Focused) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

// Active returns the focused node, or nil.
func (m *Manager) Active() Focused {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// IsActive reports whether the node with key holds the focus.
func (m *Manager) IsActive(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && m.active.Key() == key
}

// Version returns the backend version, asking the backend only on a cache miss.
func (m *Manager) Version(ctx context.Context, desc core.Descriptor) (string, error) {
	id := desc.Identity()
	if v, ok := m.versions.Get(id); ok {
		return v, nil
	}
	s, err := m.Get(ctx, desc)
	if err != nil {
		return "", err
	}
	v, err := s.Adapter.Version(ctx)
	if err != nil {
		return "", err
	}
	m.versions.Add(id, v)
	return v, nil
}

// CachedVersion returns the cached version without any I/O.
func (m *Manager) CachedVersion(id core.Identity) (string, bool) {
	return m.versions.Peek(id)
}

// SessionInfo describes a live session for status output.
type SessionInfo struct {
	Identity core.Identity
	Name     string
	Type     string
	Alive    bool
	Tunneled bool
}

// Sessions returns a snapshot of the live sessions, sorted by identity.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for id, s := range m.sessions {
		out = append(out, SessionInfo{
			Identity: id,
			Name:     s.Descriptor.Name,
			Type:     s.Descriptor.Type,
			Alive:    s.Alive(),
			Tunneled: s.tunnelKey != "",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Tunnels returns a snapshot of the open SSH tunnels.
func (m *Manager) Tunnels() []tunnel.Record {
	return m.tunnels.Stats()
}

// Close closes every session and tunnel.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[core.Identity]*Session)
	m.resets++
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if s.Adapter != nil {
			errs = append(errs, s.Adapter.Close())
		}
		m.releaseTunnel(s)
	}
	m.versions.Purge()
	errs = append(errs, m.tunnels.Close())
	return errors.Join(errs...)
}
