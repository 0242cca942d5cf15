// Package tunnel keeps local SSH port forwards, one per remote endpoint,
// shared by reference count.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// Status is the lifecycle state of a tunnel.
type Status int

const (
	StatusConnecting Status = iota
	StatusOpen
	StatusClosed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Key returns the endpoint key of a tunnel: sshUser@sshHost:sshPort->remoteHost:remotePort.
func Key(cfg core.SSHConfig, remoteHost string, remotePort int) string {
	return fmt.Sprintf("%s@%s->%s", cfg.User, cfg.Address(), net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)))
}

type record struct {
	key       string
	remote    string
	localPort int
	refs      int
	waiters   int
	status    Status
	err       error
	ready     chan struct{}
	listener  net.Listener
	client    Client
}

// Record is a snapshot of one tunnel.
type Record struct {
	Key       string
	LocalPort int
	Refs      int
	Status    Status
}

// Manager owns the active tunnels. It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	records map[string]*record
	dialer  Dialer
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the SSH dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// NewManager creates a tunnel manager.
// If logger is nil, a discard logger is used.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		records: make(map[string]*record),
		dialer:  SSHDialer{Logger: logger},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns the local port forwarding to remoteHost:remotePort through
// the SSH server, opening the tunnel if needed. Every successful Acquire must
// be paired with a Release of Key(cfg, remoteHost, remotePort).
func (m *Manager) Acquire(ctx context.Context, cfg core.SSHConfig, remoteHost string, remotePort int) (int, error) {
	key := Key(cfg, remoteHost, remotePort)

	for {
		m.mu.Lock()
		rec, ok := m.records[key]
		if !ok {
			rec = &record{
				key:    key,
				remote: net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)),
				status: StatusConnecting,
				ready:  make(chan struct{}),
			}
			m.records[key] = rec
			go m.open(rec, cfg)
		} else if rec.status == StatusOpen {
			rec.refs++
			port := rec.localPort
			m.mu.Unlock()
			return port, nil
		}
		rec.waiters++
		ready := rec.ready
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			m.mu.Lock()
			rec.waiters--
			m.closeIfUnused(rec)
			m.mu.Unlock()
			return 0, ctx.Err()
		case <-ready:
		}

		m.mu.Lock()
		rec.waiters--
		switch {
		case rec.status == StatusFailed:
			err := rec.err
			m.mu.Unlock()
			return 0, err
		case rec.status != StatusOpen || m.records[key] != rec:
			// Torn down between open and our wake-up.
			m.mu.Unlock()
			continue
		}
		rec.refs++
		port := rec.localPort
		m.mu.Unlock()
		return port, nil
	}
}

// open allocates the local listener and performs the SSH handshake. It runs
// detached from any caller so one caller giving up does not fail the others.
func (m *Manager) open(rec *record, cfg core.SSHConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()

	m.logger.Debug("opening ssh tunnel", slog.String("tunnel", rec.key))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	var client Client
	if err == nil {
		client, err = m.dialer.Dial(ctx, cfg)
		if err != nil {
			_ = ln.Close()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.logger.Debug("ssh tunnel failed", slog.String("tunnel", rec.key), slog.String("error", err.Error()))
		rec.status = StatusFailed
		rec.err = fmt.Errorf("%w: ssh %s: %w", core.ErrTransport, cfg.Address(), err)
		if m.records[rec.key] == rec {
			delete(m.records, rec.key)
		}
		close(rec.ready)
		return
	}

	rec.listener = ln
	rec.client = client
	rec.localPort = ln.Addr().(*net.TCPAddr).Port
	rec.status = StatusOpen
	close(rec.ready)
	go m.serve(rec)

	if m.records[rec.key] != rec {
		m.teardown(rec)
		return
	}
	m.closeIfUnused(rec)
}

func (m *Manager) serve(rec *record) {
	for {
		local, err := rec.listener.Accept()
		if err != nil {
			return
		}
		go m.forward(rec, local)
	}
}

func (m *Manager) forward(rec *record, local net.Conn) {
	remote, err := rec.client.Dial("tcp", rec.remote)
	if err != nil {
		m.logger.Debug("tunnel forward failed", slog.String("tunnel", rec.key), slog.String("error", err.Error()))
		_ = local.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	pipe := func(dst, src net.Conn) {
		defer wg.Done()
		_, _ = io.Copy(dst, src)
		_ = dst.Close()
		_ = src.Close()
	}
	go pipe(remote, local)
	go pipe(local, remote)
	wg.Wait()
}

// Release drops one reference to the tunnel and closes it at zero.
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.status != StatusOpen {
		return
	}
	if rec.refs > 0 {
		rec.refs--
	}
	m.closeIfUnused(rec)
}

// closeIfUnused must be called with m.mu held.
func (m *Manager) closeIfUnused(rec *record) {
	if rec.status == StatusOpen && rec.refs == 0 && rec.waiters == 0 {
		m.teardown(rec)
	}
}

// teardown must be called with m.mu held.
func (m *Manager) teardown(rec *record) {
	if m.records[rec.key] == rec {
		delete(m.records, rec.key)
	}
	if rec.status != StatusOpen {
		return
	}
	rec.status = StatusClosed
	m.logger.Debug("closing ssh tunnel", slog.String("tunnel", rec.key))
	var errs []error
	if rec.listener != nil {
		errs = append(errs, rec.listener.Close())
	}
	if rec.client != nil {
		errs = append(errs, rec.client.Close())
	}
	if err := errors.Join(errs...); err != nil && !errors.Is(err, net.ErrClosed) {
		m.logger.Debug("error closing ssh tunnel", slog.String("tunnel", rec.key), slog.String("error", err.Error()))
	}
}

// Stats returns a snapshot of the tunnels, sorted by key.
func (m *Manager) Stats() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, Record{Key: rec.key, LocalPort: rec.localPort, Refs: rec.refs, Status: rec.status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close tears down every open tunnel.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		m.teardown(rec)
	}
	return nil
}
