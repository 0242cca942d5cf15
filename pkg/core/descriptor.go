package core

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultConnectTimeout bounds a connect attempt when the descriptor sets none.
const DefaultConnectTimeout = 5 * time.Second

// Descriptor describes one saved connection.
// It is the input to identity derivation and to the connection manager.
type Descriptor struct {
	ID   string `koanf:"id" json:"id,omitempty" yaml:"id,omitempty"`
	Name string `koanf:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Type string `koanf:"type" json:"type" yaml:"type"` // dialect name: postgres, mysql, sqlite, duckdb, mongodb, redis, elasticsearch

	Host   string `koanf:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port   int    `koanf:"port" json:"port,omitempty" yaml:"port,omitempty"`
	Socket string `koanf:"socket" json:"socket,omitempty" yaml:"socket,omitempty"` // unix socket or file path for embedded engines

	User     string `koanf:"user" json:"user,omitempty" yaml:"user,omitempty"`
	Password string `koanf:"password" json:"password,omitempty" yaml:"password,omitempty"`

	Database string `koanf:"database" json:"database,omitempty" yaml:"database,omitempty"`
	Schema   string `koanf:"schema" json:"schema,omitempty" yaml:"schema,omitempty"`

	SSL     *SSLConfig `koanf:"ssl" json:"ssl,omitempty" yaml:"ssl,omitempty"`
	Cluster bool       `koanf:"cluster" json:"cluster,omitempty" yaml:"cluster,omitempty"`
	SSH     *SSHConfig `koanf:"ssh" json:"ssh,omitempty" yaml:"ssh,omitempty"`

	// ConnectTimeout in milliseconds. Zero means DefaultConnectTimeout.
	ConnectTimeout int `koanf:"connect_timeout" json:"connectTimeout,omitempty" yaml:"connect_timeout,omitempty"`

	// Disabled connections are listed but never expanded.
	Disabled bool `koanf:"disabled" json:"disabled,omitempty" yaml:"disabled,omitempty"`

	// Global marks a connection stored in user scope rather than project scope.
	Global bool `koanf:"global" json:"global,omitempty" yaml:"global,omitempty"`

	// Params holds adapter-specific settings (decoded by each adapter).
	Params map[string]any `koanf:"params" json:"params,omitempty" yaml:"params,omitempty"`
}

// SSLConfig holds TLS settings for a connection.
type SSLConfig struct {
	Enabled  bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	CAPath   string `koanf:"ca" json:"ca,omitempty" yaml:"ca,omitempty"`
	CertPath string `koanf:"cert" json:"cert,omitempty" yaml:"cert,omitempty"`
	KeyPath  string `koanf:"key" json:"key,omitempty" yaml:"key,omitempty"`
}

// SSHAuthMethod selects how the SSH client authenticates.
type SSHAuthMethod string

// Supported SSH authentication methods.
const (
	SSHAuthPassword   SSHAuthMethod = "password"
	SSHAuthPrivateKey SSHAuthMethod = "privateKey"
)

// SSHConfig describes the SSH hop used to reach a backend.
type SSHConfig struct {
	Host           string        `koanf:"host" json:"host" yaml:"host"`
	Port           int           `koanf:"port" json:"port,omitempty" yaml:"port,omitempty"`
	User           string        `koanf:"user" json:"user" yaml:"user"`
	Auth           SSHAuthMethod `koanf:"auth" json:"auth,omitempty" yaml:"auth,omitempty"`
	Password       string        `koanf:"password" json:"password,omitempty" yaml:"password,omitempty"`
	PrivateKeyPath string        `koanf:"private_key" json:"privateKey,omitempty" yaml:"private_key,omitempty"`
	Passphrase     string        `koanf:"passphrase" json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	KnownHostsPath string        `koanf:"known_hosts" json:"knownHosts,omitempty" yaml:"known_hosts,omitempty"`
	ConnectTimeout int           `koanf:"connect_timeout" json:"connectTimeout,omitempty" yaml:"connect_timeout,omitempty"`
}

// Address returns host:port of the SSH server, defaulting the port to 22.
func (s *SSHConfig) Address() string {
	port := s.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

// Timeout returns the SSH handshake timeout.
func (s *SSHConfig) Timeout() time.Duration {
	if s.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return time.Duration(s.ConnectTimeout) * time.Millisecond
}

// Key returns the stable key of the saved connection: its ID, or its name,
// or the identity when neither is set.
func (d Descriptor) Key() string {
	switch {
	case d.ID != "":
		return d.ID
	case d.Name != "":
		return d.Name
	default:
		return string(d.Identity())
	}
}

// Timeout returns the connect timeout as a duration.
func (d Descriptor) Timeout() time.Duration {
	if d.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return time.Duration(d.ConnectTimeout) * time.Millisecond
}

// UsingSSH reports whether the connection is routed through an SSH tunnel.
func (d Descriptor) UsingSSH() bool {
	return d.SSH != nil && d.SSH.Host != ""
}

// Endpoint returns the host:port the backend listens on, as seen from the
// SSH server when tunneling.
func (d Descriptor) Endpoint() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// WithDatabase returns a copy of the descriptor scoped to another database.
func (d Descriptor) WithDatabase(database string) Descriptor {
	d.Database = database
	return d
}

// Identity is the stable key of a live session. Two descriptors with the same
// identity share exactly one session.
type Identity string

// Identity derives the session identity from the transport coordinates:
// type, host or socket, port, user, database, schema and the SSH hop.
func (d Descriptor) Identity() Identity {
	var b strings.Builder
	b.WriteString(strings.ToLower(d.Type))
	b.WriteString("://")
	if d.User != "" {
		b.WriteString(d.User)
		b.WriteString("@")
	}
	if d.Socket != "" {
		b.WriteString(d.Socket)
	} else {
		fmt.Fprintf(&b, "%s:%d", d.Host, d.Port)
	}
	b.WriteString("/")
	b.WriteString(d.Database)
	if d.Schema != "" {
		b.WriteString("/")
		b.WriteString(d.Schema)
	}
	if d.UsingSSH() {
		fmt.Fprintf(&b, "?ssh=%s@%s", d.SSH.User, d.SSH.Address())
	}
	return Identity(b.String())
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	return string(i)
}
