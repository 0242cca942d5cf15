package config

import (
	"strings"

	"github.com/leapstack-labs/leapdb/pkg/core"
)

// Default configuration values.
const (
	DefaultPageSize  = 100
	DefaultHost      = "127.0.0.1"
	DefaultStateFile = ".leapdb/state.db"
)

// defaultPorts maps connection types to their usual port.
var defaultPorts = map[string]int{
	"postgres":      5432,
	"mysql":         3306,
	"mariadb":       3306,
	"mssql":         1433,
	"mongodb":       27017,
	"redis":         6379,
	"elasticsearch": 9200,
}

// embedded engines are addressed by file path, not host and port.
var embedded = map[string]bool{
	"sqlite": true,
	"duckdb": true,
}

// ApplySettingsDefaults applies default values to Settings.
func ApplySettingsDefaults(s *Settings) {
	if s == nil {
		return
	}
	if s.DefaultPageSize <= 0 {
		s.DefaultPageSize = DefaultPageSize
	}
}

// ApplyConnectionDefaults applies default values to a descriptor based on its type.
func ApplyConnectionDefaults(d *core.Descriptor) {
	if d == nil {
		return
	}
	d.Type = strings.ToLower(d.Type)
	if embedded[d.Type] {
		return
	}
	if d.Host == "" && d.Socket == "" {
		d.Host = DefaultHost
	}
	if d.Port == 0 && d.Socket == "" {
		d.Port = defaultPorts[d.Type]
	}
	if d.SSH != nil && d.SSH.Auth == "" {
		if d.SSH.PrivateKeyPath != "" {
			d.SSH.Auth = core.SSHAuthPrivateKey
		} else {
			d.SSH.Auth = core.SSHAuthPassword
		}
	}
}

// DefaultPortForType returns the usual port of a connection type, or 0.
func DefaultPortForType(dbType string) int {
	return defaultPorts[strings.ToLower(dbType)]
}

// IsEmbedded reports whether the type is a file-based engine.
func IsEmbedded(dbType string) bool {
	return embedded[strings.ToLower(dbType)]
}
