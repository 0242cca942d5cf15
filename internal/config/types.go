// Package config provides the shared configuration types for LeapDB.
// It is decoupled from CLI concerns so the tree and connection layers can
// consume settings without depending on flag parsing.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

// Settings holds the explorer feature flags.
type Settings struct {
	ShowView      bool `koanf:"show_view" yaml:"show_view"`
	ShowQuery     bool `koanf:"show_query" yaml:"show_query"`
	ShowProcedure bool `koanf:"show_procedure" yaml:"show_procedure"`
	ShowFunction  bool `koanf:"show_function" yaml:"show_function"`
	ShowTrigger   bool `koanf:"show_trigger" yaml:"show_trigger"`

	// PreferConnectionName shows the connection name as the label and the
	// host in the description, instead of the other way round.
	PreferConnectionName bool `koanf:"prefer_connection_name" yaml:"prefer_connection_name"`

	// DefaultPageSize caps result rows and key listings.
	DefaultPageSize int `koanf:"default_page_size" yaml:"default_page_size"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		ShowView:        true,
		ShowQuery:       true,
		ShowProcedure:   true,
		ShowFunction:    true,
		ShowTrigger:     true,
		DefaultPageSize: DefaultPageSize,
	}
}

// DefaultSchemaForType returns the default schema for a connection type.
// It looks up the dialect in the registry; if not found, returns "" as fallback.
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok {
		return d.DefaultSchema
	}
	return ""
}

// ValidateConnection checks that a connection descriptor can be opened.
// It uses the adapter registry to determine which types are available.
func ValidateConnection(d *core.Descriptor) error {
	if d.Type == "" {
		return fmt.Errorf("connection %q: type is required", d.Key())
	}
	if !adapter.IsRegistered(strings.ToLower(d.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      d.Type,
			Available: adapter.ListAdapters(),
		}
	}
	if d.SSH != nil && d.SSH.Host != "" && d.SSH.User == "" {
		return fmt.Errorf("connection %q: ssh.user is required when ssh.host is set", d.Key())
	}
	if d.SSH != nil && d.SSH.Auth == core.SSHAuthPrivateKey && d.SSH.PrivateKeyPath == "" {
		return fmt.Errorf("connection %q: ssh.private_key is required for privateKey auth", d.Key())
	}
	return nil
}
