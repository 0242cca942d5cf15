// Package config provides configuration management for the LeapDB CLI.
//
// This package extends the shared settings from internal/config with the
// CLI-only fields: the config file location, the state database path and
// the output format.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapdb/internal/config"
	"github.com/leapstack-labs/leapdb/pkg/core"
)

// Settings is an alias for the shared explorer settings.
type Settings = sharedcfg.Settings

// Config holds all CLI configuration options.
type Config struct {
	Settings     Settings          `koanf:"settings"`
	Connections  []core.Descriptor `koanf:"connections"`
	StatePath    string            `koanf:"state_path"`
	Verbose      bool              `koanf:"verbose"`
	OutputFormat string            `koanf:"output"`

	// ConfigFile is the file the config was read from, if any.
	ConfigFile string `koanf:"-"`
	// ProjectRoot anchors relative paths.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultStateFile = sharedcfg.DefaultStateFile
	DefaultOutput    = "table"
)

// OutputFormats lists the accepted values of the output option.
var OutputFormats = []string{"table", "json", "csv", "md"}

// Connection returns the configured connection whose name or ID is key.
func (c *Config) Connection(key string) (core.Descriptor, bool) {
	for _, d := range c.Connections {
		if d.Key() == key || d.Name == key {
			return d, true
		}
	}
	return core.Descriptor{}, false
}
