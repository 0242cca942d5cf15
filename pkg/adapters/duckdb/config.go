package duckdb

import "github.com/leapstack-labs/leapdb/pkg/adapter"

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`

	// ReadOnly opens the database file in read-only access mode.
	ReadOnly bool `mapstructure:"read_only"`
}

// parseParams decodes descriptor params into Params.
func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if err := adapter.DecodeParams(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}
