package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	intconfig "github.com/leapstack-labs/leapdb/internal/config"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"leapdb.yaml", "leapdb.yml"}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"state":     "state_path",
	"page-size": "settings.default_page_size",
}

var (
	k             = koanf.New(".")
	currentConfig *Config
)

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a leapdb config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, the config file, LEAPDB_
// environment variables and explicitly set flags, in increasing precedence.
//
// Nested keys are reached from the environment with a double underscore:
// LEAPDB_SETTINGS__SHOW_VIEW=false sets settings.show_view.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	defaults := intconfig.DefaultSettings()
	if err := k.Load(confmap.Provider(map[string]any{
		"settings.show_view":              defaults.ShowView,
		"settings.show_query":             defaults.ShowQuery,
		"settings.show_procedure":         defaults.ShowProcedure,
		"settings.show_function":          defaults.ShowFunction,
		"settings.show_trigger":           defaults.ShowTrigger,
		"settings.prefer_connection_name": defaults.PreferConnectionName,
		"settings.default_page_size":      defaults.DefaultPageSize,
		"state_path":                      DefaultStateFile,
		"verbose":                         false,
		"output":                          DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// LEAPDB_STATE_PATH -> state_path, LEAPDB_SETTINGS__SHOW_VIEW -> settings.show_view
	if err := k.Load(env.Provider("LEAPDB_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "LEAPDB_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var flagStatePath string
	if flags != nil {
		if flags.Changed("state") {
			if v, _ := flags.GetString("state"); v != "" && v != ":memory:" {
				flagStatePath, _ = filepath.Abs(v)
			}
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = cfgFile
	cfg.ProjectRoot = projectRoot

	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	if !slices.Contains(OutputFormats, cfg.OutputFormat) {
		return nil, fmt.Errorf("invalid output format %q (want one of %s)", cfg.OutputFormat, strings.Join(OutputFormats, ", "))
	}

	intconfig.ApplySettingsDefaults(&cfg.Settings)
	for i := range cfg.Connections {
		d := &cfg.Connections[i]
		intconfig.ApplyConnectionDefaults(d)
		intconfig.ExpandConnectionEnvVars(d)
		if intconfig.IsEmbedded(d.Type) {
			d.Socket = resolvePathRelativeTo(d.Socket, projectRoot)
		}
		if err := intconfig.ValidateConnection(d); err != nil {
			return nil, fmt.Errorf("invalid connection configuration: %w", err)
		}
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetCurrentConfig returns the configuration loaded last, or nil.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
