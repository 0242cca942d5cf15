package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/redis"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/sqlite"
)

const fixture = `
state_path: data/state.db
output: json
settings:
  show_view: false
  prefer_connection_name: true
connections:
  - name: prod
    type: Postgres
    host: db.internal
    user: app
    password: ${TEST_LEAPDB_PASSWORD}
    ssh:
      host: bastion
      user: deploy
      private_key: ~/.ssh/id_ed25519
  - name: cache
    type: redis
  - name: local
    type: sqlite
    socket: local.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "leapdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	t.Setenv("TEST_LEAPDB_PASSWORD", "secret")
	path := writeConfig(t, fixture)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	dir := filepath.Dir(path)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "data", "state.db"), cfg.StatePath)
	assert.Equal(t, "json", cfg.OutputFormat)

	assert.False(t, cfg.Settings.ShowView)
	assert.True(t, cfg.Settings.ShowTrigger, "unset flags keep their defaults")
	assert.True(t, cfg.Settings.PreferConnectionName)
	assert.Equal(t, 100, cfg.Settings.DefaultPageSize)

	require.Len(t, cfg.Connections, 3)
	prod := cfg.Connections[0]
	assert.Equal(t, "postgres", prod.Type)
	assert.Equal(t, 5432, prod.Port)
	assert.Equal(t, "secret", prod.Password)
	require.NotNil(t, prod.SSH)
	assert.Equal(t, "privateKey", string(prod.SSH.Auth))

	cache, ok := cfg.Connection("cache")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1", cache.Host)
	assert.Equal(t, 6379, cache.Port)

	local, ok := cfg.Connection("local")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "local.db"), local.Socket)
	assert.Zero(t, local.Port)

	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.True(t, filepath.IsAbs(cfg.StatePath))
	assert.Equal(t, ".leapdb", filepath.Base(filepath.Dir(cfg.StatePath)))
	assert.True(t, cfg.Settings.ShowView)
	assert.Empty(t, cfg.Connections)
}

func TestLoadConfig_FindsFileUpward(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "output: csv\n")
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.OutputFormat)
	assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
}

func TestLoadConfig_Precedence(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "output: json\nsettings:\n  default_page_size: 20\n")
	t.Setenv("LEAPDB_OUTPUT", "csv")
	t.Setenv("LEAPDB_SETTINGS__SHOW_VIEW", "false")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "")
	flags.Int("page-size", 0, "")
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--page-size", "5", "--state", "other.db"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.OutputFormat, "env overrides file when flag is not set")
	assert.False(t, cfg.Settings.ShowView)
	assert.Equal(t, 5, cfg.Settings.DefaultPageSize, "flag overrides file")

	abs, _ := filepath.Abs("other.db")
	assert.Equal(t, abs, cfg.StatePath, "flag paths are relative to the working directory")

	require.NoError(t, flags.Parse([]string{"--output", "md"}))
	cfg, err = LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "md", cfg.OutputFormat, "flag overrides env")
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{"bad output", "output: xml\n", "invalid output format"},
		{"unknown type", "connections:\n  - name: x\n    type: oracle\n", "unknown adapter type"},
		{"missing type", "connections:\n  - name: x\n", "type is required"},
		{"ssh without user", "connections:\n  - name: x\n    type: postgres\n    ssh:\n      host: b\n", "ssh.user is required"},
		{"bad yaml", "output: [\n", "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	l := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), l)
	assert.Same(t, l, GetLogger(ctx))
}
