package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/leapstack-labs/leapdb/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/redis"
	_ "github.com/leapstack-labs/leapdb/pkg/adapters/sqlite"
)

func TestNewConnCommand(t *testing.T) {
	cmd := NewConnCommand()

	assert.Equal(t, "conn", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	var subs []string
	for _, c := range cmd.Commands() {
		subs = append(subs, c.Name())
	}
	assert.ElementsMatch(t, []string{"add", "list", "rm", "export", "test"}, subs)

	add, _, err := cmd.Find([]string{"add"})
	assert.NoError(t, err)
	for _, flag := range []string{"type", "host", "port", "file", "user", "password", "ask-password",
		"database", "schema", "cluster", "global", "timeout", "ssh-host", "ssh-port", "ssh-user", "ssh-key", "ssh-known-hosts"} {
		assert.NotNil(t, add.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Contains(t, add.Flags().Lookup("type").Usage, "sqlite")

	rm, _, err := cmd.Find([]string{"remove"})
	assert.NoError(t, err)
	assert.Equal(t, "rm", rm.Name())
}

func TestNewTreeCommand(t *testing.T) {
	cmd := NewTreeCommand()

	assert.Equal(t, "tree [connection] [path...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	depth := cmd.Flags().Lookup("depth")
	if assert.NotNil(t, depth) {
		assert.Equal(t, "1", depth.DefValue)
	}
	assert.NotNil(t, cmd.Flags().Lookup("refresh"))
	assert.NotNil(t, cmd.Flags().ShorthandLookup("f"))
}

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()

	assert.Equal(t, "query [COMMAND]", cmd.Use)
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	assert.NotNil(t, cmd.PersistentFlags().ShorthandLookup("c"))
	assert.NotNil(t, cmd.PersistentFlags().ShorthandLookup("d"))
	for _, flag := range []string{"format", "input", "saved"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}

	var subs []string
	for _, c := range cmd.Commands() {
		subs = append(subs, c.Name())
	}
	assert.ElementsMatch(t, []string{"save", "list", "rm"}, subs)
}

func TestNewDestroyCommands(t *testing.T) {
	tests := []struct {
		name string
		cmd  func() string
		want string
	}{
		{"drop", func() string { return NewDropCommand().Use }, "drop <connection> <path...>"},
		{"truncate", func() string { return NewTruncateCommand().Use }, "truncate <connection> <path...>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd())
		})
	}

	cmd := NewDropCommand()
	assert.NotNil(t, cmd.Flags().Lookup("confirm"))
	assert.Error(t, cmd.Args(cmd, []string{"prod"}), "a path is required")
	assert.NoError(t, cmd.Args(cmd, []string{"prod", "shop"}))
}

func TestNewStatusCommand(t *testing.T) {
	cmd := NewStatusCommand()

	assert.Equal(t, "status [connection...]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("format"))
}
