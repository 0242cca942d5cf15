package main

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/leapdb/internal/cli"
	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllBackendsRegistered(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"duckdb", "elasticsearch", "mariadb", "mongodb", "mysql", "postgres", "redis", "sqlite"},
		adapter.ListAdapters())

	_, ok := dialect.Get("mssql")
	assert.True(t, ok, "mssql dialect should be registered")
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	for _, sub := range []string{"conn", "tree", "query", "drop", "truncate", "status", "version"} {
		assert.Contains(t, out, sub)
	}
}
