package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []any
		want    bson.D
		wantErr bool
	}{
		{
			name:    "bare name",
			command: "listCollections",
			want:    bson.D{{Key: "listCollections", Value: 1}},
		},
		{
			name:    "name with value",
			command: "drop",
			args:    []any{"orders"},
			want:    bson.D{{Key: "drop", Value: "orders"}},
		},
		{
			name:    "name with value and pairs",
			command: "listDatabases",
			args:    []any{1, "nameOnly", true},
			want:    bson.D{{Key: "listDatabases", Value: 1}, {Key: "nameOnly", Value: true}},
		},
		{
			name:    "extended json keeps order",
			command: `{"find": "orders", "limit": 10}`,
			want:    bson.D{{Key: "find", Value: "orders"}, {Key: "limit", Value: int32(10)}},
		},
		{name: "empty", command: "  ", wantErr: true},
		{name: "empty document", command: "{}", wantErr: true},
		{name: "bad json", command: "{find", wantErr: true},
		{name: "odd pairs", command: "drop", args: []any{"orders", "comment"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildCommand(tt.command, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToResult(t *testing.T) {
	t.Run("cursor batch", func(t *testing.T) {
		reply := bson.D{
			{Key: "cursor", Value: bson.D{
				{Key: "firstBatch", Value: bson.A{
					bson.D{{Key: "name", Value: "orders"}, {Key: "type", Value: "collection"}},
					bson.D{{Key: "name", Value: "users"}, {Key: "info", Value: "x"}},
				}},
				{Key: "id", Value: int64(0)},
			}},
			{Key: "ok", Value: 1.0},
		}
		res := toResult(reply)
		assert.Equal(t, []string{"name", "type", "info"}, res.Columns)
		assert.Equal(t, []string{"orders", "users"}, res.Strings())
		assert.Nil(t, res.Value(1, "type"))
	})

	t.Run("database list", func(t *testing.T) {
		reply := bson.D{
			{Key: "databases", Value: bson.A{
				bson.D{{Key: "name", Value: "admin"}},
				bson.D{{Key: "name", Value: "shop"}},
			}},
			{Key: "ok", Value: 1.0},
		}
		assert.Equal(t, []string{"admin", "shop"}, toResult(reply).Strings())
	})

	t.Run("scalar reply", func(t *testing.T) {
		reply := bson.D{{Key: "version", Value: "7.0.5"}, {Key: "ok", Value: 1.0}}
		res := toResult(reply)
		assert.Equal(t, "7.0.5", res.String(0, "version"))
	})
}

func TestBuildOptions(t *testing.T) {
	opts, err := buildOptions(adapter.Config{Host: "mongo", Username: "app", Timeout: time.Second}, Params{AuthSource: "admin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mongo:27017"}, opts.Hosts)
	require.NotNil(t, opts.Auth)
	assert.Equal(t, "admin", opts.Auth.AuthSource)
	require.NotNil(t, opts.ServerSelectionTimeout)
	assert.Equal(t, time.Second, *opts.ServerSelectionTimeout)
}

func TestNotConnected(t *testing.T) {
	a := New(nil)
	assert.False(t, a.Alive())
	_, err := a.Query(context.Background(), "ping")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.NoError(t, a.Close())
	assert.Equal(t, core.FamilyDocument, a.Dialect().Family)
}
