package core

import (
	"fmt"
	"time"
)

// AdapterConfig holds the resolved settings an adapter connects with.
// Host and Port already point at the local tunnel end when SSH is used.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	SSL      *SSLConfig
	Cluster  bool
	Timeout  time.Duration
	Options  map[string]string
	Params   map[string]any
}

// AdapterConfigFrom converts a descriptor into adapter settings.
func AdapterConfigFrom(d Descriptor) AdapterConfig {
	return AdapterConfig{
		Type:     d.Type,
		Path:     d.Socket,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		Username: d.User,
		Password: d.Password,
		Schema:   d.Schema,
		SSL:      d.SSL,
		Cluster:  d.Cluster,
		Timeout:  d.Timeout(),
		Params:   d.Params,
	}
}

// Result is the uniform shape of a backend reply.
// Tabular backends fill Columns and Rows; document and search backends also
// keep the decoded reply in Raw.
type Result struct {
	Columns  []string
	Rows     [][]any
	Affected int64
	Raw      any
}

// ColumnIndex returns the position of a column, or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the value of a named column in a row, or nil.
func (r *Result) Value(row int, column string) any {
	i := r.ColumnIndex(column)
	if i < 0 || row >= len(r.Rows) || i >= len(r.Rows[row]) {
		return nil
	}
	return r.Rows[row][i]
}

// String returns a named column value rendered as a string ("" for NULL).
func (r *Result) String(row int, column string) string {
	return Stringify(r.Value(row, column))
}

// Strings returns the first column of every row as strings.
func (r *Result) Strings() []string {
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		if len(row) == 0 {
			continue
		}
		out = append(out, Stringify(row[0]))
	}
	return out
}

// Stringify renders a scanned value for display.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
