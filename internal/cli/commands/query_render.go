package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdb/pkg/core"
)

// renderResult writes a result set in the given format. Rows beyond limit
// are cut (limit <= 0 keeps everything).
func renderResult(w io.Writer, res *core.Result, format string, limit int) error {
	if len(res.Columns) == 0 {
		if format == "json" {
			return renderJSON(w, map[string]any{"affected": res.Affected})
		}
		_, _ = fmt.Fprintf(w, "(%d rows affected)\n", res.Affected)
		return nil
	}

	rows := res.Rows
	truncated := false
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		truncated = true
	}

	var err error
	switch format {
	case "json":
		err = renderJSON(w, rowMaps(res.Columns, rows))
	case "csv":
		err = renderCSV(w, res.Columns, rows)
	case "md", "markdown":
		err = renderMarkdown(w, res.Columns, rows)
	default:
		err = renderTable(w, res.Columns, rows)
	}
	if err == nil && truncated && format != "json" && format != "csv" {
		_, _ = fmt.Fprintf(w, "(showing first %d of %d rows)\n", limit, len(res.Rows))
	}
	return err
}

func rowMaps(cols []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			if i < len(r) {
				m[col] = jsonValue(r[i])
			}
		}
		out = append(out, m)
	}
	return out
}

// jsonValue converts []byte to string for readability.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func renderTable(w io.Writer, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i := range cols {
			row[i] = formatValue(cell(r, i))
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderCSV(w io.Writer, cols []string, rows [][]any) error {
	_, _ = fmt.Fprintln(w, strings.Join(cols, ","))
	for _, r := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			values[i] = escapeCSV(formatValue(cell(r, i)))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			values[i] = strings.ReplaceAll(formatValue(cell(r, i)), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func cell(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return core.Stringify(v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
