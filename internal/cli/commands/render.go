package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/sqlchat/internal/gateway"
)

func renderResult(w io.Writer, res *gateway.Result, format string) error {
	switch format {
	case "json":
		return renderJSON(w, res)
	case "csv":
		return renderCSV(w, res)
	default:
		return renderTable(w, res)
	}
}

func renderTable(w io.Writer, res *gateway.Result) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(res.Fields))
	for i, col := range res.Fields {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, result := range res.Rows {
		row := make(table.Row, len(res.Fields))
		for i, col := range res.Fields {
			row[i] = formatValue(result[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	if res.Truncated {
		_, _ = fmt.Fprintf(w, "(%d rows, truncated)\n", res.RowCount)
	} else {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", res.RowCount)
	}
	return nil
}

func renderJSON(w io.Writer, res *gateway.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Rows)
}

func renderCSV(w io.Writer, res *gateway.Result) error {
	_, _ = fmt.Fprintln(w, strings.Join(res.Fields, ","))

	for _, result := range res.Rows {
		values := make([]string, len(res.Fields))
		for i, col := range res.Fields {
			values[i] = escapeCSV(formatValue(result[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
