package gateway

import (
	"context"
	"fmt"
	"strings"
)

// Column describes one column of an introspected table.
type Column struct {
	Name string
	Type string
}

// Table describes one introspected table.
type Table struct {
	Name    string
	Columns []Column
}

// Schema lists the public tables and their columns, in ordinal order.
// The result feeds the model session's instruction prompt.
func (g *Gateway) Schema(ctx context.Context) ([]Table, error) {
	query := `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position
	`

	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	for rows.Next() {
		var tableName, colName, colType string
		if err := rows.Scan(&tableName, &colName, &colType); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, Table{Name: tableName})
		}
		t := &tables[len(tables)-1]
		t.Columns = append(t.Columns, Column{Name: colName, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema rows: %w", err)
	}

	return tables, nil
}

// DescribeSchema introspects the schema and renders it for the prompt.
func (g *Gateway) DescribeSchema(ctx context.Context) (string, error) {
	tables, err := g.Schema(ctx)
	if err != nil {
		return "", err
	}
	return DescribeSchema(tables), nil
}

// DescribeSchema renders the introspected schema as one line per table,
// "table(col type, ...)", suitable for inclusion in a prompt.
func DescribeSchema(tables []Table) string {
	var b strings.Builder
	for _, t := range tables {
		b.WriteString(t.Name)
		b.WriteString("(")
		for i, c := range t.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Name)
			b.WriteString(" ")
			b.WriteString(c.Type)
		}
		b.WriteString(")\n")
	}
	return b.String()
}
