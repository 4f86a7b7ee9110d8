package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReadOnlyDenylist(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"drop lowercase", "drop TABLE invoice_raw"},
		{"drop uppercase", "DROP TABLE customers"},
		{"delete", "DELETE FROM invoices WHERE id = 1"},
		{"truncate", "truncate invoices"},
		{"update", "Update invoices SET total = 0"},
		{"insert", "insert INTO invoices VALUES (1)"},
		{"mutation inside select", "SELECT 1; DELETE FROM invoices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReadOnly(tt.sql)
			require.Error(t, err)
			var policyErr *PolicyViolationError
			assert.ErrorAs(t, err, &policyErr)
			assert.Contains(t, err.Error(), "read-only mode")
		})
	}
}

func TestCheckReadOnlyValidation(t *testing.T) {
	for _, sql := range []string{"", "   ", "\n\t"} {
		err := CheckReadOnly(sql)
		require.Error(t, err)
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	}
}

func TestCheckReadOnlyAllowsReads(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"plain select", "SELECT 1 as x"},
		{"trailing semicolon", "SELECT * FROM invoices;"},
		{"leading whitespace", "   \n SELECT total FROM invoices"},
		{"line comment", "-- monthly totals\nSELECT sum(total) FROM invoices"},
		{"block comment", "/* note */ SELECT 1"},
		{"nested block comment", "/* outer /* inner */ still */ SELECT 1"},
		{"cte", "WITH top AS (SELECT * FROM invoices) SELECT * FROM top"},
		{"values", "VALUES (1), (2)"},
		{"keyword inside identifier", "SELECT dropped_at FROM audit"},
		{"keyword without trailing space", "SELECT 'DROP' AS word"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, CheckReadOnly(tt.sql))
		})
	}
}

func TestCheckReadOnlyStatementShape(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"create table", "CREATE TABLE t (id int)"},
		{"alter", "ALTER TABLE invoices ADD COLUMN note text"},
		{"grant", "GRANT ALL ON invoices TO public"},
		{"copy", "COPY invoices TO '/tmp/out.csv'"},
		{"cte hiding create", "WITH x AS (SELECT 1) CREATE TABLE t (id int)"},
		{"two selects", "SELECT 1; SELECT 2"},
		{"cte with no body", "WITH x AS (SELECT 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReadOnly(tt.sql)
			require.Error(t, err)
			var policyErr *PolicyViolationError
			assert.ErrorAs(t, err, &policyErr)
		})
	}
}
