// Package query exposes the gateway over HTTP: a health probe and a
// read-only query endpoint.
package query

import "time"

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse is the success body of POST /query.
type QueryResponse struct {
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"rowCount"`
	Fields    []string         `json:"fields"`
	Truncated bool             `json:"truncated,omitempty"`
	ElapsedMS int64            `json:"elapsedMs"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt,omitempty"`
	Message   string    `json:"message,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
