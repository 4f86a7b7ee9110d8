// Package gateway executes model-generated SQL against PostgreSQL behind a
// read-only guard. Statements are validated before a connection is acquired,
// and every acquired connection is released on all exit paths.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

const (
	defaultMaxRows        = 1000
	defaultAcquireTimeout = 5 * time.Second
)

// Config holds connection settings for the gateway pool.
type Config struct {
	// URL, when set, is used as the DSN verbatim and the discrete fields
	// below are ignored.
	URL string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns       int
	MaxIdleConns   int
	AcquireTimeout time.Duration
	MaxRows        int
}

// Result is the tabular outcome of a successful query. Fields preserves the
// column order the database returned, duplicates included. Row order is
// whatever the database produced.
type Result struct {
	Fields    []string         `json:"fields"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"rowCount"`
	Truncated bool             `json:"truncated,omitempty"`
	Elapsed   time.Duration    `json:"-"`
}

// Gateway runs read-only queries through a bounded connection pool.
// It is stateless per call; the pool is the only persistent state.
type Gateway struct {
	db             *sql.DB
	logger         *slog.Logger
	maxRows        int
	acquireTimeout time.Duration
}

// Open connects to PostgreSQL and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := cfg.DSN()

	logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return NewWithDB(db, cfg, logger), nil
}

// NewWithDB wraps an existing pool. Used by tests and by callers that manage
// the *sql.DB lifecycle themselves.
func NewWithDB(db *sql.DB, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}
	return &Gateway{
		db:             db,
		logger:         logger,
		maxRows:        maxRows,
		acquireTimeout: acquireTimeout,
	}
}

// DSN returns the connection string: URL verbatim when set, otherwise a
// key=value string built from the discrete fields.
func (cfg Config) DSN() string {
	if cfg.URL != "" {
		return cfg.URL
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// Execute validates sqlText against the read-only policy and, if it passes,
// runs it on one pooled connection. The connection is released on every exit
// path. Failures surface as *ValidationError, *PolicyViolationError, or
// *QueryError with the driver message intact.
func (g *Gateway) Execute(ctx context.Context, sqlText string) (*Result, error) {
	if err := CheckReadOnly(sqlText); err != nil {
		return nil, err
	}

	// Acquisition gets a short fixed timeout; the query itself runs under
	// the caller's context.
	acquireCtx, cancel := context.WithTimeout(ctx, g.acquireTimeout)
	defer cancel()

	start := time.Now()

	conn, err := g.db.Conn(acquireCtx)
	if err != nil {
		return nil, upstream(err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, upstream(err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, upstream(err)
	}

	results := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if len(results) == g.maxRows {
			truncated = true
			break
		}

		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, upstream(err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			val := values[i]
			// Convert []byte to string for readability
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(err)
	}

	elapsed := time.Since(start)
	g.logger.Debug("query executed",
		slog.Int("rows", len(results)),
		slog.Duration("elapsed", elapsed))

	return &Result{
		Fields:    cols,
		Rows:      results,
		RowCount:  len(results),
		Truncated: truncated,
		Elapsed:   elapsed,
	}, nil
}

// Healthy runs a trivial round-trip query to confirm connectivity.
func (g *Gateway) Healthy(ctx context.Context) error {
	var one int
	if err := g.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return upstream(err)
	}
	return nil
}

// Stats exposes pool statistics, mainly for tests asserting that
// connections are returned.
func (g *Gateway) Stats() sql.DBStats {
	return g.db.Stats()
}

// Close tears down the pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}
