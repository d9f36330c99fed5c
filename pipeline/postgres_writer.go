package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/DNDmC/mercadolivre-scraper/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresWriter copies products into a table, tagging each row with the
// crawl run that produced it. Absent fields are stored as NULL.
type PostgresWriter struct {
	ctx     context.Context
	pool    *pgxpool.Pool
	table   pgx.Identifier
	runID   string
	mu      sync.Mutex
	written int64
}

var postgresColumns = append([]string{"run_id"}, models.Fields...)

// NewPostgresWriter connects to databaseURL and creates the table if needed.
func NewPostgresWriter(ctx context.Context, databaseURL, table, runID string) (*PostgresWriter, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{
		ctx:   ctx,
		pool:  pool,
		table: pgx.Identifier{table},
		runID: runID,
	}
	if _, err := pool.Exec(ctx, createTableSQL(w.table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create table %s: %w", w.table.Sanitize(), err)
	}
	return w, nil
}

func createTableSQL(table pgx.Identifier) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	brand TEXT,
	name TEXT,
	seller TEXT,
	reviews_rating_number TEXT,
	reviews_amount TEXT,
	old_money TEXT,
	new_money TEXT,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table.Sanitize())
}

func productRows(runID string, products []*models.Product) [][]any {
	rows := make([][]any, 0, len(products))
	for _, product := range products {
		if product == nil {
			continue
		}
		row := make([]any, 0, len(postgresColumns))
		row = append(row, runID)
		for _, v := range product.Values() {
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return rows
}

// Write copies a batch using the COPY protocol.
func (pw *PostgresWriter) Write(products []*models.Product) error {
	rows := productRows(pw.runID, products)
	if len(rows) == 0 {
		return nil
	}

	n, err := pw.pool.CopyFrom(pw.ctx, pw.table, postgresColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy products: %w", err)
	}

	pw.mu.Lock()
	pw.written += n
	pw.mu.Unlock()
	return nil
}

// Close releases the connection pool.
func (pw *PostgresWriter) Close() error {
	pw.pool.Close()
	return nil
}

// Validate checks that this run stored at least one row.
func (pw *PostgresWriter) Validate() error {
	pw.mu.Lock()
	written := pw.written
	pw.mu.Unlock()
	if written <= 0 {
		return fmt.Errorf("no rows written for run %s", pw.runID)
	}
	return nil
}
