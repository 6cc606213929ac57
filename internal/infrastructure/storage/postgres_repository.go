package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"DSEReports/internal/domain"
	"DSEReports/internal/ports"
)

const extractionsTable = "metric_extractions"

const schema = `CREATE TABLE IF NOT EXISTS metric_extractions (
	id           BIGSERIAL PRIMARY KEY,
	run_id       UUID        NOT NULL,
	source       TEXT        NOT NULL,
	filename     TEXT        NOT NULL,
	revenue      NUMERIC,
	net_profit   NUMERIC,
	eps          NUMERIC,
	status       TEXT        NOT NULL,
	error        TEXT,
	extracted_at TIMESTAMPTZ NOT NULL
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository keeps the extraction history of every run in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.ExtractionRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects through the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the history table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveRun appends one row per extraction, in a single transaction.
func (r *PostgresRepository) SaveRun(ctx context.Context, runID, source string, extractedAt time.Time, results []domain.Extraction) error {
	if r.db == nil || len(results) == 0 {
		return nil
	}

	query, args, err := buildInsert(runID, source, extractedAt, results)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert extractions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit extractions: %w", err)
	}

	return nil
}

func buildInsert(runID, source string, extractedAt time.Time, results []domain.Extraction) (string, []interface{}, error) {
	insert := psql.Insert(extractionsTable).Columns(
		"run_id", "source", "filename", "revenue", "net_profit", "eps", "status", "error", "extracted_at",
	)

	for _, res := range results {
		var errText sql.NullString
		if res.Err != nil {
			errText = sql.NullString{String: res.Err.Error(), Valid: true}
		}
		insert = insert.Values(
			runID,
			source,
			res.Record.Filename,
			res.Record.Revenue,
			res.Record.NetProfit,
			res.Record.EPS,
			string(res.Status),
			errText,
			extractedAt.UTC(),
		)
	}

	return insert.ToSql()
}
