// Package audit persists terminal quorum query outcomes to PostgreSQL as an
// append-only log, for after-the-fact reconciliation of what each chain
// query returned and why.
package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xkanth/quorum-wallet/pkg/models"
)

// Log writes models.QueryOutcome rows to the query_outcomes table.
type Log struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres using connString (a standard libpq DSN).
func Open(ctx context.Context, connString string) (*Log, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("audit: connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ping postgres: %w", err)
	}

	return &Log{pool: pool}, nil
}

// Record appends one outcome to the audit log. Outcomes are deduplicated on
// (chain, kind, address, observed_at) so a redelivered JetStream message is
// a no-op rather than a duplicate row.
func (l *Log) Record(ctx context.Context, outcome models.QueryOutcome) error {
	query := `
		INSERT INTO query_outcomes (
			chain, kind, address, policy, class, value, cause,
			retries, inconsistency_retries, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chain, kind, address, observed_at) DO NOTHING
	`

	_, err := l.pool.Exec(ctx, query,
		outcome.Chain,
		outcome.Kind,
		outcome.Address,
		outcome.Policy,
		outcome.Class,
		outcome.Value,
		outcome.Cause,
		outcome.Retries,
		outcome.InconsistencyRetries,
		outcome.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert outcome: %w", err)
	}

	return nil
}

// Close releases the connection pool.
func (l *Log) Close() {
	l.pool.Close()
}
