package repo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore provides typed access to the payments table in Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	schema string
}

// NewPostgres opens a new connection pool to the database with the desired search_path.
func NewPostgres(ctx context.Context, databaseURL, schema string, logger *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "repo"),
		schema: schema,
	}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunMigrations applies schema migrations on the connected database.
func (s *PostgresStore) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return ApplyMigrations(ctx, s.pool, filesystem)
}

// InsertPayment appends one payment row and returns it with store-assigned fields.
func (s *PostgresStore) InsertPayment(ctx context.Context, payment Payment) (*Payment, error) {
	dataJSON, err := marshalData(payment.Data)
	if err != nil {
		return nil, err
	}

	const q = `
INSERT INTO payments (value, description, category, payed_at, data)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at;
`
	err = s.pool.QueryRow(ctx, q,
		payment.Value,
		payment.Description,
		payment.Category,
		payment.PayedAt,
		dataJSON,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return &payment, nil
}

// ListRecentPayments returns the latest stored payments, newest first.
func (s *PostgresStore) ListRecentPayments(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT id, value, description, category, payed_at, data, created_at, updated_at
FROM payments
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Value, &p.Description, &p.Category, &p.PayedAt, &p.Data, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}
