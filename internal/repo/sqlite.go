package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides access to a local SQLite payment store. It exists for
// single-binary deployments that do not want to run Postgres.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens a new connection to the SQLite database.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLiteStore, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	// Busy timeout and WAL mode are recommended for SQLite concurrency.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "repo_sqlite"),
	}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping ensures the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations applies the SQLite dialect migrations from the embedded filesystem.
func (s *SQLiteStore) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	entries, err := fs.ReadDir(filesystem, "sqlite")
	if err != nil {
		return fmt.Errorf("read sqlite migrations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		sqlBytes, err := fs.ReadFile(filesystem, "sqlite/"+entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// InsertPayment appends one payment row. SQLite has no server-side UUID or jsonb,
// so the id is generated here and data is stored as a JSON string.
func (s *SQLiteStore) InsertPayment(ctx context.Context, payment Payment) (*Payment, error) {
	id := uuid.NewString()
	dataJSON, err := marshalData(payment.Data)
	if err != nil {
		return nil, err
	}

	const q = `
INSERT INTO payments (id, value, description, category, payed_at, data)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, created_at, updated_at;
`
	err = s.db.QueryRowContext(ctx, q,
		id,
		payment.Value,
		payment.Description,
		payment.Category,
		payment.PayedAt.UTC().Format(time.RFC3339),
		dataJSON,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return &payment, nil
}

// ListRecentPayments returns the latest stored payments, newest first.
func (s *SQLiteStore) ListRecentPayments(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT id, value, description, category, payed_at, data, created_at, updated_at
FROM payments
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var (
			p        Payment
			payedAt  sql.NullString
			dataJSON sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Value, &p.Description, &p.Category, &payedAt, &dataJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if payedAt.Valid {
			if t, err := time.Parse(time.RFC3339, payedAt.String); err == nil {
				p.PayedAt = t
			}
		}
		if dataJSON.Valid && dataJSON.String != "" {
			if err := json.Unmarshal([]byte(dataJSON.String), &p.Data); err != nil {
				return nil, fmt.Errorf("decode payment data: %w", err)
			}
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func marshalData(data map[string]string) (*string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode payment data: %w", err)
	}
	s := string(b)
	return &s, nil
}
