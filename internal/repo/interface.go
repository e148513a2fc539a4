package repo

import (
	"context"
	"io/fs"
)

// Store defines the interface for payment persistence.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Payments
	InsertPayment(ctx context.Context, payment Payment) (*Payment, error)
	ListRecentPayments(ctx context.Context, limit int) ([]Payment, error)
}
