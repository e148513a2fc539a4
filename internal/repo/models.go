package repo

import "time"

// Payment represents a row in the payments table. Rows are append-only:
// the bot inserts them once and never updates or deletes them.
type Payment struct {
	ID          string            `json:"id"`
	Value       float64           `json:"value"`
	Description *string           `json:"description,omitempty"`
	Category    *string           `json:"category,omitempty"`
	PayedAt     time.Time         `json:"payed_at"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
