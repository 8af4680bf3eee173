package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a billing record. Transitions are
// monotonic: a record never moves backward.
type Status string

const (
	StatusPending Status = "PENDING"
	// StatusInvoiceCreated is reachable in the data model but never assigned
	// by the current pass, which collapses document creation and notification
	// into a single transition.
	StatusInvoiceCreated   Status = "INVOICE_CREATED"
	StatusNotificationSent Status = "NOTIFICATION_SENT"
)

// ParseStatus validates a status supplied by callers (query params, task
// payloads) against the known lifecycle states.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInvoiceCreated, StatusNotificationSent:
		return Status(s), nil
	default:
		return "", fmt.Errorf("billing: unknown status %q", s)
	}
}

// SourceFile mirrors the source_files table. Rows are immutable once stored
// and are never deleted by this package.
type SourceFile struct {
	ID        uuid.UUID
	Path      string
	CreatedAt time.Time
}

// Record mirrors the billing_records table. It carries no JSON annotations so
// it can be reused by different presentation layers.
type Record struct {
	ID           uuid.UUID
	FileID       uuid.UUID
	Name         string `validate:"required"`
	GovernmentID string `validate:"required"`
	Email        string `validate:"required,email"`
	DebtAmount   decimal.Decimal
	DebtDueDate  time.Time
	// DebtID is the business key. Storage enforces its global uniqueness.
	DebtID    uuid.UUID
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Selector identifies which records a workflow pass should advance: all
// records in a status, optionally scoped to one source file.
type Selector struct {
	FileID uuid.UUID
	Status Status
}
