package domain

import (
	"fmt"
	"strings"
	"time"
)

// DispatchStatus represents the outcome of one step dispatch.
type DispatchStatus string

const (
	DispatchPending     DispatchStatus = "PENDING"
	DispatchSent        DispatchStatus = "SENT"
	DispatchScheduled   DispatchStatus = "SCHEDULED"
	DispatchFailed      DispatchStatus = "FAILED"
	DispatchDelivered   DispatchStatus = "DELIVERED"
	DispatchUndelivered DispatchStatus = "UNDELIVERED"
)

func (s DispatchStatus) String() string { return string(s) }

func (s DispatchStatus) IsValid() bool {
	switch s {
	case DispatchPending, DispatchSent, DispatchScheduled, DispatchFailed,
		DispatchDelivered, DispatchUndelivered:
		return true
	}
	return false
}

// Handled reports whether the step was accepted by the provider, meaning
// a retrying tick must advance instead of dispatching again.
func (s DispatchStatus) Handled() bool {
	switch s {
	case DispatchSent, DispatchScheduled, DispatchDelivered, DispatchUndelivered:
		return true
	}
	return false
}

func ParseDispatchStatusFromString(s string) (DispatchStatus, error) {
	st := DispatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid dispatch status %q", ErrValidation, s)
	}
	return st, nil
}

// DispatchLog is the durable per-step send record. The unique
// (enrollment, step) constraint doubles as the idempotency table: a
// second attempt for a handled step finds the row and skips the provider
// call.
type DispatchLog struct {
	ID                string
	EnrollmentID      string
	Step              int
	DueAt             time.Time
	IdempotencyKey    string
	Status            DispatchStatus
	ProviderMessageID *string
	ScheduledFor      *time.Time
	AttemptCount      int
	LastError         *string
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (d *DispatchLog) Validate() error {
	if strings.TrimSpace(d.EnrollmentID) == "" {
		return fmt.Errorf("%w: enrollment id is required", ErrValidation)
	}
	if d.Step < 0 {
		return fmt.Errorf("%w: step must not be negative", ErrValidation)
	}
	if strings.TrimSpace(d.IdempotencyKey) == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrValidation)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: invalid dispatch status %q", ErrValidation, d.Status)
	}
	return nil
}
