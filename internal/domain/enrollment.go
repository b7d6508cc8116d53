package domain

import (
	"fmt"
	"strings"
	"time"
)

// EnrollmentStatus represents the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentPaused    EnrollmentStatus = "paused"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentStopped   EnrollmentStatus = "stopped"
)

func (s EnrollmentStatus) String() string { return string(s) }

func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentActive, EnrollmentPaused, EnrollmentCompleted, EnrollmentStopped:
		return true
	}
	return false
}

// IsLive reports whether the status counts against the one-live-enrollment
// rule for a (contact, campaign) pair.
func (s EnrollmentStatus) IsLive() bool {
	return s == EnrollmentActive || s == EnrollmentPaused
}

// CanTransitionTo enforces the legal transition set. Anything outside it
// must be rejected by callers, not silently written.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentActive:
		return next == EnrollmentActive || next == EnrollmentPaused ||
			next == EnrollmentCompleted || next == EnrollmentStopped
	case EnrollmentPaused:
		return next == EnrollmentActive || next == EnrollmentStopped
	}
	return false
}

func ParseEnrollmentStatusFromString(s string) (EnrollmentStatus, error) {
	st := EnrollmentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid enrollment status %q", ErrValidation, s)
	}
	return st, nil
}

// Enrollment tracks one contact's progress through one campaign's steps.
// It is the unit of mutual exclusion for the tick scheduler: a claim on
// the row guards the in-flight send for the current step.
type Enrollment struct {
	ID         string
	ContactID  string
	CampaignID string
	Cursor     int
	NextDueAt  *time.Time
	Status     EnrollmentStatus
	StartedAt  time.Time
	Claimed    bool
	ClaimedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (e *Enrollment) Validate() error {
	if strings.TrimSpace(e.ContactID) == "" {
		return fmt.Errorf("%w: contact id is required", ErrValidation)
	}
	if strings.TrimSpace(e.CampaignID) == "" {
		return fmt.Errorf("%w: campaign id is required", ErrValidation)
	}
	if e.Cursor < 0 {
		return fmt.Errorf("%w: cursor must not be negative", ErrValidation)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: invalid enrollment status %q", ErrValidation, e.Status)
	}
	return nil
}

// ClaimStale reports whether an existing claim is old enough to be
// considered abandoned and safe to re-acquire.
func (e *Enrollment) ClaimStale(now time.Time, ttl time.Duration) bool {
	if !e.Claimed || e.ClaimedAt == nil {
		return true
	}
	return e.ClaimedAt.Add(ttl).Before(now)
}

// DispatchIdempotencyKey derives the deterministic key for one step
// dispatch. The same (enrollment, cursor, due instant) always yields the
// same key, so a re-attempted tick cannot produce a second provider send.
func DispatchIdempotencyKey(enrollmentID string, cursor int, dueAt time.Time) string {
	return fmt.Sprintf("%s:%d:%d", enrollmentID, cursor, dueAt.UTC().Unix())
}
