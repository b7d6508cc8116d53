package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEnrollmentStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to EnrollmentStatus
		want     bool
	}{
		{EnrollmentActive, EnrollmentActive, true},
		{EnrollmentActive, EnrollmentCompleted, true},
		{EnrollmentActive, EnrollmentStopped, true},
		{EnrollmentActive, EnrollmentPaused, true},
		{EnrollmentPaused, EnrollmentActive, true},
		{EnrollmentPaused, EnrollmentStopped, true},
		{EnrollmentPaused, EnrollmentCompleted, false},
		{EnrollmentCompleted, EnrollmentActive, false},
		{EnrollmentCompleted, EnrollmentStopped, false},
		{EnrollmentStopped, EnrollmentActive, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestEnrollmentStatusIsLive(t *testing.T) {
	t.Parallel()

	if !EnrollmentActive.IsLive() || !EnrollmentPaused.IsLive() {
		t.Fatal("active and paused are live states")
	}
	if EnrollmentCompleted.IsLive() || EnrollmentStopped.IsLive() {
		t.Fatal("terminal states are not live")
	}
}

func TestParseEnrollmentStatusFromString(t *testing.T) {
	t.Parallel()

	status, err := ParseEnrollmentStatusFromString("  Active ")
	if err != nil {
		t.Fatalf("ParseEnrollmentStatusFromString() error = %v", err)
	}
	if status != EnrollmentActive {
		t.Fatalf("status = %s, want active", status)
	}

	if _, err := ParseEnrollmentStatusFromString("running"); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestEnrollmentValidate(t *testing.T) {
	t.Parallel()

	e := Enrollment{ContactID: "c1", CampaignID: "cam1", Status: EnrollmentActive}
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	e.Cursor = -1
	if err := e.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want validation error for negative cursor", err)
	}

	e = Enrollment{CampaignID: "cam1", Status: EnrollmentActive}
	if err := e.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want validation error for missing contact", err)
	}
}

func TestClaimStale(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ttl := 2 * time.Minute

	unclaimed := Enrollment{}
	if !unclaimed.ClaimStale(now, ttl) {
		t.Fatal("an unclaimed enrollment is always claimable")
	}

	fresh := now.Add(-time.Minute)
	claimed := Enrollment{Claimed: true, ClaimedAt: &fresh}
	if claimed.ClaimStale(now, ttl) {
		t.Fatal("a fresh claim is not stale")
	}

	old := now.Add(-3 * time.Minute)
	abandoned := Enrollment{Claimed: true, ClaimedAt: &old}
	if !abandoned.ClaimStale(now, ttl) {
		t.Fatal("a claim past its TTL is stale")
	}
}

func TestDispatchIdempotencyKeyIsDeterministic(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 3, 10, 8, 0, 0, 0, time.FixedZone("EST", -5*3600))
	key := DispatchIdempotencyKey("e1", 2, due)
	again := DispatchIdempotencyKey("e1", 2, due.UTC())
	if key != again {
		t.Fatalf("key %q != %q, want timezone-independent key", key, again)
	}
	if key != "e1:2:1773147600" {
		t.Fatalf("key = %q, want enrollment:cursor:unix form", key)
	}

	other := DispatchIdempotencyKey("e1", 3, due)
	if key == other {
		t.Fatal("different cursors must yield different keys")
	}
}
