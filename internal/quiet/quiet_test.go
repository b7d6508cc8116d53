package quiet

import (
	"testing"
	"time"
)

func mustScheduler(t *testing.T, start, end int, minLead time.Duration) *Scheduler {
	t.Helper()

	s, err := NewScheduler(Window{StartHour: start, EndHour: end}, minLead)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	return s
}

func TestWindowContains(t *testing.T) {
	t.Parallel()

	wrap := Window{StartHour: 21, EndHour: 8}
	cases := []struct {
		hour int
		want bool
	}{
		{20, false},
		{21, true},
		{23, true},
		{0, true},
		{7, true},
		{8, false},
		{12, false},
	}
	for _, tc := range cases {
		at := time.Date(2026, 3, 10, tc.hour, 59, 0, 0, time.UTC)
		if got := wrap.Contains(at); got != tc.want {
			t.Errorf("Contains(%02d:59) = %v, want %v", tc.hour, got, tc.want)
		}
	}

	plain := Window{StartHour: 9, EndHour: 17}
	if !plain.Contains(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("12:00 is inside a 9-17 window")
	}
	if plain.Contains(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)) {
		t.Fatal("18:00 is outside a 9-17 window")
	}

	disabled := Window{StartHour: 5, EndHour: 5}
	if disabled.Contains(time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)) {
		t.Fatal("equal start and end disables the window")
	}
}

func TestEffectiveSendTimeOutsideWindow(t *testing.T) {
	t.Parallel()

	s := mustScheduler(t, 21, 8, 15*time.Minute)
	now := time.Date(2026, 3, 10, 20, 59, 0, 0, time.UTC)

	got, deferred := s.EffectiveSendTime(now, time.UTC)
	if deferred {
		t.Fatal("20:59 is outside the window, send now")
	}
	if !got.Equal(now) {
		t.Fatalf("send time = %v, want now", got)
	}
}

func TestEffectiveSendTimeDefersToWindowEnd(t *testing.T) {
	t.Parallel()

	s := mustScheduler(t, 21, 8, 15*time.Minute)
	now := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)

	got, deferred := s.EffectiveSendTime(now, time.UTC)
	if !deferred {
		t.Fatal("21:00 is inside the window")
	}
	want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("send time = %v, want %v", got, want)
	}
}

func TestEffectiveSendTimeEarlyMorningSameDayBoundary(t *testing.T) {
	t.Parallel()

	s := mustScheduler(t, 21, 8, 15*time.Minute)
	now := time.Date(2026, 3, 11, 2, 30, 0, 0, time.UTC)

	got, deferred := s.EffectiveSendTime(now, time.UTC)
	if !deferred {
		t.Fatal("02:30 is inside a wrapped window")
	}
	want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("send time = %v, want same-day 08:00", got)
	}
}

func TestEffectiveSendTimeMinLeadClamp(t *testing.T) {
	t.Parallel()

	s := mustScheduler(t, 21, 8, 15*time.Minute)
	now := time.Date(2026, 3, 11, 7, 55, 0, 0, time.UTC)

	got, deferred := s.EffectiveSendTime(now, time.UTC)
	if !deferred {
		t.Fatal("07:55 is inside the window")
	}
	want := now.Add(15 * time.Minute)
	if !got.Equal(want) {
		t.Fatalf("send time = %v, want boundary clamped to %v", got, want)
	}
}

func TestEffectiveSendTimeUsesRecipientZone(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}

	s := mustScheduler(t, 21, 8, 15*time.Minute)
	// 03:30 UTC on March 11 is 22:30 on March 10 in Chicago (CDT).
	now := time.Date(2026, 3, 11, 3, 30, 0, 0, time.UTC)

	got, deferred := s.EffectiveSendTime(now, loc)
	if !deferred {
		t.Fatal("22:30 local is inside the window")
	}
	want := time.Date(2026, 3, 11, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("send time = %v, want local 08:00 (%v)", got, want)
	}
}

func TestNextAllowedPassesThroughDaytime(t *testing.T) {
	t.Parallel()

	s := mustScheduler(t, 21, 8, 15*time.Minute)
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if got := s.NextAllowed(at, time.UTC); !got.Equal(at) {
		t.Fatalf("NextAllowed() = %v, want unchanged", got)
	}
}

func TestNewSchedulerRejectsBadWindow(t *testing.T) {
	t.Parallel()

	if _, err := NewScheduler(Window{StartHour: 24, EndHour: 8}, 0); err == nil {
		t.Fatal("start hour 24 should be rejected")
	}
	if _, err := NewScheduler(Window{StartHour: 21, EndHour: -1}, 0); err == nil {
		t.Fatal("negative end hour should be rejected")
	}
}
