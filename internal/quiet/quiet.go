// Package quiet decides whether a send may go out now or must be deferred
// past the recipient's local quiet window.
package quiet

import (
	"fmt"
	"time"
)

// Window is a [StartHour, EndHour) range in the recipient's local time.
// A window that wraps midnight (e.g. 21 -> 8) is supported; StartHour ==
// EndHour means no quiet window at all.
type Window struct {
	StartHour int
	EndHour   int
}

func (w Window) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("start hour %d out of range", w.StartHour)
	}
	if w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("end hour %d out of range", w.EndHour)
	}
	return nil
}

// Contains reports whether the local instant falls inside the window.
func (w Window) Contains(local time.Time) bool {
	h := local.Hour()
	switch {
	case w.StartHour == w.EndHour:
		return false
	case w.StartHour < w.EndHour:
		return h >= w.StartHour && h < w.EndHour
	default:
		return h >= w.StartHour || h < w.EndHour
	}
}

// Scheduler is a pure mapper from "now" to an effective send instant.
type Scheduler struct {
	window  Window
	minLead time.Duration
}

func NewScheduler(window Window, minLead time.Duration) (*Scheduler, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quiet window: %w", err)
	}
	if minLead < 0 {
		minLead = 0
	}
	return &Scheduler{window: window, minLead: minLead}, nil
}

// EffectiveSendTime returns when a message due now should actually go
// out. Outside the quiet window it returns now unchanged and deferred ==
// false. Inside the window it returns the next local EndHour boundary,
// clamped forward to now + minimum lead time when the boundary is too
// close for the provider to accept a scheduled send.
func (s *Scheduler) EffectiveSendTime(now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	if !s.window.Contains(local) {
		return now, false
	}

	boundary := time.Date(local.Year(), local.Month(), local.Day(), s.window.EndHour, 0, 0, 0, loc)
	if !boundary.After(local) {
		boundary = boundary.AddDate(0, 0, 1)
	}

	if boundary.Sub(now) < s.minLead {
		boundary = now.Add(s.minLead)
	}

	return boundary, true
}

// MinLead exposes the configured minimum scheduling lead time.
func (s *Scheduler) MinLead() time.Duration { return s.minLead }

// NextAllowed pushes an instant out of the quiet window if it lands
// inside one; instants already outside come back unchanged.
func (s *Scheduler) NextAllowed(t time.Time, loc *time.Location) time.Time {
	effective, _ := s.EffectiveSendTime(t, loc)
	return effective
}
