package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents the delivery channel of a campaign.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelVoice Channel = "voice"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelVoice:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// MaxStepBodyLength caps a rendered SMS segment chain.
const MaxStepBodyLength = 1600

// Step is one message in a campaign sequence. DayOffset is the number of
// calendar days after the enrollment start, in the recipient's local
// calendar; zero means "immediately after the previous step".
type Step struct {
	Position  int
	Body      string
	DayOffset int
}

func (s *Step) Validate() error {
	if strings.TrimSpace(s.Body) == "" {
		return fmt.Errorf("%w: step body is required", ErrValidation)
	}
	if len([]rune(s.Body)) > MaxStepBodyLength {
		return fmt.Errorf("%w: step body exceeds %d characters", ErrValidation, MaxStepBodyLength)
	}
	if s.DayOffset < 0 {
		return fmt.Errorf("%w: step day offset must not be negative", ErrValidation)
	}
	return nil
}

// Campaign is a read-only message sequence template. The engine only acts
// on active SMS campaigns.
type Campaign struct {
	ID        string
	Name      string
	Channel   Channel
	SenderID  string
	Active    bool
	Steps     []Step
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sendable reports whether the engine may dispatch for this campaign.
func (c *Campaign) Sendable() bool {
	return c != nil && c.Active && c.Channel == ChannelSMS && len(c.Steps) > 0
}

// EffectiveOffsets normalizes step day offsets into a monotonically
// non-decreasing sequence. A missing offset, or one that would move
// backwards, collapses to the previous step's offset, which makes the
// step due immediately after its predecessor.
func (c *Campaign) EffectiveOffsets() []int {
	offsets := make([]int, len(c.Steps))
	prev := 0
	for i, step := range c.Steps {
		if step.DayOffset >= 1 && step.DayOffset >= prev {
			prev = step.DayOffset
		}
		offsets[i] = prev
	}
	return offsets
}

// StepDueAt computes the absolute due instant of a step: the enrollment
// start advanced by the step's effective day offset in the recipient's
// local calendar, preserving the local clock time.
func StepDueAt(startedAt time.Time, offsetDays int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if offsetDays <= 0 {
		return startedAt
	}
	return startedAt.In(loc).AddDate(0, 0, offsetDays)
}
