package domain

import (
	"fmt"
	"strings"
	"time"
)

// Contact is the engine's view of a recipient. Only the fields the
// scheduler reads are modeled; the rest of the contact record belongs to
// the surrounding CRM.
type Contact struct {
	ID        string
	FolderID  string
	FirstName string
	LastName  string
	Phone     string
	TimeZone  string
	Region    string
	OptedOut  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Contact) Validate() error {
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	return nil
}

// Reachable reports whether the contact can receive a message right now.
// Opt-out is always re-checked through a fresh read before dispatch, never
// from a cached copy of this struct.
func (c *Contact) Reachable() bool {
	return c != nil && !c.OptedOut && strings.TrimSpace(c.Phone) != ""
}
