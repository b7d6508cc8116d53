package domain

import (
	"fmt"
	"strings"
	"time"
)

// StartPolicy controls how a watch computes the initial due instant for
// enrollments it creates.
type StartPolicy string

const (
	// StartImmediate schedules the first step from the enrollment start
	// without window adjustment.
	StartImmediate StartPolicy = "immediate"
	// StartNextWindow pushes a first step landing in quiet hours to the
	// next allowed window.
	StartNextWindow StartPolicy = "nextWindow"
)

func (p StartPolicy) String() string { return string(p) }

func (p StartPolicy) IsValid() bool {
	return p == StartImmediate || p == StartNextWindow
}

func ParseStartPolicyFromString(s string) (StartPolicy, error) {
	switch strings.TrimSpace(s) {
	case string(StartImmediate):
		return StartImmediate, nil
	case string(StartNextWindow):
		return StartNextWindow, nil
	}
	return "", fmt.Errorf("%w: invalid start policy %q", ErrValidation, s)
}

// FolderWatch binds a contact folder to a campaign: members of the folder
// are auto-enrolled on each watcher pass. The watch is deactivated when
// its campaign stops being an active SMS campaign.
type FolderWatch struct {
	ID          string
	FolderID    string
	CampaignID  string
	StartPolicy StartPolicy
	Active      bool
	LastScanAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (w *FolderWatch) Validate() error {
	if strings.TrimSpace(w.FolderID) == "" {
		return fmt.Errorf("%w: folder id is required", ErrValidation)
	}
	if strings.TrimSpace(w.CampaignID) == "" {
		return fmt.Errorf("%w: campaign id is required", ErrValidation)
	}
	if !w.StartPolicy.IsValid() {
		return fmt.Errorf("%w: invalid start policy %q", ErrValidation, w.StartPolicy)
	}
	return nil
}
