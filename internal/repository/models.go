package repository

import (
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
)

// ContactModel is the persistence model for the contacts table.
type ContactModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	FolderID  string `gorm:"type:varchar(64);index"`
	FirstName string `gorm:"type:varchar(100)"`
	LastName  string `gorm:"type:varchar(100)"`
	Phone     string `gorm:"type:varchar(32);not null"`
	TimeZone  string `gorm:"type:varchar(64)"`
	Region    string `gorm:"type:varchar(8)"`
	OptedOut  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ContactModel) TableName() string { return "contacts" }

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	Name      string         `gorm:"type:varchar(200);not null"`
	Channel   domain.Channel `gorm:"type:varchar(10);not null"`
	SenderID  string         `gorm:"type:varchar(64);not null"`
	Active    bool           `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CampaignModel) TableName() string { return "campaigns" }

// CampaignStepModel is the persistence model for campaign_steps.
type CampaignStepModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	CampaignID string `gorm:"type:uuid;not null;index"`
	Position   int    `gorm:"not null"`
	Body       string `gorm:"type:text;not null"`
	DayOffset  int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

func (CampaignStepModel) TableName() string { return "campaign_steps" }

// EnrollmentModel is the persistence model for enrollments. The cursor
// column is named current_step to stay clear of the SQL CURSOR keyword.
type EnrollmentModel struct {
	ID         string                  `gorm:"type:uuid;primaryKey"`
	ContactID  string                  `gorm:"type:uuid;not null"`
	CampaignID string                  `gorm:"type:uuid;not null"`
	Cursor     int                     `gorm:"column:current_step;not null;default:0"`
	NextDueAt  *time.Time              `gorm:"type:timestamptz"`
	Status     domain.EnrollmentStatus `gorm:"type:varchar(20);not null"`
	StartedAt  time.Time               `gorm:"type:timestamptz;not null"`
	Claimed    bool                    `gorm:"not null;default:false"`
	ClaimedAt  *time.Time              `gorm:"type:timestamptz"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (EnrollmentModel) TableName() string { return "enrollments" }

// FolderWatchModel is the persistence model for folder_watches.
type FolderWatchModel struct {
	ID          string             `gorm:"type:uuid;primaryKey"`
	FolderID    string             `gorm:"type:varchar(64);not null"`
	CampaignID  string             `gorm:"type:uuid;not null"`
	StartPolicy domain.StartPolicy `gorm:"type:varchar(20);not null"`
	Active      bool               `gorm:"not null;default:true"`
	LastScanAt  *time.Time         `gorm:"type:timestamptz"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (FolderWatchModel) TableName() string { return "folder_watches" }

// DispatchLogModel is the persistence model for dispatch_logs.
type DispatchLogModel struct {
	ID                string                `gorm:"type:uuid;primaryKey"`
	EnrollmentID      string                `gorm:"type:uuid;not null"`
	Step              int                   `gorm:"not null"`
	DueAt             time.Time             `gorm:"type:timestamptz;not null"`
	IdempotencyKey    string                `gorm:"type:varchar(128);not null"`
	Status            domain.DispatchStatus `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string               `gorm:"type:varchar(128)"`
	ScheduledFor      *time.Time            `gorm:"type:timestamptz"`
	AttemptCount      int                   `gorm:"not null;default:0"`
	LastError         *string               `gorm:"type:text"`
	SentAt            *time.Time            `gorm:"type:timestamptz"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (DispatchLogModel) TableName() string { return "dispatch_logs" }

func contactModelToDomain(m *ContactModel) *domain.Contact {
	if m == nil {
		return nil
	}
	return &domain.Contact{
		ID:        m.ID,
		FolderID:  m.FolderID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Phone:     m.Phone,
		TimeZone:  m.TimeZone,
		Region:    m.Region,
		OptedOut:  m.OptedOut,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel, steps []CampaignStepModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	campaign := &domain.Campaign{
		ID:        m.ID,
		Name:      m.Name,
		Channel:   m.Channel,
		SenderID:  m.SenderID,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, step := range steps {
		campaign.Steps = append(campaign.Steps, domain.Step{
			Position:  step.Position,
			Body:      step.Body,
			DayOffset: step.DayOffset,
		})
	}
	return campaign
}

func enrollmentModelFromDomain(e *domain.Enrollment) *EnrollmentModel {
	if e == nil {
		return nil
	}
	return &EnrollmentModel{
		ID:         e.ID,
		ContactID:  e.ContactID,
		CampaignID: e.CampaignID,
		Cursor:     e.Cursor,
		NextDueAt:  e.NextDueAt,
		Status:     e.Status,
		StartedAt:  e.StartedAt,
		Claimed:    e.Claimed,
		ClaimedAt:  e.ClaimedAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func enrollmentModelToDomain(m *EnrollmentModel) *domain.Enrollment {
	if m == nil {
		return nil
	}
	return &domain.Enrollment{
		ID:         m.ID,
		ContactID:  m.ContactID,
		CampaignID: m.CampaignID,
		Cursor:     m.Cursor,
		NextDueAt:  m.NextDueAt,
		Status:     m.Status,
		StartedAt:  m.StartedAt,
		Claimed:    m.Claimed,
		ClaimedAt:  m.ClaimedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func watchModelFromDomain(w *domain.FolderWatch) *FolderWatchModel {
	if w == nil {
		return nil
	}
	return &FolderWatchModel{
		ID:          w.ID,
		FolderID:    w.FolderID,
		CampaignID:  w.CampaignID,
		StartPolicy: w.StartPolicy,
		Active:      w.Active,
		LastScanAt:  w.LastScanAt,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func watchModelToDomain(m *FolderWatchModel) *domain.FolderWatch {
	if m == nil {
		return nil
	}
	return &domain.FolderWatch{
		ID:          m.ID,
		FolderID:    m.FolderID,
		CampaignID:  m.CampaignID,
		StartPolicy: m.StartPolicy,
		Active:      m.Active,
		LastScanAt:  m.LastScanAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func dispatchModelFromDomain(d *domain.DispatchLog) *DispatchLogModel {
	if d == nil {
		return nil
	}
	return &DispatchLogModel{
		ID:                d.ID,
		EnrollmentID:      d.EnrollmentID,
		Step:              d.Step,
		DueAt:             d.DueAt,
		IdempotencyKey:    d.IdempotencyKey,
		Status:            d.Status,
		ProviderMessageID: d.ProviderMessageID,
		ScheduledFor:      d.ScheduledFor,
		AttemptCount:      d.AttemptCount,
		LastError:         d.LastError,
		SentAt:            d.SentAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func dispatchModelToDomain(m *DispatchLogModel) *domain.DispatchLog {
	if m == nil {
		return nil
	}
	return &domain.DispatchLog{
		ID:                m.ID,
		EnrollmentID:      m.EnrollmentID,
		Step:              m.Step,
		DueAt:             m.DueAt,
		IdempotencyKey:    m.IdempotencyKey,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		ScheduledFor:      m.ScheduledFor,
		AttemptCount:      m.AttemptCount,
		LastError:         m.LastError,
		SentAt:            m.SentAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
