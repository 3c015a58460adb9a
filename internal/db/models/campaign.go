package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

// Campaign status constants
const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusRunning   CampaignStatus = "RUNNING"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
)

// RecipientStatus represents a contact's progress through a campaign
type RecipientStatus string

// Recipient status constants
const (
	RecipientStatusPending      RecipientStatus = "PENDING"
	RecipientStatusInProgress   RecipientStatus = "IN_PROGRESS"
	RecipientStatusCompleted    RecipientStatus = "COMPLETED"
	RecipientStatusReplied      RecipientStatus = "REPLIED"
	RecipientStatusFailed       RecipientStatus = "FAILED"
	RecipientStatusUnsubscribed RecipientStatus = "UNSUBSCRIBED"
)

// IsActive reports whether the recipient may still receive messages
func (s RecipientStatus) IsActive() bool {
	return s == RecipientStatusPending || s == RecipientStatusInProgress
}

// Campaign is an outbound messaging initiative
type Campaign struct {
	gorm.Model
	WorkspaceID string         `json:"workspace_id" gorm:"not null;index"`
	Name        string         `json:"name" gorm:"not null"`
	Status      CampaignStatus `json:"status" gorm:"not null;index"`
	// SendStartTime and SendEndTime are local times of day formatted HH:MM
	SendStartTime   string `json:"send_start_time" gorm:"not null;default:'09:00'"`
	SendEndTime     string `json:"send_end_time" gorm:"not null;default:'17:00'"`
	Timezone        string `json:"timezone" gorm:"not null;default:'UTC'"`
	MessagesPerDay  int    `json:"messages_per_day" gorm:"not null;default:50"`
	TotalRecipients int    `json:"total_recipients" gorm:"not null;default:0"`
	SentCount       int    `json:"sent_count" gorm:"not null;default:0"`
	FailedCount     int    `json:"failed_count" gorm:"not null;default:0"`

	Steps []CampaignStep `json:"steps,omitempty" gorm:"foreignKey:CampaignID"`
}

// CampaignStep is one message of a campaign sequence
type CampaignStep struct {
	gorm.Model
	CampaignID uint `json:"campaign_id" gorm:"not null;index"`
	StepOrder  int  `json:"step_order" gorm:"not null"`
	// DelayMinutes is relative to the previous step, always 0 for step 0
	DelayMinutes    int    `json:"delay_minutes" gorm:"not null;default:0"`
	MessageTemplate string `json:"message_template" gorm:"type:text;not null"`
}

// CampaignRecipient tracks one contact through the campaign steps
type CampaignRecipient struct {
	gorm.Model
	CampaignID        uint            `json:"campaign_id" gorm:"not null;index"`
	ContactID         uint            `json:"contact_id" gorm:"not null;index"`
	AssignedAccountID *uint           `json:"assigned_account_id,omitempty" gorm:"index"`
	Status            RecipientStatus `json:"status" gorm:"not null;index"`
	CurrentStepOrder  int             `json:"current_step_order" gorm:"not null;default:0"`
	NextProcessAt     *time.Time      `json:"next_process_at,omitempty" gorm:"index"`
	LastError         string          `json:"last_error,omitempty" gorm:"type:text"`

	Contact Contact `json:"contact,omitempty" gorm:"foreignKey:ContactID"`
}

// Contact is an addressable Instagram user inside a workspace
type Contact struct {
	gorm.Model
	WorkspaceID string `json:"workspace_id" gorm:"not null;index"`
	IgUserID    string `json:"ig_user_id" gorm:"index"`
	IgUsername  string `json:"ig_username" gorm:"not null;index"`
	FullName    string `json:"full_name"`
	LeadID      *uint  `json:"lead_id,omitempty" gorm:"index"`
}

// Validate ensures that the campaign data is valid
func (c *Campaign) Validate() error {
	if err := ValidateWorkspaceID(c.WorkspaceID); err != nil {
		return err
	}
	if c.Name == "" {
		return fmt.Errorf("campaign name cannot be empty")
	}
	if c.MessagesPerDay < 0 {
		return fmt.Errorf("messages_per_day cannot be negative")
	}
	return ValidateSteps(c.Steps)
}

// ValidateSteps checks that steps are strictly ordered from 0 and the first has no delay
func ValidateSteps(steps []CampaignStep) error {
	for i, s := range steps {
		if s.StepOrder != i {
			return fmt.Errorf("step %d has step_order %d, steps must be ordered from 0", i, s.StepOrder)
		}
		if i == 0 && s.DelayMinutes != 0 {
			return fmt.Errorf("step 0 must have delay_minutes 0")
		}
		if s.DelayMinutes < 0 {
			return fmt.Errorf("step %d has a negative delay", i)
		}
	}
	return nil
}

// BeforeCreate is a GORM hook that runs before creating a new campaign
func (c *Campaign) BeforeCreate(_ *gorm.DB) error {
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	return c.Validate()
}

// BeforeCreate is a GORM hook that runs before creating a new recipient
func (r *CampaignRecipient) BeforeCreate(_ *gorm.DB) error {
	if r.Status == "" {
		r.Status = RecipientStatusPending
	}
	return nil
}
