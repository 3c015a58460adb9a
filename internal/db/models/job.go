package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Field names for job model
const (
	// JobStatusField is the field name for job status
	JobStatusField = "status"
	// JobScheduledAtField is the field name for the time a job becomes due
	JobScheduledAtField = "scheduled_at"
)

// JobType identifies the unit of work a job row carries
type JobType string

// Job type constants
const (
	// JobTypeDiscovery scans a target account for recent posts
	JobTypeDiscovery JobType = "DISCOVERY_JOB"
	// JobTypeExtraction mines the comments of a single post
	JobTypeExtraction JobType = "EXTRACTION_JOB"
	// JobTypeDM sends a single direct message
	JobTypeDM JobType = "DM"
)

// JobStatus represents the current state of a job
type JobStatus string

// Job status constants
const (
	// JobStatusQueued indicates the job is waiting for its scheduled time
	JobStatusQueued JobStatus = "QUEUED"
	// JobStatusProcessing indicates a worker has claimed the job
	JobStatusProcessing JobStatus = "PROCESSING"
	// JobStatusCompleted indicates the job finished successfully
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusFailed indicates the job failed, failures are terminal
	JobStatusFailed JobStatus = "FAILED"
)

// Job is a unit of asynchronous work claimed one at a time by the queue
type Job struct {
	gorm.Model
	WorkspaceID string          `json:"workspace_id" gorm:"not null;index"`
	JobType     JobType         `json:"job_type" gorm:"not null;index"`
	Status      JobStatus       `json:"status" gorm:"not null;index"`
	Payload     json.RawMessage `json:"payload,omitempty" gorm:"type:jsonb"`
	ScheduledAt time.Time       `json:"scheduled_at" gorm:"not null;index"`
	// SentAt doubles as the started-at timestamp once the job is claimed
	SentAt                   *time.Time `json:"sent_at,omitempty" gorm:"index"`
	SenderUsername           string     `json:"sender_username,omitempty"`
	SenderInstagramAccountID *uint      `json:"sender_instagram_account_id,omitempty" gorm:"index"`
	CampaignID               *uint      `json:"campaign_id,omitempty" gorm:"index"`
	LeadID                   *uint      `json:"lead_id,omitempty" gorm:"index"`
	Error                    string     `json:"error,omitempty" gorm:"type:text"`
}

// String returns the string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed from this status
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ParseJobStatus converts a string to a JobStatus
func ParseJobStatus(str string) (JobStatus, error) {
	switch JobStatus(str) {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return JobStatus(str), nil
	default:
		return "", fmt.Errorf("invalid job status: %s", str)
	}
}

// ParseJobType converts a string to a JobType
func ParseJobType(str string) (JobType, error) {
	switch JobType(str) {
	case JobTypeDiscovery, JobTypeExtraction, JobTypeDM:
		return JobType(str), nil
	default:
		return "", fmt.Errorf("invalid job type: %s", str)
	}
}

// UnmarshalJSON implements json.Unmarshaler for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Validate ensures that the job data is valid
func (j *Job) Validate() error {
	if err := ValidateWorkspaceID(j.WorkspaceID); err != nil {
		return err
	}
	if _, err := ParseJobType(string(j.JobType)); err != nil {
		return err
	}
	if j.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled_at cannot be empty")
	}
	return nil
}

// BeforeCreate is a GORM hook that runs before creating a new job
func (j *Job) BeforeCreate(_ *gorm.DB) error {
	if j.Status == "" {
		j.Status = JobStatusQueued
	}
	// timestamps are compared in SQL, keep them in one zone
	j.ScheduledAt = j.ScheduledAt.UTC()
	if j.SentAt != nil {
		t := j.SentAt.UTC()
		j.SentAt = &t
	}
	return j.Validate()
}
