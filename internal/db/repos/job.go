package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/socialora/outreach/internal/db/models"
)

// maxClaimAttempts bounds how many candidates ClaimNext tries after losing a claim race
const maxClaimAttempts = 5

// ErrInvalidTransition is returned when a job is not in the status a transition requires
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobRepository provides access to job-related database operations
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job in the database
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := models.ValidatePayload(job.JobType, job.Payload); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// CreateBatch creates several jobs in a single transaction
func (r *JobRepository) CreateBatch(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	for _, j := range jobs {
		if err := models.ValidatePayload(j.JobType, j.Payload); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, j := range jobs {
			if err := tx.Create(j).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ClaimNext claims the oldest queued job that is due at now.
// It returns nil without error when no job is due.
func (r *JobRepository) ClaimNext(ctx context.Context, now time.Time) (*models.Job, error) {
	now = now.UTC()
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var candidate models.Job
		err := r.db.WithContext(ctx).
			Where(JobStatusQuery(models.JobStatusQueued)).
			Where(models.JobScheduledAtField+" <= ?", now).
			Order(models.JobScheduledAtField + " ASC").
			Order("id ASC").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find queued job: %w", err)
		}

		claimed, err := r.ClaimByID(ctx, candidate.ID, now)
		if err != nil {
			return nil, err
		}
		if claimed {
			return r.getByID(ctx, candidate.ID)
		}
		// another worker won this row, look at the next candidate
	}
	return nil, nil
}

// ClaimByID moves a job from QUEUED to PROCESSING in a single conditional update.
// It reports false when the job was not QUEUED anymore.
func (r *JobRepository) ClaimByID(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND "+models.JobStatusField+" = ?", id, models.JobStatusQueued).
		Updates(map[string]interface{}{
			models.JobStatusField: models.JobStatusProcessing,
			"sent_at":             now.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim job %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkCompleted finishes a PROCESSING job. A non-nil payload replaces the stored one.
func (r *JobRepository) MarkCompleted(ctx context.Context, id uint, payload json.RawMessage) error {
	updates := map[string]interface{}{
		models.JobStatusField: models.JobStatusCompleted,
		"error":               "",
	}
	if payload != nil {
		updates["payload"] = payload
	}
	return r.finish(ctx, id, updates)
}

// MarkFailed finishes a PROCESSING job with a failure reason. Failed jobs are terminal.
func (r *JobRepository) MarkFailed(ctx context.Context, id uint, reason string, payload json.RawMessage) error {
	updates := map[string]interface{}{
		models.JobStatusField: models.JobStatusFailed,
		"error":               reason,
	}
	if payload != nil {
		updates["payload"] = payload
	}
	return r.finish(ctx, id, updates)
}

// MarkDeferred completes a PROCESSING job that was not executed because a successor
// took over. sent_at is cleared so the job does not count as a sent message.
func (r *JobRepository) MarkDeferred(ctx context.Context, id uint, reason string) error {
	return r.finish(ctx, id, map[string]interface{}{
		models.JobStatusField: models.JobStatusCompleted,
		"sent_at":             nil,
		"error":               "deferred: " + reason,
	})
}

func (r *JobRepository) finish(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND "+models.JobStatusField+" = ?", id, models.JobStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update job %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d is not processing", ErrInvalidTransition, id)
	}
	return nil
}

// UpdateScheduledAt moves a queued job to a new due time
func (r *JobRepository) UpdateScheduledAt(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND "+models.JobStatusField+" = ?", id, models.JobStatusQueued).
		Update(models.JobScheduledAtField, at.UTC())
	if res.Error != nil {
		return fmt.Errorf("failed to reschedule job %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d is not queued", ErrInvalidTransition, id)
	}
	return nil
}

// CountSentBetween counts the completed DM jobs of a campaign whose sent_at falls in [from, to)
func (r *JobRepository) CountSentBetween(ctx context.Context, campaignID uint, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("campaign_id = ? AND job_type = ? AND "+models.JobStatusField+" = ?",
			campaignID, models.JobTypeDM, models.JobStatusCompleted).
		Where("sent_at >= ? AND sent_at < ?", from.UTC(), to.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sent messages: %w", err)
	}
	return count, nil
}

// GetByID retrieves a job by its ID inside a workspace
func (r *JobRepository) GetByID(ctx context.Context, workspaceID string, id uint) (*models.Job, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, fmt.Errorf("invalid workspace_id: %w", err)
	}
	var job models.Job
	err := r.db.WithContext(ctx).
		Where(&models.Job{Model: gorm.Model{ID: id}, WorkspaceID: workspaceID}).
		First(&job).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// Get retrieves a job by its ID regardless of workspace, used by internal callers
func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	return r.getByID(ctx, id)
}

func (r *JobRepository) getByID(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// JobFilter narrows a job listing, zero values match everything
type JobFilter struct {
	Status  models.JobStatus
	JobType models.JobType
}

// List returns the jobs of a workspace, newest first
func (r *JobRepository) List(ctx context.Context, workspaceID string, filter JobFilter, opts *models.ListOptions) ([]models.Job, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, fmt.Errorf("invalid workspace_id: %w", err)
	}
	qry := &models.Job{WorkspaceID: workspaceID, Status: filter.Status, JobType: filter.JobType}

	var jobs []models.Job
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(qry).
		Limit(limitOrDefault(opts)).Offset(offset(opts)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&jobs).Error
	return jobs, err
}

// JobStatusQuery builds a where-condition on the status column
func JobStatusQuery(status models.JobStatus) map[string]interface{} {
	return map[string]interface{}{models.JobStatusField: status}
}

func limitOrDefault(opts *models.ListOptions) int {
	if opts == nil || opts.Limit <= 0 {
		return models.DefaultLimit
	}
	return opts.Limit
}

func offset(opts *models.ListOptions) int {
	if opts == nil || opts.Offset < 0 {
		return 0
	}
	return opts.Offset
}
