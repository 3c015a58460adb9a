package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/socialora/outreach/internal/db/models"
)

// CampaignRepository provides access to campaigns, their steps and recipients
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new campaign repository instance
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a campaign together with its steps
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// GetByID retrieves a campaign with its steps ordered by step_order
func (r *CampaignRepository) GetByID(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		First(&campaign, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

// ListRunning returns every RUNNING campaign, oldest created first
func (r *CampaignRepository) ListRunning(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.WithContext(ctx).
		Where(&models.Campaign{Status: models.CampaignStatusRunning}).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Order("created_at ASC").
		Order("id ASC").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list running campaigns: %w", err)
	}
	return campaigns, nil
}

// UpdateStatus sets the campaign status
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	return r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// IncrementCounters adds sent and failed deltas to the campaign counters
func (r *CampaignRepository) IncrementCounters(ctx context.Context, id uint, sent, failed int) error {
	if sent == 0 && failed == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sent_count":   gorm.Expr("sent_count + ?", sent),
			"failed_count": gorm.Expr("failed_count + ?", failed),
		}).Error
}

// CreateContact stores a contact
func (r *CampaignRepository) CreateContact(ctx context.Context, contact *models.Contact) error {
	if err := models.ValidateWorkspaceID(contact.WorkspaceID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(contact).Error
}

// AddRecipients attaches recipients to a campaign and refreshes its total
func (r *CampaignRepository) AddRecipients(ctx context.Context, campaignID uint, recipients []*models.CampaignRecipient) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rc := range recipients {
			rc.CampaignID = campaignID
			if err := tx.Create(rc).Error; err != nil {
				return err
			}
		}
		return refreshTotal(tx, campaignID)
	})
}

func refreshTotal(tx *gorm.DB, campaignID uint) error {
	var total int64
	if err := tx.Model(&models.CampaignRecipient{}).Where("campaign_id = ?", campaignID).Count(&total).Error; err != nil {
		return err
	}
	return tx.Model(&models.Campaign{}).Where("id = ?", campaignID).Update("total_recipients", total).Error
}

// ListRecipients returns the recipients of a campaign in insertion order.
// When ids is not empty only those recipients are returned.
func (r *CampaignRepository) ListRecipients(ctx context.Context, campaignID uint, ids []uint) ([]models.CampaignRecipient, error) {
	qry := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID)
	if len(ids) > 0 {
		qry = qry.Where("id IN ?", ids)
	}
	var recipients []models.CampaignRecipient
	if err := qry.Order("id ASC").Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}

// DueRecipients returns active recipients whose next_process_at is unset or not after now
func (r *CampaignRepository) DueRecipients(ctx context.Context, campaignID uint, now time.Time, limit int) ([]models.CampaignRecipient, error) {
	if limit <= 0 {
		limit = models.DefaultLimit
	}
	var recipients []models.CampaignRecipient
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Where("campaign_id = ?", campaignID).
		Where("status IN ?", []models.RecipientStatus{models.RecipientStatusPending, models.RecipientStatusInProgress}).
		Where("next_process_at IS NULL OR next_process_at <= ?", now.UTC()).
		Order("next_process_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&recipients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due recipients: %w", err)
	}
	return recipients, nil
}

// CountActiveRecipients counts recipients that may still receive messages
func (r *CampaignRepository) CountActiveRecipients(ctx context.Context, campaignID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("campaign_id = ?", campaignID).
		Where("status IN ?", []models.RecipientStatus{models.RecipientStatusPending, models.RecipientStatusInProgress}).
		Count(&count).Error
	return count, err
}

// ScheduleRecipient stores the account assignment and the next processing time
func (r *CampaignRepository) ScheduleRecipient(ctx context.Context, id uint, accountID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"assigned_account_id": accountID,
			"next_process_at":     at.UTC(),
		}).Error
}

// AdvanceRecipient moves a recipient to the given step.
// The step order never moves backwards: the update only applies when step is ahead of the stored one.
func (r *CampaignRepository) AdvanceRecipient(ctx context.Context, id uint, step int, next time.Time) error {
	return r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("id = ? AND current_step_order < ?", id, step).
		Updates(map[string]interface{}{
			"status":             models.RecipientStatusInProgress,
			"current_step_order": step,
			"next_process_at":    next.UTC(),
			"last_error":         "",
		}).Error
}

// FinishRecipient moves a recipient to a final status
func (r *CampaignRepository) FinishRecipient(ctx context.Context, id uint, status models.RecipientStatus, lastError string) error {
	return r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"last_error":      lastError,
			"next_process_at": nil,
		}).Error
}

// DeferRecipient pushes the next processing time of a recipient without touching its step
func (r *CampaignRepository) DeferRecipient(ctx context.Context, id uint, at time.Time, reason string) error {
	return r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_process_at": at.UTC(),
			"last_error":      reason,
		}).Error
}
