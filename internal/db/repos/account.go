package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/socialora/outreach/internal/db/models"
)

const counterDateLayout = "2006-01-02"

// AccountRepository provides access to sender Instagram accounts
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a sender account
func (r *AccountRepository) Create(ctx context.Context, account *models.InstagramAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uint) (*models.InstagramAccount, error) {
	var account models.InstagramAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get instagram account: %w", err)
	}
	return &account, nil
}

// GetByIDs retrieves accounts keyed by ID
func (r *AccountRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.InstagramAccount, error) {
	var accounts []models.InstagramAccount
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
			return nil, fmt.Errorf("failed to get instagram accounts: %w", err)
		}
	}
	out := make(map[uint]*models.InstagramAccount, len(accounts))
	for i := range accounts {
		out[accounts[i].ID] = &accounts[i]
	}
	return out, nil
}

// ListActive returns the active accounts of a workspace
func (r *AccountRepository) ListActive(ctx context.Context, workspaceID string) ([]models.InstagramAccount, error) {
	var accounts []models.InstagramAccount
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

// ReserveDailySlot atomically takes one DM slot of the account for the UTC day of now.
// It reports false when the daily limit is already reached or the account is inactive.
func (r *AccountRepository) ReserveDailySlot(ctx context.Context, id uint, now time.Time) (bool, error) {
	today := now.UTC().Format(counterDateLayout)
	db := r.db.WithContext(ctx)

	// reset a counter left over from a previous day, only one caller can match
	if err := db.Model(&models.InstagramAccount{}).
		Where("id = ? AND counter_date <> ?", id, today).
		Updates(map[string]interface{}{"dms_sent_today": 0, "counter_date": today}).Error; err != nil {
		return false, fmt.Errorf("failed to reset daily counter: %w", err)
	}

	res := db.Model(&models.InstagramAccount{}).
		Where("id = ? AND counter_date = ? AND is_active = ? AND dms_sent_today < daily_limit", id, today, true).
		Updates(map[string]interface{}{
			"dms_sent_today": gorm.Expr("dms_sent_today + 1"),
			"last_dm_at":     now.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve daily slot: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseDailySlot gives back a slot taken by ReserveDailySlot when the send did not happen
func (r *AccountRepository) ReleaseDailySlot(ctx context.Context, id uint, now time.Time) error {
	today := now.UTC().Format(counterDateLayout)
	return r.db.WithContext(ctx).Model(&models.InstagramAccount{}).
		Where("id = ? AND counter_date = ? AND dms_sent_today > 0", id, today).
		Update("dms_sent_today", gorm.Expr("dms_sent_today - 1")).Error
}
