package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/socialora/outreach/internal/db"
	"github.com/socialora/outreach/internal/db/models"
)

// LeadRepository provides access to discovered leads
type LeadRepository struct {
	db *gorm.DB
}

// NewLeadRepository creates a new lead repository instance
func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// LeadMatch is one observation of a lead, usually a matching comment
type LeadMatch struct {
	Lead      *models.Lead
	CommentID string
	PostID    string
}

// UpsertResult tells how a match was persisted
type UpsertResult struct {
	Lead    *models.Lead
	Created bool
	// Duplicate is true when the comment had already been merged into the lead
	Duplicate bool
}

// Upsert inserts a lead on first sight or merges the match into the existing
// (ig_user_id, workspace_id) row. A concurrent insert of the same lead is
// resolved by retrying through the merge path.
func (r *LeadRepository) Upsert(ctx context.Context, match LeadMatch) (*UpsertResult, error) {
	if match.Lead == nil {
		return nil, fmt.Errorf("lead cannot be nil")
	}
	if err := match.Lead.Validate(); err != nil {
		return nil, err
	}

	res, err := r.upsert(ctx, match)
	if err != nil && db.IsDuplicateKeyError(err) {
		res, err = r.upsert(ctx, match)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert lead %s: %w", match.Lead.IgUserID, err)
	}
	return res, nil
}

func (r *LeadRepository) upsert(ctx context.Context, match LeadMatch) (*UpsertResult, error) {
	var res *UpsertResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Lead
		err := tx.Where("ig_user_id = ? AND workspace_id = ?", match.Lead.IgUserID, match.Lead.WorkspaceID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			lead := *match.Lead
			lead.ID = 0
			lead.CommentCount = 1
			lead.Tags = UnionStrings(lead.Tags, []string{models.RealEstateLeadTag})
			lead.MatchedKeywords = UnionStrings(nil, lead.MatchedKeywords)
			if err := tx.Create(&lead).Error; err != nil {
				return err
			}
			if err := recordComment(tx, lead.ID, match); err != nil {
				return err
			}
			res = &UpsertResult{Lead: &lead, Created: true}
			return nil
		}
		if err != nil {
			return err
		}

		seen, err := commentSeen(tx, existing.ID, match.CommentID)
		if err != nil {
			return err
		}
		mergeLead(&existing, match.Lead, !seen)
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		if !seen {
			if err := recordComment(tx, existing.ID, match); err != nil {
				return err
			}
		}
		res = &UpsertResult{Lead: &existing, Duplicate: seen}
		return nil
	})
	return res, err
}

func commentSeen(tx *gorm.DB, leadID uint, commentID string) (bool, error) {
	if commentID == "" {
		return false, nil
	}
	var count int64
	err := tx.Model(&models.LeadComment{}).
		Where("lead_id = ? AND comment_id = ?", leadID, commentID).
		Count(&count).Error
	return count > 0, err
}

func recordComment(tx *gorm.DB, leadID uint, match LeadMatch) error {
	if match.CommentID == "" {
		return nil
	}
	return tx.Create(&models.LeadComment{LeadID: leadID, CommentID: match.CommentID, PostID: match.PostID}).Error
}

// mergeLead folds a new observation into an existing lead: keywords and tags
// are unioned, empty location and property fields are filled without
// overwriting, and the per-match fields always take the latest value.
func mergeLead(existing, incoming *models.Lead, countComment bool) {
	if countComment {
		existing.CommentCount++
	}
	if existing.CommentCount < 1 {
		existing.CommentCount = 1
	}
	existing.MatchedKeywords = UnionStrings(existing.MatchedKeywords, incoming.MatchedKeywords)
	existing.Tags = UnionStrings(existing.Tags, incoming.Tags)

	fillString(&existing.City, incoming.City)
	fillString(&existing.Town, incoming.Town)
	fillString(&existing.PropertyType, incoming.PropertyType)
	fillString(&existing.PropertySubType, incoming.PropertySubType)
	if existing.ListingType == nil && incoming.ListingType != nil {
		lt := *incoming.ListingType
		existing.ListingType = &lt
	}

	existing.LeadScore = incoming.LeadScore
	if incoming.IntentScore != nil {
		existing.IntentScore = incoming.IntentScore
	}
	existing.CommentDate = incoming.CommentDate
	existing.CommentLink = incoming.CommentLink
	existing.Notes = incoming.Notes

	if incoming.IgUsername != "" {
		existing.IgUsername = incoming.IgUsername
	}
	if existing.FullName == "" {
		existing.FullName = incoming.FullName
	}
	if existing.Source == "" {
		existing.Source = incoming.Source
	}
	if existing.SourceQuery == "" {
		existing.SourceQuery = incoming.SourceQuery
	}
}

func fillString(dst **string, src *string) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// UnionStrings returns base followed by the items of extra it lacks, without empties or repeats
func UnionStrings(base []string, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// GetByID retrieves a lead inside a workspace
func (r *LeadRepository) GetByID(ctx context.Context, workspaceID string, id uint) (*models.Lead, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, fmt.Errorf("invalid workspace_id: %w", err)
	}
	var lead models.Lead
	err := r.db.WithContext(ctx).
		Where(&models.Lead{Model: gorm.Model{ID: id}, WorkspaceID: workspaceID}).
		First(&lead).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// GetByIgUserID retrieves a lead by its external identity
func (r *LeadRepository) GetByIgUserID(ctx context.Context, workspaceID, igUserID string) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND ig_user_id = ?", workspaceID, igUserID).
		First(&lead).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// LeadFilter narrows a lead listing, zero values match everything
type LeadFilter struct {
	Status   models.LeadStatus
	City     string
	MinScore int
}

// List returns the leads of a workspace, best score first
func (r *LeadRepository) List(ctx context.Context, workspaceID string, filter LeadFilter, opts *models.ListOptions) ([]models.Lead, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, fmt.Errorf("invalid workspace_id: %w", err)
	}
	qry := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if filter.Status != "" {
		qry = qry.Where("status = ?", filter.Status)
	}
	if filter.City != "" {
		qry = qry.Where("city = ?", filter.City)
	}
	if filter.MinScore > 0 {
		qry = qry.Where("lead_score >= ?", filter.MinScore)
	}

	var leads []models.Lead
	err := qry.Order("lead_score DESC").Order("id ASC").
		Limit(limitOrDefault(opts)).Offset(offset(opts)).
		Find(&leads).Error
	return leads, err
}

// Count returns the number of leads in a workspace
func (r *LeadRepository) Count(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Lead{}).Where("workspace_id = ?", workspaceID).Count(&count).Error
	return count, err
}

// Update persists every field of the lead
func (r *LeadRepository) Update(ctx context.Context, lead *models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(lead).Error
}

// UpdateStatus sets the sales status of a lead
func (r *LeadRepository) UpdateStatus(ctx context.Context, workspaceID string, id uint, status models.LeadStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update lead status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update lead status: %w", gorm.ErrRecordNotFound)
	}
	return nil
}
