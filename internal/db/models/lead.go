package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// LeadStatus represents the sales state of a lead
type LeadStatus string

// Lead status constants
const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusReplied      LeadStatus = "replied"
	LeadStatusConverted    LeadStatus = "converted"
	LeadStatusUnsubscribed LeadStatus = "unsubscribed"
)

// ListingType is either a sale or a rental listing
type ListingType string

// Listing type constants
const (
	ListingSale ListingType = "Sale"
	ListingRent ListingType = "Rent"
)

// RealEstateLeadTag is attached to every lead created by comment mining
const RealEstateLeadTag = "real_estate_lead"

// Lead is a discovered prospective contact, unique per (ig_user_id, workspace_id)
type Lead struct {
	gorm.Model
	WorkspaceID string `json:"workspace_id" gorm:"not null;uniqueIndex:idx_leads_user_workspace"`
	IgUserID    string `json:"ig_user_id" gorm:"not null;uniqueIndex:idx_leads_user_workspace"`
	IgUsername  string `json:"ig_username" gorm:"not null;index"`
	FullName    string `json:"full_name"`
	Bio         string `json:"bio,omitempty" gorm:"type:text"`

	FollowerCount  int  `json:"follower_count"`
	FollowingCount int  `json:"following_count"`
	PostCount      int  `json:"post_count"`
	IsVerified     bool `json:"is_verified"`
	IsPrivate      bool `json:"is_private"`
	IsBusiness     bool `json:"is_business"`

	Status          LeadStatus     `json:"status" gorm:"not null;default:'new';index"`
	Tags            pq.StringArray `json:"tags" gorm:"type:text[]"`
	MatchedKeywords pq.StringArray `json:"matched_keywords" gorm:"type:text[]"`
	Source          string         `json:"source,omitempty"`
	SourceQuery     string         `json:"source_query,omitempty"`

	LeadScore      int     `json:"lead_score"`
	IntentScore    *int    `json:"intent_score,omitempty"`
	EngagementRate float64 `json:"engagement_rate"`
	AccountAge     int     `json:"account_age"`    // days
	PostFrequency  float64 `json:"post_frequency"` // posts per week

	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Website *string `json:"website,omitempty"`

	City            *string      `json:"city,omitempty"`
	Town            *string      `json:"town,omitempty"`
	PropertyType    *string      `json:"property_type,omitempty"`
	PropertySubType *string      `json:"property_sub_type,omitempty"`
	ListingType     *ListingType `json:"listing_type,omitempty"`

	CommentCount int        `json:"comment_count" gorm:"not null;default:0"`
	CommentDate  *time.Time `json:"comment_date,omitempty"`
	CommentLink  string     `json:"comment_link,omitempty"`
	Notes        string     `json:"notes,omitempty" gorm:"type:text"`
}

// LeadComment records a comment already merged into a lead
type LeadComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	LeadID    uint      `json:"lead_id" gorm:"not null;uniqueIndex:idx_lead_comments_lead_comment"`
	CommentID string    `json:"comment_id" gorm:"not null;uniqueIndex:idx_lead_comments_lead_comment"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasKeyword reports whether kw is already in the matched keyword set
func (l *Lead) HasKeyword(kw string) bool {
	for _, k := range l.MatchedKeywords {
		if k == kw {
			return true
		}
	}
	return false
}

// HasTag reports whether the lead carries tag
func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate ensures that the lead data is valid
func (l *Lead) Validate() error {
	if err := ValidateWorkspaceID(l.WorkspaceID); err != nil {
		return err
	}
	if l.IgUserID == "" {
		return fmt.Errorf("ig_user_id cannot be empty")
	}
	if l.IgUsername == "" {
		return fmt.Errorf("ig_username cannot be empty")
	}
	if l.LeadScore < 0 || l.LeadScore > 100 {
		return fmt.Errorf("lead_score must be within [0,100], got %d", l.LeadScore)
	}
	return nil
}

// BeforeCreate is a GORM hook that runs before creating a new lead
func (l *Lead) BeforeCreate(_ *gorm.DB) error {
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	return l.Validate()
}
