package services

import (
	"context"
	"fmt"
	"time"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/geo"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/logger"
	"github.com/socialora/outreach/internal/scoring"
)

// Lead provides business logic for stored leads
type Lead struct {
	leads    *repos.LeadRepository
	accounts *repos.AccountRepository
	ig       instagram.Client
	detector *geo.Detector
	now      func() time.Time
}

// NewLeadService creates a new lead service instance
func NewLeadService(leads *repos.LeadRepository, accounts *repos.AccountRepository, ig instagram.Client) *Lead {
	return &Lead{leads: leads, accounts: accounts, ig: ig, now: time.Now}
}

// WithDetector resolves bio locations to a city and town during enrichment
func (s *Lead) WithDetector(detector *geo.Detector) *Lead {
	s.detector = detector
	return s
}

// Get retrieves a lead of a workspace
func (s *Lead) Get(ctx context.Context, workspaceID string, id uint) (*models.Lead, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, invalidInput(err)
	}
	lead, err := s.leads.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return lead, nil
}

// List retrieves a filtered, paginated list of leads, best scored first
func (s *Lead) List(ctx context.Context, workspaceID string, filter repos.LeadFilter, opts *models.ListOptions) ([]models.Lead, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, invalidInput(err)
	}
	return s.leads.List(ctx, workspaceID, filter, opts)
}

// Enrich fetches the profile of a lead, rescores it and fills contact details
// found in the biography. Contact fields already set are kept.
func (s *Lead) Enrich(ctx context.Context, workspaceID string, id uint) (*models.Lead, error) {
	lead, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if s.ig == nil {
		return nil, fmt.Errorf("%w: enrichment requires an instagram client", ErrNotConfigured)
	}
	session, _, err := accountSession(ctx, s.accounts, workspaceID, 0)
	if err != nil {
		return nil, err
	}

	profile, err := s.ig.FetchUserProfile(ctx, session, lead.IgUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile of %s: %w", lead.IgUsername, err)
	}
	applyProfile(lead, profile, s.now())
	s.fillLocation(lead, profile.Biography)

	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}
	logger.InfoWithFields("Lead enriched", logger.Fields{
		"lead_id":    lead.ID,
		"username":   lead.IgUsername,
		"lead_score": lead.LeadScore,
	})
	return lead, nil
}

func applyProfile(lead *models.Lead, p *instagram.Profile, now time.Time) {
	if p.FullName != "" {
		lead.FullName = p.FullName
	}
	lead.Bio = p.Biography
	lead.FollowerCount = p.FollowerCount
	lead.FollowingCount = p.FollowingCount
	lead.PostCount = p.MediaCount
	lead.IsVerified = p.IsVerified
	lead.IsBusiness = p.IsBusiness
	lead.IsPrivate = p.IsPrivate
	lead.EngagementRate = p.EngagementRate()
	lead.AccountAge = p.AccountAgeDays(now)
	lead.PostFrequency = p.PostsPerWeek

	lead.LeadScore = scoring.CalculateLeadScore(scoring.Factors{
		IsVerified:      p.IsVerified,
		IsBusiness:      p.IsBusiness,
		IsPrivate:       p.IsPrivate,
		FollowerCount:   p.FollowerCount,
		FollowingCount:  p.FollowingCount,
		EngagementRate:  lead.EngagementRate,
		AccountAgeDays:  lead.AccountAge,
		PostsPerWeek:    p.PostsPerWeek,
		MatchedKeywords: len(lead.MatchedKeywords),
		Bio:             p.Biography,
	})

	e := scoring.EnrichLeadData(p.Biography, p.ExternalURL)
	fillIfEmpty(&lead.Email, e.Email)
	fillIfEmpty(&lead.Phone, e.Phone)
	fillIfEmpty(&lead.Website, e.Website)
}

// fillLocation sets city and town from the bio when the lead has no city yet.
// Without a detector only a province hint is used.
func (s *Lead) fillLocation(lead *models.Lead, bio string) {
	if lead.City != nil && *lead.City != "" {
		return
	}
	if s.detector != nil {
		if loc := s.detector.DetectLocation(bio); loc != nil {
			lead.City = strPtr(loc.City)
			if loc.Town != "" {
				lead.Town = strPtr(loc.Town)
			}
		}
		return
	}
	fillIfEmpty(&lead.City, scoring.EnrichLeadData(bio, "").LocationHint)
}

func fillIfEmpty(dst **string, v string) {
	if v == "" || (*dst != nil && **dst != "") {
		return
	}
	*dst = &v
}
