package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/geo"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/intent"
	"github.com/socialora/outreach/internal/logger"
	"github.com/socialora/outreach/internal/scoring"
)

const (
	// miningConcurrency bounds the posts fetched and the leads saved in parallel
	miningConcurrency = 5
	// commentPageSize is the number of comments fetched per post
	commentPageSize = 100
	// DefaultLeadSource is recorded on leads found by comment mining
	DefaultLeadSource = "comment_mining"
)

// PostRef identifies a post to mine along with the caption used for geo tagging
type PostRef struct {
	ID      string `json:"id" validate:"required"`
	Code    string `json:"code,omitempty"`
	Caption string `json:"caption,omitempty"`
	// TakenAt is in unix seconds
	TakenAt int64 `json:"taken_at,omitempty"`
}

// DateRange bounds comment timestamps, zero ends are open
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether t is inside the range, both ends inclusive
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// MiningRequest is one comment mining pass
type MiningRequest struct {
	WorkspaceID string
	Session     instagram.Session
	Posts       []PostRef
	Keywords    []string
	DateRange   *DateRange
	Source      string
	SourceQuery string
}

// PostFailure records a post whose comments could not be fetched
type PostFailure struct {
	PostID string `json:"post_id"`
	Reason string `json:"reason"`
}

// SaveFailure records a lead that could not be persisted
type SaveFailure struct {
	IgUserID string `json:"ig_user_id"`
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

// MiningResult reports a mining pass, failures included
type MiningResult struct {
	CommentsScanned int `json:"comments_scanned"`
	// LeadsFound counts distinct users with a matching comment
	LeadsFound   int           `json:"leads_found"`
	LeadsSaved   int           `json:"leads_saved"`
	LeadsCreated int           `json:"leads_created"`
	PostFailures []PostFailure `json:"post_failures,omitempty"`
	SaveFailures []SaveFailure `json:"save_failures,omitempty"`
	// ProcessedPostIDs lists the posts whose comments were fetched
	ProcessedPostIDs []string `json:"processed_post_ids,omitempty"`
	Outcome          Outcome  `json:"outcome"`
}

// Mining turns matching comments into scored, geo tagged leads
type Mining struct {
	ig         instagram.Client
	leads      *repos.LeadRepository
	detector   *geo.Detector
	classifier intent.Classifier
	accounts   *repos.AccountRepository
	now        func() time.Time
}

// NewMiningService creates a mining service, classifier may be nil
func NewMiningService(ig instagram.Client, leads *repos.LeadRepository, detector *geo.Detector, classifier intent.Classifier) *Mining {
	return &Mining{
		ig:         ig,
		leads:      leads,
		detector:   detector,
		classifier: classifier,
		now:        time.Now,
	}
}

// WithAccounts lets RunForAccount resolve sender sessions
func (s *Mining) WithAccounts(accounts *repos.AccountRepository) *Mining {
	s.accounts = accounts
	return s
}

// RunForAccount runs a pass as the given account of the workspace, the first
// active one when accountID is zero
func (s *Mining) RunForAccount(ctx context.Context, accountID uint, req MiningRequest) (*MiningResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	session, _, err := accountSession(ctx, s.accounts, req.WorkspaceID, accountID)
	if err != nil {
		return nil, err
	}
	req.Session = session
	return s.Run(ctx, req)
}

// candidate is a matching comment turned into a lead observation
type candidate struct {
	match repos.LeadMatch
}

type postScan struct {
	candidates []candidate
	scanned    int
	err        error
}

func (r MiningRequest) validate() error {
	if err := models.ValidateWorkspaceID(r.WorkspaceID); err != nil {
		return invalidInput(err)
	}
	if len(r.Posts) == 0 {
		return invalidInput(fmt.Errorf("at least one post is required"))
	}
	for _, p := range r.Posts {
		if p.ID == "" {
			return invalidInput(fmt.Errorf("post id cannot be empty"))
		}
	}
	if len(normalizeKeywords(r.Keywords)) == 0 {
		return invalidInput(fmt.Errorf("at least one keyword is required"))
	}
	return nil
}

// normalizeKeywords lower-cases, trims and deduplicates keywords
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(geo.Normalize(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Run mines the comments of the requested posts. A post that cannot be fetched
// or a lead that cannot be saved is recorded in the result and does not stop the pass.
func (s *Mining) Run(ctx context.Context, req MiningRequest) (*MiningResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if s.ig == nil || s.leads == nil || s.detector == nil {
		return nil, fmt.Errorf("%w: mining requires an instagram client, a lead store and a detector", ErrNotConfigured)
	}
	keywords := normalizeKeywords(req.Keywords)
	now := s.now()

	scans := make([]postScan, len(req.Posts))
	var g errgroup.Group
	g.SetLimit(miningConcurrency)
	for i := range req.Posts {
		i := i
		g.Go(func() error {
			scans[i] = s.scanPost(ctx, req, req.Posts[i], keywords, now)
			return nil
		})
	}
	_ = g.Wait()

	res := &MiningResult{}
	// one entry per user, later posts and comments win but keywords accumulate
	byUser := make(map[string]candidate)
	var order []string
	for i, scan := range scans {
		if scan.err != nil {
			logger.WarnWithFields("Failed to fetch comments, skipping post", logger.Fields{
				"post_id": req.Posts[i].ID,
				"error":   scan.err.Error(),
			})
			res.PostFailures = append(res.PostFailures, PostFailure{PostID: req.Posts[i].ID, Reason: scan.err.Error()})
			continue
		}
		res.ProcessedPostIDs = append(res.ProcessedPostIDs, req.Posts[i].ID)
		res.CommentsScanned += scan.scanned
		for _, c := range scan.candidates {
			id := c.match.Lead.IgUserID
			if prev, ok := byUser[id]; ok {
				c.match.Lead.MatchedKeywords = repos.UnionStrings(prev.match.Lead.MatchedKeywords, c.match.Lead.MatchedKeywords)
			} else {
				order = append(order, id)
			}
			byUser[id] = c
		}
	}
	res.LeadsFound = len(order)

	s.saveLeads(ctx, order, byUser, res)

	res.Outcome = outcomeOf(len(req.Posts)+res.LeadsFound, len(res.PostFailures)+len(res.SaveFailures))
	logger.InfoWithFields("Comment mining finished", logger.Fields{
		"workspace_id":  req.WorkspaceID,
		"posts":         len(req.Posts),
		"leads_found":   res.LeadsFound,
		"leads_saved":   res.LeadsSaved,
		"post_failures": len(res.PostFailures),
		"save_failures": len(res.SaveFailures),
	})
	return res, nil
}

func (s *Mining) scanPost(ctx context.Context, req MiningRequest, post PostRef, keywords []string, now time.Time) postScan {
	comments, err := s.ig.FetchComments(ctx, req.Session, post.ID, commentPageSize)
	if err != nil {
		return postScan{err: err}
	}

	// the caption describes the listing, detect once per post
	var (
		loc         = s.detector.DetectLocation(post.Caption)
		propType    = s.detector.DetectPropertyType(post.Caption)
		propSubType = s.detector.DetectPropertySubType(post.Caption)
		listingType = s.detector.DetectListingType(post.Caption)
	)

	scan := postScan{scanned: len(comments)}
	for _, c := range comments {
		if c.User.PK == "" || c.User.Username == "" {
			continue
		}
		at := c.Time()
		if !req.DateRange.Contains(at) {
			continue
		}
		matched := matchKeywords(geo.Normalize(c.Text), keywords)
		if len(matched) == 0 {
			continue
		}

		lead := &models.Lead{
			WorkspaceID:     req.WorkspaceID,
			IgUserID:        c.User.PK,
			IgUsername:      c.User.Username,
			FullName:        c.User.FullName,
			MatchedKeywords: matched,
			Source:          req.Source,
			SourceQuery:     req.SourceQuery,
			LeadScore:       scoring.RecencyScore(now.Sub(at)),
			CommentDate:     &at,
			CommentLink:     postLink(post),
			Notes:           "Comment: " + c.Text,
		}
		if lead.Source == "" {
			lead.Source = DefaultLeadSource
		}
		if loc != nil {
			lead.City = strPtr(loc.City)
			if loc.Town != "" {
				lead.Town = strPtr(loc.Town)
			}
		}
		if propType != "" {
			lead.PropertyType = strPtr(propType)
		}
		if propSubType != "" {
			lead.PropertySubType = strPtr(propSubType)
		}
		lead.ListingType = &listingType

		s.classify(ctx, lead, c.Text, post.Caption)
		scan.candidates = append(scan.candidates, candidate{match: repos.LeadMatch{Lead: lead, CommentID: c.ID, PostID: post.ID}})
	}
	return scan
}

// classify records the buyer intent of a matching comment when a classifier is configured
func (s *Mining) classify(ctx context.Context, lead *models.Lead, comment, caption string) {
	if s.classifier == nil {
		return
	}
	res, err := s.classifier.Classify(ctx, comment, caption)
	if err != nil {
		logger.WarnWithFields("Intent classification failed", logger.Fields{
			"ig_user_id": lead.IgUserID,
			"error":      err.Error(),
		})
		return
	}
	score := res.Score
	lead.IntentScore = &score
	if res.Reason != "" {
		lead.Notes += fmt.Sprintf("\nIntent (%s, %d): %s", res.Source, res.Score, res.Reason)
	}
}

func (s *Mining) saveLeads(ctx context.Context, order []string, byUser map[string]candidate, res *MiningResult) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(miningConcurrency)
	for _, id := range order {
		c := byUser[id]
		g.Go(func() error {
			out, err := s.leads.Upsert(ctx, c.match)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.WarnWithFields("Failed to save lead", logger.Fields{
					"ig_user_id": c.match.Lead.IgUserID,
					"username":   c.match.Lead.IgUsername,
					"error":      err.Error(),
				})
				res.SaveFailures = append(res.SaveFailures, SaveFailure{
					IgUserID: c.match.Lead.IgUserID,
					Username: c.match.Lead.IgUsername,
					Reason:   err.Error(),
				})
				return nil
			}
			res.LeadsSaved++
			if out.Created {
				res.LeadsCreated++
			}
			return nil
		})
	}
	_ = g.Wait()
}

// matchKeywords returns the keywords contained in the normalized text
func matchKeywords(text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func postLink(p PostRef) string {
	return instagram.Post{ID: p.ID, Code: p.Code}.Link()
}

func strPtr(s string) *string {
	return &s
}
