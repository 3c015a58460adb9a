package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/logger"
)

const (
	// discoveryWindow is how far back a discovery looks for posts
	discoveryWindow = 30 * 24 * time.Hour
	// DefaultPostLimit is the number of recent posts a discovery fetches
	DefaultPostLimit = 12

	extractionBaseDelay   = time.Minute
	extractionStaggerMin  = 2 * time.Minute
	extractionStaggerMax  = 5 * time.Minute
	extractionJitterMax   = 30 * time.Second
	defaultDiscoveryEvery = 24 * time.Hour
)

// ClaimResult reports one claim-and-process invocation
type ClaimResult struct {
	Claimed bool             `json:"claimed"`
	JobID   uint             `json:"job_id,omitempty"`
	JobType models.JobType   `json:"job_type,omitempty"`
	Status  models.JobStatus `json:"status,omitempty"`
	Error   string           `json:"error,omitempty"`
	// Detail is the job type specific outcome
	Detail interface{} `json:"detail,omitempty"`
}

// DiscoveryOutcome is the detail of a processed discovery job
type DiscoveryOutcome struct {
	PostsFetched      int    `json:"posts_fetched"`
	PostsRecent       int    `json:"posts_recent"`
	ExtractionJobIDs  []uint `json:"extraction_job_ids"`
	NextDiscoveryID   uint   `json:"next_discovery_id,omitempty"`
	NextDiscoveryTime string `json:"next_discovery_at,omitempty"`
}

// DMOutcome is the detail of a processed DM job
type DMOutcome struct {
	Sent         bool   `json:"sent"`
	Deferred     bool   `json:"deferred"`
	Reason       string `json:"reason,omitempty"`
	SuccessorID  uint   `json:"successor_id,omitempty"`
	SuccessorDue string `json:"successor_due,omitempty"`
}

// JobOptions tunes the job service
type JobOptions struct {
	// DiscoveryFrequency is used when a discovery recurrence cannot be parsed
	DiscoveryFrequency time.Duration
}

// Job provides business logic for the job queue
type Job struct {
	jobs      *repos.JobRepository
	accounts  *repos.AccountRepository
	leads     *repos.LeadRepository
	ig        instagram.Client
	mining    *Mining
	campaigns *Campaign
	opts      JobOptions

	now   func() time.Time
	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewJobService creates a new job service instance
func NewJobService(
	jobs *repos.JobRepository,
	accounts *repos.AccountRepository,
	leads *repos.LeadRepository,
	ig instagram.Client,
	mining *Mining,
	campaigns *Campaign,
	opts JobOptions,
) *Job {
	if opts.DiscoveryFrequency <= 0 {
		opts.DiscoveryFrequency = defaultDiscoveryEvery
	}
	return &Job{
		jobs:      jobs,
		accounts:  accounts,
		leads:     leads,
		ig:        ig,
		mining:    mining,
		campaigns: campaigns,
		opts:      opts,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// EnqueueRequest describes a job to add to the queue
type EnqueueRequest struct {
	WorkspaceID string
	JobType     models.JobType
	Payload     json.RawMessage
	// ScheduledAt defaults to now
	ScheduledAt time.Time
	AccountID   *uint
	CampaignID  *uint
	LeadID      *uint
}

// Enqueue validates and stores a new QUEUED job
func (s *Job) Enqueue(ctx context.Context, req EnqueueRequest) (*models.Job, error) {
	if err := models.ValidateWorkspaceID(req.WorkspaceID); err != nil {
		return nil, invalidInput(err)
	}
	if _, err := models.ParseJobType(string(req.JobType)); err != nil {
		return nil, invalidInput(err)
	}
	if err := models.ValidatePayload(req.JobType, req.Payload); err != nil {
		return nil, err
	}
	if req.ScheduledAt.IsZero() {
		req.ScheduledAt = s.now()
	}

	job := &models.Job{
		WorkspaceID:              req.WorkspaceID,
		JobType:                  req.JobType,
		Status:                   models.JobStatusQueued,
		Payload:                  req.Payload,
		ScheduledAt:              req.ScheduledAt,
		SenderInstagramAccountID: req.AccountID,
		CampaignID:               req.CampaignID,
		LeadID:                   req.LeadID,
	}
	if req.AccountID != nil {
		account, err := s.accounts.GetByID(ctx, *req.AccountID)
		if err != nil {
			return nil, lookupError(err)
		}
		if account.WorkspaceID != req.WorkspaceID {
			return nil, invalidInput(fmt.Errorf("instagram account %d belongs to another workspace", account.ID))
		}
		job.SenderUsername = account.Username
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// Get retrieves a job of a workspace
func (s *Job) Get(ctx context.Context, workspaceID string, id uint) (*models.Job, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, invalidInput(err)
	}
	job, err := s.jobs.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return job, nil
}

// List retrieves a paginated list of jobs
func (s *Job) List(ctx context.Context, workspaceID string, filter repos.JobFilter, opts *models.ListOptions) ([]models.Job, error) {
	if err := models.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, invalidInput(err)
	}
	return s.jobs.List(ctx, workspaceID, filter, opts)
}

// ClaimAndProcess atomically claims the oldest due job and processes it.
// A job that fails is marked FAILED and reported in the result, only storage
// errors are returned.
func (s *Job) ClaimAndProcess(ctx context.Context) (*ClaimResult, error) {
	job, err := s.jobs.ClaimNext(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &ClaimResult{Claimed: false}, nil
	}

	fields := logger.Fields{"job_id": job.ID, "job_type": job.JobType, "workspace_id": job.WorkspaceID}
	logger.InfoWithFields("Job claimed", fields)

	res := &ClaimResult{Claimed: true, JobID: job.ID, JobType: job.JobType}
	payload, err := models.DecodePayload(job.JobType, job.Payload)
	if err != nil {
		return s.fail(ctx, res, job, err, nil)
	}

	switch p := payload.(type) {
	case models.DiscoveryPayload:
		detail, err := s.processDiscovery(ctx, job, p)
		res.Detail = detail
		if err != nil {
			return s.fail(ctx, res, job, err, nil)
		}
		return s.complete(ctx, res, job, nil)

	case models.ExtractionPayload:
		detail, err := s.processExtraction(ctx, job, p)
		res.Detail = detail
		if err != nil {
			p.FailureReason = err.Error()
			return s.fail(ctx, res, job, err, p)
		}
		p.LeadsFound, p.LeadsSaved = detail.LeadsFound, detail.LeadsSaved
		return s.complete(ctx, res, job, p)

	case models.DMPayload:
		detail, err := s.processDM(ctx, job, p)
		res.Detail = detail
		if err != nil {
			return s.fail(ctx, res, job, err, nil)
		}
		if detail.Deferred {
			if err := s.jobs.MarkDeferred(ctx, job.ID, detail.Reason); err != nil {
				return nil, err
			}
			res.Status = models.JobStatusCompleted
			logger.InfoWithFields("Job deferred", fields)
			return res, nil
		}
		return s.complete(ctx, res, job, nil)
	}
	return s.fail(ctx, res, job, fmt.Errorf("%w: unsupported job type %s", models.ErrInvalidPayload, job.JobType), nil)
}

func (s *Job) complete(ctx context.Context, res *ClaimResult, job *models.Job, payload models.Payload) (*ClaimResult, error) {
	raw, err := encodeResultPayload(payload)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.MarkCompleted(ctx, job.ID, raw); err != nil {
		return nil, err
	}
	res.Status = models.JobStatusCompleted
	logger.InfoWithFields("Job completed", logger.Fields{"job_id": job.ID, "job_type": job.JobType})
	return res, nil
}

func (s *Job) fail(ctx context.Context, res *ClaimResult, job *models.Job, cause error, payload models.Payload) (*ClaimResult, error) {
	raw, err := encodeResultPayload(payload)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.MarkFailed(ctx, job.ID, cause.Error(), raw); err != nil {
		return nil, err
	}
	res.Status = models.JobStatusFailed
	res.Error = cause.Error()
	logger.WarnWithFields("Job failed", logger.Fields{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"error":    cause.Error(),
	})
	return res, nil
}

// encodeResultPayload marshals an updated payload, nil keeps the stored one
func encodeResultPayload(p models.Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return raw, nil
}

// session resolves the account a job acts as: the job's sender account, else
// the first active account of the workspace
func (s *Job) session(ctx context.Context, job *models.Job) (instagram.Session, *models.InstagramAccount, error) {
	var accountID uint
	if job.SenderInstagramAccountID != nil {
		accountID = *job.SenderInstagramAccountID
	}
	return accountSession(ctx, s.accounts, job.WorkspaceID, accountID)
}

func (s *Job) randBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return min + time.Duration(s.rnd.Int63n(int64(max-min)+1))
}

// processDiscovery fetches the recent posts of the target account, queues one
// extraction per post from the last 30 days with staggered due times, and
// queues its own successor when a recurrence is configured.
func (s *Job) processDiscovery(ctx context.Context, job *models.Job, p models.DiscoveryPayload) (*DiscoveryOutcome, error) {
	if s.ig == nil {
		return nil, fmt.Errorf("%w: discovery requires an instagram client", ErrNotConfigured)
	}
	session, _, err := s.session(ctx, job)
	if err != nil {
		return nil, err
	}
	limit := p.PostLimit
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	posts, err := s.ig.FetchRecentPosts(ctx, session, p.TargetAccount, limit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := now.Add(-discoveryWindow)
	out := &DiscoveryOutcome{PostsFetched: len(posts)}

	var extractions []*models.Job
	offset := extractionBaseDelay
	for _, post := range posts {
		if post.Time().Before(cutoff) {
			continue
		}
		if len(extractions) > 0 {
			offset += s.randBetween(extractionStaggerMin, extractionStaggerMax)
		}
		raw, err := models.EncodePayload(models.ExtractionPayload{
			PostID:         post.ID,
			PostCode:       post.Code,
			Caption:        post.Caption,
			TakenAt:        post.TakenAt,
			TargetAccount:  p.TargetAccount,
			Keywords:       p.Keywords,
			DiscoveryJobID: job.ID,
		})
		if err != nil {
			return nil, err
		}
		extractions = append(extractions, &models.Job{
			WorkspaceID:              job.WorkspaceID,
			JobType:                  models.JobTypeExtraction,
			Status:                   models.JobStatusQueued,
			Payload:                  raw,
			ScheduledAt:              now.Add(offset + s.randBetween(0, extractionJitterMax)),
			SenderUsername:           job.SenderUsername,
			SenderInstagramAccountID: job.SenderInstagramAccountID,
		})
	}
	out.PostsRecent = len(extractions)
	if err := s.jobs.CreateBatch(ctx, extractions); err != nil {
		return nil, fmt.Errorf("failed to queue extraction jobs: %w", err)
	}
	for _, e := range extractions {
		out.ExtractionJobIDs = append(out.ExtractionJobIDs, e.ID)
	}

	if every, ok := p.RecurrenceInterval(s.opts.DiscoveryFrequency); ok {
		next := &models.Job{
			WorkspaceID:              job.WorkspaceID,
			JobType:                  models.JobTypeDiscovery,
			Status:                   models.JobStatusQueued,
			Payload:                  job.Payload,
			ScheduledAt:              now.Add(every),
			SenderUsername:           job.SenderUsername,
			SenderInstagramAccountID: job.SenderInstagramAccountID,
		}
		if err := s.jobs.Create(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to queue next discovery: %w", err)
		}
		out.NextDiscoveryID = next.ID
		out.NextDiscoveryTime = next.ScheduledAt.UTC().Format(time.RFC3339)
	}

	logger.InfoWithFields("Discovery processed", logger.Fields{
		"job_id":         job.ID,
		"target_account": p.TargetAccount,
		"posts_fetched":  out.PostsFetched,
		"posts_recent":   out.PostsRecent,
	})
	return out, nil
}

// processExtraction mines the comments of one post
func (s *Job) processExtraction(ctx context.Context, job *models.Job, p models.ExtractionPayload) (*MiningResult, error) {
	if s.mining == nil {
		return nil, fmt.Errorf("%w: extraction requires the mining service", ErrNotConfigured)
	}
	session, _, err := s.session(ctx, job)
	if err != nil {
		return nil, err
	}
	res, err := s.mining.Run(ctx, MiningRequest{
		WorkspaceID: job.WorkspaceID,
		Session:     session,
		Posts:       []PostRef{{ID: p.PostID, Code: p.PostCode, Caption: p.Caption, TakenAt: p.TakenAt}},
		Keywords:    p.Keywords,
		Source:      DefaultLeadSource,
		SourceQuery: p.TargetAccount,
	})
	if err != nil {
		return nil, err
	}
	if len(res.PostFailures) > 0 {
		return res, errors.New(res.PostFailures[0].Reason)
	}
	if len(res.SaveFailures) > 0 && res.LeadsSaved == 0 {
		return res, fmt.Errorf("failed to save %d leads: %s", len(res.SaveFailures), res.SaveFailures[0].Reason)
	}
	return res, nil
}

// processDM sends one direct message. A DM belonging to a campaign that may
// not be sent now is deferred: the job completes unsent and a successor is
// queued at the corrected time.
func (s *Job) processDM(ctx context.Context, job *models.Job, p models.DMPayload) (*DMOutcome, error) {
	if s.ig == nil {
		return nil, fmt.Errorf("%w: sending requires an instagram client", ErrNotConfigured)
	}
	now := s.now()

	if job.CampaignID != nil && s.campaigns != nil {
		campaign, err := s.campaigns.GetCampaign(ctx, *job.CampaignID)
		if err != nil {
			return nil, err
		}
		d, err := s.campaigns.decide(ctx, campaign, now)
		if err != nil {
			return nil, err
		}
		if d.Reschedule {
			return s.deferDM(ctx, job, p, d.At, d.Reason)
		}
	}

	session, account, err := s.session(ctx, job)
	if err != nil {
		return nil, err
	}
	reserved, err := s.accounts.ReserveDailySlot(ctx, account.ID, now)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return s.deferDM(ctx, job, p, nextUTCDay(now), "account_daily_limit_reached")
	}

	if _, err := s.ig.SendDM(ctx, session, p.RecipientUsername, p.Message); err != nil {
		if relErr := s.accounts.ReleaseDailySlot(ctx, account.ID, now); relErr != nil {
			logger.Errorf("Failed to release daily slot of account %d: %v", account.ID, relErr)
		}
		return nil, err
	}
	if job.LeadID != nil && s.leads != nil {
		if err := s.leads.UpdateStatus(ctx, job.WorkspaceID, *job.LeadID, models.LeadStatusContacted); err != nil {
			logger.Warnf("Failed to mark lead %d contacted: %v", *job.LeadID, err)
		}
	}
	return &DMOutcome{Sent: true}, nil
}

func (s *Job) deferDM(ctx context.Context, job *models.Job, p models.DMPayload, at time.Time, reason string) (*DMOutcome, error) {
	p.DeferredFromJobID = job.ID
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	next := &models.Job{
		WorkspaceID:              job.WorkspaceID,
		JobType:                  models.JobTypeDM,
		Status:                   models.JobStatusQueued,
		Payload:                  raw,
		ScheduledAt:              at,
		SenderUsername:           job.SenderUsername,
		SenderInstagramAccountID: job.SenderInstagramAccountID,
		CampaignID:               job.CampaignID,
		LeadID:                   job.LeadID,
	}
	if err := s.jobs.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to queue deferred DM: %w", err)
	}
	return &DMOutcome{
		Deferred:     true,
		Reason:       reason,
		SuccessorID:  next.ID,
		SuccessorDue: at.UTC().Format(time.RFC3339),
	}, nil
}
