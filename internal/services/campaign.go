package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/logger"
	"github.com/socialora/outreach/internal/schedule"
)

const (
	// dueRecipientBatch bounds the recipients handled per campaign per pass
	dueRecipientBatch = 100
	// replyCheckLimit is the number of thread messages inspected for a reply
	replyCheckLimit = 20
)

// Campaign schedules campaign recipients and advances running campaigns
type Campaign struct {
	campaigns *repos.CampaignRepository
	jobs      *repos.JobRepository
	accounts  *repos.AccountRepository
	leads     *repos.LeadRepository
	ig        instagram.Client
	now       func() time.Time
}

// NewCampaignService creates a new campaign service instance
func NewCampaignService(
	campaigns *repos.CampaignRepository,
	jobs *repos.JobRepository,
	accounts *repos.AccountRepository,
	leads *repos.LeadRepository,
	ig instagram.Client,
) *Campaign {
	return &Campaign{
		campaigns: campaigns,
		jobs:      jobs,
		accounts:  accounts,
		leads:     leads,
		ig:        ig,
		now:       time.Now,
	}
}

// WindowOf builds the send window of a campaign
func WindowOf(c *models.Campaign) (schedule.Window, error) {
	w, err := schedule.NewWindow(c.SendStartTime, c.SendEndTime, c.Timezone, c.MessagesPerDay)
	if err != nil {
		return schedule.Window{}, invalidInput(fmt.Errorf("campaign %d: %w", c.ID, err))
	}
	return w, nil
}

// GetCampaign retrieves a campaign with its steps
func (s *Campaign) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return c, nil
}

// sentToday counts the messages the campaign sent on the local day of now
func (s *Campaign) sentToday(ctx context.Context, campaignID uint, w schedule.Window, now time.Time) (int64, error) {
	from, to := w.DayBounds(now)
	return s.jobs.CountSentBetween(ctx, campaignID, from, to)
}

// decide evaluates the send window of a campaign at now
func (s *Campaign) decide(ctx context.Context, c *models.Campaign, now time.Time) (schedule.Decision, error) {
	w, err := WindowOf(c)
	if err != nil {
		return schedule.Decision{}, err
	}
	sent, err := s.sentToday(ctx, c.ID, w, now)
	if err != nil {
		return schedule.Decision{}, err
	}
	return schedule.Decide(now, w, sent), nil
}

// ScheduleConfig controls recipient assignment
type ScheduleConfig struct {
	// RecipientIDs limits the assignment to these recipients, empty means every active recipient
	RecipientIDs []uint
	// AccountIDs are the sender accounts, assigned round-robin
	AccountIDs []uint
	// StartAt is the earliest send time, zero means now
	StartAt time.Time
	// Activate moves the campaign to RUNNING once scheduled
	Activate bool
}

// AssignRecipientsAndSchedule assigns sender accounts round-robin and spreads
// the first send of each recipient evenly over the campaign's send windows.
func (s *Campaign) AssignRecipientsAndSchedule(ctx context.Context, campaignID uint, cfg ScheduleConfig) ([]models.CampaignRecipient, error) {
	if len(cfg.AccountIDs) == 0 {
		return nil, invalidInput(fmt.Errorf("at least one sender account is required"))
	}
	campaign, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	w, err := WindowOf(campaign)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accounts.GetByIDs(ctx, cfg.AccountIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range cfg.AccountIDs {
		a, ok := accounts[id]
		if !ok {
			return nil, errors.Join(ErrNotFound, fmt.Errorf("instagram account %d", id))
		}
		if a.WorkspaceID != campaign.WorkspaceID {
			return nil, invalidInput(fmt.Errorf("instagram account %d belongs to another workspace", id))
		}
	}

	all, err := s.campaigns.ListRecipients(ctx, campaignID, cfg.RecipientIDs)
	if err != nil {
		return nil, err
	}
	recipients := all[:0]
	for _, r := range all {
		if r.Status.IsActive() {
			recipients = append(recipients, r)
		}
	}

	start := cfg.StartAt
	if start.IsZero() {
		start = s.now()
	}
	slots := w.Slots(start, len(recipients))
	for i := range recipients {
		accountID := cfg.AccountIDs[i%len(cfg.AccountIDs)]
		at := slots[i].UTC()
		if err := s.campaigns.ScheduleRecipient(ctx, recipients[i].ID, accountID, at); err != nil {
			return nil, fmt.Errorf("failed to schedule recipient %d: %w", recipients[i].ID, err)
		}
		recipients[i].AssignedAccountID = &accountID
		recipients[i].NextProcessAt = &at
	}

	if cfg.Activate && campaign.Status != models.CampaignStatusRunning {
		if err := s.campaigns.UpdateStatus(ctx, campaignID, models.CampaignStatusRunning); err != nil {
			return nil, err
		}
	}
	logger.InfoWithFields("Campaign recipients scheduled", logger.Fields{
		"campaign_id": campaignID,
		"recipients":  len(recipients),
		"accounts":    len(cfg.AccountIDs),
	})
	return recipients, nil
}

// ScheduleCheck is the result of checking a job against its campaign window
type ScheduleCheck struct {
	JobID       uint      `json:"job_id"`
	Updated     bool      `json:"updated"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason"`
}

// CheckJobSchedule re-evaluates a queued campaign job against the send window
// and the daily cap, moving it when it may not be sent at now. Calling it
// again without sends in between yields the same answer.
func (s *Campaign) CheckJobSchedule(ctx context.Context, jobID uint) (*ScheduleCheck, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, lookupError(err)
	}
	if job.CampaignID == nil {
		return nil, invalidInput(fmt.Errorf("job %d does not belong to a campaign", jobID))
	}
	if job.Status != models.JobStatusQueued {
		return nil, invalidInput(fmt.Errorf("job %d is %s, only queued jobs can be rescheduled", jobID, job.Status))
	}
	campaign, err := s.GetCampaign(ctx, *job.CampaignID)
	if err != nil {
		return nil, err
	}

	d, err := s.decide(ctx, campaign, s.now())
	if err != nil {
		return nil, err
	}
	check := &ScheduleCheck{JobID: jobID, ScheduledAt: job.ScheduledAt.UTC(), Reason: d.Reason}
	if !d.Reschedule {
		return check, nil
	}
	check.Updated = true
	check.ScheduledAt = d.At.UTC()
	if !job.ScheduledAt.Equal(d.At) {
		if err := s.jobs.UpdateScheduledAt(ctx, jobID, d.At); err != nil {
			return nil, err
		}
	}
	return check, nil
}

// CampaignOutcome reports the processing of one campaign
type CampaignOutcome struct {
	CampaignID  uint   `json:"campaign_id"`
	Success     bool   `json:"success"`
	SentCount   int    `json:"sent_count"`
	FailedCount int    `json:"failed_count"`
	Replied     int    `json:"replied"`
	Deferred    int    `json:"deferred"`
	Completed   bool   `json:"completed"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ProcessRunningCampaigns advances every RUNNING campaign, oldest first.
// A failing campaign is reported in its outcome and does not stop the others.
func (s *Campaign) ProcessRunningCampaigns(ctx context.Context) ([]CampaignOutcome, error) {
	campaigns, err := s.campaigns.ListRunning(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]CampaignOutcome, 0, len(campaigns))
	for i := range campaigns {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out, err := s.ProcessCampaign(ctx, &campaigns[i])
		if err != nil {
			logger.ErrorWithFields("Campaign processing failed", logger.Fields{
				"campaign_id": campaigns[i].ID,
				"error":       err.Error(),
			})
			outcomes = append(outcomes, CampaignOutcome{CampaignID: campaigns[i].ID, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, *out)
	}
	return outcomes, nil
}

// ProcessCampaign sends the current step to every due recipient of the campaign
func (s *Campaign) ProcessCampaign(ctx context.Context, c *models.Campaign) (*CampaignOutcome, error) {
	if s.ig == nil {
		return nil, fmt.Errorf("%w: campaign processing requires an instagram client", ErrNotConfigured)
	}
	if len(c.Steps) == 0 {
		return nil, invalidInput(fmt.Errorf("campaign %d has no steps", c.ID))
	}
	w, err := WindowOf(c)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sent, err := s.sentToday(ctx, c.ID, w, now)
	if err != nil {
		return nil, err
	}

	due, err := s.campaigns.DueRecipients(ctx, c.ID, now, dueRecipientBatch)
	if err != nil {
		return nil, err
	}
	out := &CampaignOutcome{CampaignID: c.ID, Success: true}

	d := schedule.Decide(now, w, sent)
	out.Reason = d.Reason
	if d.Reschedule {
		for _, r := range due {
			if err := s.campaigns.DeferRecipient(ctx, r.ID, d.At, d.Reason); err != nil {
				return nil, err
			}
		}
		out.Deferred = len(due)
		return out, nil
	}

	remaining := int64(-1)
	if c.MessagesPerDay > 0 {
		remaining = int64(c.MessagesPerDay) - sent
	}

	accountIDs := make([]uint, 0, len(due))
	for _, r := range due {
		if r.AssignedAccountID != nil {
			accountIDs = append(accountIDs, *r.AssignedAccountID)
		}
	}
	accounts, err := s.accounts.GetByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := &due[i]
		if remaining == 0 {
			if err := s.campaigns.DeferRecipient(ctx, r.ID, w.StartOn(now, 1), schedule.ReasonDailyLimit); err != nil {
				return nil, err
			}
			out.Deferred++
			continue
		}
		res := s.processRecipient(ctx, c, r, accounts, now)
		switch res {
		case recipientSent:
			out.SentCount++
			remaining--
		case recipientFailed:
			out.FailedCount++
		case recipientReplied:
			out.Replied++
		case recipientDeferred:
			out.Deferred++
		}
	}

	if err := s.campaigns.IncrementCounters(ctx, c.ID, out.SentCount, out.FailedCount); err != nil {
		return nil, err
	}
	active, err := s.campaigns.CountActiveRecipients(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if active == 0 {
		if err := s.campaigns.UpdateStatus(ctx, c.ID, models.CampaignStatusCompleted); err != nil {
			return nil, err
		}
		out.Completed = true
	}

	logger.InfoWithFields("Campaign processed", logger.Fields{
		"campaign_id": c.ID,
		"sent":        out.SentCount,
		"failed":      out.FailedCount,
		"replied":     out.Replied,
		"deferred":    out.Deferred,
		"completed":   out.Completed,
	})
	return out, nil
}

type recipientResult int

const (
	recipientSent recipientResult = iota
	recipientFailed
	recipientReplied
	recipientDeferred
	recipientSkipped
)

// processRecipient handles one due recipient. Storage errors are logged and
// reported as a failure of this recipient only.
func (s *Campaign) processRecipient(
	ctx context.Context,
	c *models.Campaign,
	r *models.CampaignRecipient,
	accounts map[uint]*models.InstagramAccount,
	now time.Time,
) recipientResult {
	fields := logger.Fields{"campaign_id": c.ID, "recipient_id": r.ID}
	fail := func(reason string) recipientResult {
		logger.WarnWithFields("Campaign recipient failed: "+reason, fields)
		if err := s.campaigns.FinishRecipient(ctx, r.ID, models.RecipientStatusFailed, reason); err != nil {
			logger.ErrorWithFields("Failed to update recipient: "+err.Error(), fields)
		}
		return recipientFailed
	}

	if r.CurrentStepOrder >= len(c.Steps) {
		if err := s.campaigns.FinishRecipient(ctx, r.ID, models.RecipientStatusCompleted, ""); err != nil {
			logger.ErrorWithFields("Failed to update recipient: "+err.Error(), fields)
		}
		return recipientSkipped
	}
	if r.AssignedAccountID == nil {
		return fail("no sender account assigned")
	}
	account, ok := accounts[*r.AssignedAccountID]
	if !ok {
		return fail(fmt.Sprintf("sender account %d not found", *r.AssignedAccountID))
	}
	if !account.IsActive {
		return fail(fmt.Sprintf("sender account %d is inactive", account.ID))
	}
	if r.Contact.IgUsername == "" {
		return fail("contact has no username")
	}
	session := sessionOf(account)

	if r.CurrentStepOrder > 0 && s.hasReplied(ctx, session, r) {
		if err := s.campaigns.FinishRecipient(ctx, r.ID, models.RecipientStatusReplied, ""); err != nil {
			logger.ErrorWithFields("Failed to update recipient: "+err.Error(), fields)
		}
		s.setLeadStatus(ctx, c.WorkspaceID, r.Contact.LeadID, models.LeadStatusReplied)
		return recipientReplied
	}

	reserved, err := s.accounts.ReserveDailySlot(ctx, account.ID, now)
	if err != nil {
		logger.ErrorWithFields("Failed to reserve daily slot: "+err.Error(), fields)
		return recipientFailed
	}
	if !reserved {
		next := nextUTCDay(now)
		if err := s.campaigns.DeferRecipient(ctx, r.ID, next, "account daily limit reached"); err != nil {
			logger.ErrorWithFields("Failed to defer recipient: "+err.Error(), fields)
		}
		return recipientDeferred
	}

	step := c.Steps[r.CurrentStepOrder]
	text := RenderTemplate(step.MessageTemplate, r.Contact)
	_, sendErr := s.ig.SendDM(ctx, session, r.Contact.IgUsername, text)
	s.recordDM(ctx, c, r, account, step.StepOrder, text, now, sendErr)

	if sendErr != nil {
		if err := s.accounts.ReleaseDailySlot(ctx, account.ID, now); err != nil {
			logger.ErrorWithFields("Failed to release daily slot: "+err.Error(), fields)
		}
		return fail(sendErr.Error())
	}

	if step.StepOrder == 0 {
		s.setLeadStatus(ctx, c.WorkspaceID, r.Contact.LeadID, models.LeadStatusContacted)
	}
	nextStep := r.CurrentStepOrder + 1
	if nextStep >= len(c.Steps) {
		if err := s.campaigns.FinishRecipient(ctx, r.ID, models.RecipientStatusCompleted, ""); err != nil {
			logger.ErrorWithFields("Failed to update recipient: "+err.Error(), fields)
		}
		return recipientSent
	}
	next := now.Add(time.Duration(c.Steps[nextStep].DelayMinutes) * time.Minute)
	if err := s.campaigns.AdvanceRecipient(ctx, r.ID, nextStep, next); err != nil {
		logger.ErrorWithFields("Failed to advance recipient: "+err.Error(), fields)
	}
	return recipientSent
}

// hasReplied reports whether the contact wrote into the thread. A failing
// lookup counts as no reply.
func (s *Campaign) hasReplied(ctx context.Context, session instagram.Session, r *models.CampaignRecipient) bool {
	msgs, err := s.ig.FetchThreadMessages(ctx, session, r.Contact.IgUsername, replyCheckLimit)
	if err != nil {
		logger.WarnWithFields("Reply check failed", logger.Fields{"recipient_id": r.ID, "error": err.Error()})
		return false
	}
	for _, m := range msgs {
		if !m.FromMe {
			return true
		}
	}
	return false
}

// recordDM stores the send attempt as a finished DM job
func (s *Campaign) recordDM(
	ctx context.Context,
	c *models.Campaign,
	r *models.CampaignRecipient,
	account *models.InstagramAccount,
	stepOrder int,
	text string,
	now time.Time,
	sendErr error,
) {
	payload, err := json.Marshal(models.DMPayload{
		RecipientUsername: r.Contact.IgUsername,
		Message:           text,
		RecipientID:       r.ID,
		StepOrder:         stepOrder,
	})
	if err != nil {
		logger.Errorf("Failed to encode DM payload: %v", err)
		return
	}
	campaignID, accountID := c.ID, account.ID
	job := &models.Job{
		WorkspaceID:              c.WorkspaceID,
		JobType:                  models.JobTypeDM,
		Status:                   models.JobStatusCompleted,
		Payload:                  payload,
		ScheduledAt:              now,
		SentAt:                   &now,
		SenderUsername:           account.Username,
		SenderInstagramAccountID: &accountID,
		CampaignID:               &campaignID,
		LeadID:                   r.Contact.LeadID,
	}
	if sendErr != nil {
		job.Status = models.JobStatusFailed
		job.SentAt = nil
		job.Error = sendErr.Error()
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		logger.ErrorWithFields("Failed to record DM job", logger.Fields{
			"campaign_id":  c.ID,
			"recipient_id": r.ID,
			"error":        err.Error(),
		})
	}
}

func (s *Campaign) setLeadStatus(ctx context.Context, workspaceID string, leadID *uint, status models.LeadStatus) {
	if leadID == nil || s.leads == nil {
		return
	}
	if err := s.leads.UpdateStatus(ctx, workspaceID, *leadID, status); err != nil {
		logger.WarnWithFields("Failed to update lead status", logger.Fields{
			"lead_id": *leadID,
			"status":  status,
			"error":   err.Error(),
		})
	}
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// RenderTemplate fills {{username}}, {{full_name}} and {{first_name}} from the
// contact. Unknown placeholders are left untouched.
func RenderTemplate(tmpl string, contact models.Contact) string {
	firstName := contact.IgUsername
	if fields := strings.Fields(contact.FullName); len(fields) > 0 {
		firstName = fields[0]
	}
	fullName := contact.FullName
	if fullName == "" {
		fullName = contact.IgUsername
	}
	values := map[string]string{
		"username":   contact.IgUsername,
		"full_name":  fullName,
		"first_name": firstName,
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := values[strings.ToLower(name)]; ok {
			return v
		}
		return m
	})
}

func sessionOf(a *models.InstagramAccount) instagram.Session {
	return instagram.Session{AccountID: a.ID, Username: a.Username, Cookie: a.SessionCookie}
}

// nextUTCDay is the start of the UTC day after now, when account counters reset
func nextUTCDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
