package repos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/socialora/outreach/internal/db/models"
)

type CampaignRepositoryTestSuite struct {
	DBRepositoryTestSuite
}

func TestCampaignRepository(t *testing.T) {
	suite.Run(t, new(CampaignRepositoryTestSuite))
}

func (s *CampaignRepositoryTestSuite) addRecipients(campaign *models.Campaign, n int) []*models.CampaignRecipient {
	recipients := make([]*models.CampaignRecipient, 0, n)
	for i := 0; i < n; i++ {
		contact := &models.Contact{WorkspaceID: testWorkspace, IgUsername: "contact", FullName: "Ayşe Yılmaz"}
		s.Require().NoError(s.campaignRepo.CreateContact(s.ctx, contact))
		recipients = append(recipients, &models.CampaignRecipient{ContactID: contact.ID})
	}
	s.Require().NoError(s.campaignRepo.AddRecipients(s.ctx, campaign.ID, recipients))
	return recipients
}

func (s *CampaignRepositoryTestSuite) TestCreateAndGet() {
	campaign := s.createCampaign(models.CampaignStatusDraft)

	found, err := s.campaignRepo.GetByID(s.ctx, campaign.ID)
	s.Require().NoError(err)
	s.Require().Len(found.Steps, 2)
	s.Equal(0, found.Steps[0].StepOrder)
	s.Equal(1, found.Steps[1].StepOrder)
}

func (s *CampaignRepositoryTestSuite) TestCreateRejectsBadSteps() {
	campaign := &models.Campaign{
		WorkspaceID: testWorkspace,
		Name:        "bad",
		Steps:       []models.CampaignStep{{StepOrder: 0, DelayMinutes: 30, MessageTemplate: "x"}},
	}
	s.Error(s.campaignRepo.Create(s.ctx, campaign))
}

func (s *CampaignRepositoryTestSuite) TestListRunningOldestFirst() {
	first := s.createCampaign(models.CampaignStatusRunning)
	s.createCampaign(models.CampaignStatusPaused)
	second := s.createCampaign(models.CampaignStatusRunning)

	campaigns, err := s.campaignRepo.ListRunning(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(campaigns, 2)
	s.Equal(first.ID, campaigns[0].ID)
	s.Equal(second.ID, campaigns[1].ID)
	s.Len(campaigns[0].Steps, 2)
}

func (s *CampaignRepositoryTestSuite) TestRecipientsLifecycle() {
	campaign := s.createCampaign(models.CampaignStatusRunning)
	recipients := s.addRecipients(campaign, 3)

	stored, err := s.campaignRepo.GetByID(s.ctx, campaign.ID)
	s.Require().NoError(err)
	s.Equal(3, stored.TotalRecipients)

	now := time.Now().UTC()
	s.Require().NoError(s.campaignRepo.ScheduleRecipient(s.ctx, recipients[0].ID, 1, now.Add(-time.Minute)))
	s.Require().NoError(s.campaignRepo.ScheduleRecipient(s.ctx, recipients[1].ID, 1, now.Add(time.Hour)))
	// recipients[2] has no next_process_at and is due immediately

	due, err := s.campaignRepo.DueRecipients(s.ctx, campaign.ID, now, 10)
	s.Require().NoError(err)
	s.Len(due, 2)
	for _, r := range due {
		s.NotEqual(recipients[1].ID, r.ID)
		s.Equal("Ayşe Yılmaz", r.Contact.FullName)
	}

	s.Require().NoError(s.campaignRepo.AdvanceRecipient(s.ctx, recipients[0].ID, 1, now.Add(time.Hour)))
	// moving backwards is ignored
	s.Require().NoError(s.campaignRepo.AdvanceRecipient(s.ctx, recipients[0].ID, 0, now))

	list, err := s.campaignRepo.ListRecipients(s.ctx, campaign.ID, []uint{recipients[0].ID})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(1, list[0].CurrentStepOrder)
	s.Equal(models.RecipientStatusInProgress, list[0].Status)
	s.Require().NotNil(list[0].AssignedAccountID)
	s.Equal(uint(1), *list[0].AssignedAccountID)

	s.Require().NoError(s.campaignRepo.FinishRecipient(s.ctx, recipients[2].ID, models.RecipientStatusReplied, ""))
	s.Require().NoError(s.campaignRepo.FinishRecipient(s.ctx, recipients[1].ID, models.RecipientStatusFailed, "send failed"))

	active, err := s.campaignRepo.CountActiveRecipients(s.ctx, campaign.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), active)
}

func (s *CampaignRepositoryTestSuite) TestCountersAndStatus() {
	campaign := s.createCampaign(models.CampaignStatusRunning)

	s.Require().NoError(s.campaignRepo.IncrementCounters(s.ctx, campaign.ID, 2, 1))
	s.Require().NoError(s.campaignRepo.IncrementCounters(s.ctx, campaign.ID, 1, 0))
	s.Require().NoError(s.campaignRepo.UpdateStatus(s.ctx, campaign.ID, models.CampaignStatusCompleted))

	stored, err := s.campaignRepo.GetByID(s.ctx, campaign.ID)
	s.Require().NoError(err)
	s.Equal(3, stored.SentCount)
	s.Equal(1, stored.FailedCount)
	s.Equal(models.CampaignStatusCompleted, stored.Status)
}
