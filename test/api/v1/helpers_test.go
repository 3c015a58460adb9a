package api_test

import (
	"errors"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/test"
)

// requireStatus asserts err is an API error with the given HTTP status
func requireStatus(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var fe *fiber.Error
	require.True(t, errors.As(err, &fe), "expected a fiber error, got %v", err)
	require.Equal(t, code, fe.Code, fe.Message)
}

// closedWindow returns send window bounds that never contain now
func closedWindow(now time.Time) (start, end string) {
	if now.UTC().Hour() < 12 {
		return "18:00", "20:00"
	}
	return "04:00", "06:00"
}

func createCampaign(t *testing.T, suite *test.Suite, status models.CampaignStatus, start, end string) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		WorkspaceID:    test.DefaultWorkspace,
		Name:           "bahar",
		Status:         status,
		SendStartTime:  start,
		SendEndTime:    end,
		Timezone:       "UTC",
		MessagesPerDay: 50,
		Steps: []models.CampaignStep{
			{StepOrder: 0, MessageTemplate: "Merhaba {{first_name}}"},
		},
	}
	require.NoError(t, suite.CampaignRepo.Create(suite.Context(), campaign))
	return campaign
}

func addRecipient(t *testing.T, suite *test.Suite, campaignID uint, username string) *models.CampaignRecipient {
	t.Helper()
	contact := &models.Contact{WorkspaceID: test.DefaultWorkspace, IgUsername: username, FullName: username}
	require.NoError(t, suite.CampaignRepo.CreateContact(suite.Context(), contact))
	r := &models.CampaignRecipient{ContactID: contact.ID}
	require.NoError(t, suite.CampaignRepo.AddRecipients(suite.Context(), campaignID, []*models.CampaignRecipient{r}))
	return r
}

func createLead(t *testing.T, suite *test.Suite, igUserID, username string, score int) *models.Lead {
	t.Helper()
	res, err := suite.LeadRepo.Upsert(suite.Context(), repos.LeadMatch{Lead: &models.Lead{
		WorkspaceID:     test.DefaultWorkspace,
		IgUserID:        igUserID,
		IgUsername:      username,
		MatchedKeywords: []string{"fiyat"},
		Source:          "comment_mining",
	}})
	require.NoError(t, err)
	lead := res.Lead
	if score > 0 {
		lead.LeadScore = score
		require.NoError(t, suite.LeadRepo.Update(suite.Context(), lead))
	}
	return lead
}
