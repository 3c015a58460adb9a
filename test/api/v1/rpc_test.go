package api_test

import (
	"context"
	"testing"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
	"github.com/socialora/outreach/test"
)

func TestRPC_LeadMethods(t *testing.T) {
	suite := test.NewSuite(t)
	defer suite.Cleanup()

	low := createLead(t, suite, "u1", "ali", 0)
	high := createLead(t, suite, "u2", "veli", 80)

	t.Run("get", func(t *testing.T) {
		lead, err := suite.APIClient.GetLead(suite.Context(), handlers.LeadGetParams{WorkspaceID: test.DefaultWorkspace, LeadID: low.ID})
		require.NoError(t, err)
		assert.Equal(t, "ali", lead.IgUsername)
		assert.Equal(t, models.LeadStatusNew, lead.Status)
	})

	t.Run("get unknown lead", func(t *testing.T) {
		_, err := suite.APIClient.GetLead(suite.Context(), handlers.LeadGetParams{WorkspaceID: test.DefaultWorkspace, LeadID: 4242})
		requireStatus(t, err, fiber.StatusNotFound)
	})

	t.Run("get from another workspace", func(t *testing.T) {
		_, err := suite.APIClient.GetLead(suite.Context(), handlers.LeadGetParams{WorkspaceID: "ws-other", LeadID: low.ID})
		requireStatus(t, err, fiber.StatusNotFound)
	})

	t.Run("list orders by score", func(t *testing.T) {
		leads, err := suite.APIClient.ListLeads(suite.Context(), handlers.LeadListParams{WorkspaceID: test.DefaultWorkspace})
		require.NoError(t, err)
		require.Len(t, leads, 2)
		assert.Equal(t, high.ID, leads[0].ID)
		assert.Equal(t, low.ID, leads[1].ID)
	})

	t.Run("list with minimum score", func(t *testing.T) {
		leads, err := suite.APIClient.ListLeads(suite.Context(), handlers.LeadListParams{WorkspaceID: test.DefaultWorkspace, MinScore: 50})
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, "veli", leads[0].IgUsername)
	})

	t.Run("list pages", func(t *testing.T) {
		leads, err := suite.APIClient.ListLeads(suite.Context(), handlers.LeadListParams{WorkspaceID: test.DefaultWorkspace, Page: 2, Limit: 1})
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, low.ID, leads[0].ID)
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		_, err := suite.APIClient.ListLeads(suite.Context(), handlers.LeadListParams{WorkspaceID: test.DefaultWorkspace, Status: "hot"})
		requireStatus(t, err, fiber.StatusBadRequest)
	})
}

func TestRPC_LeadEnrich(t *testing.T) {
	suite := test.NewSuite(t)
	defer suite.Cleanup()

	lead := createLead(t, suite, "u1", "ali", 0)

	_, err := suite.APIClient.EnrichLead(suite.Context(), handlers.LeadEnrichParams{WorkspaceID: test.DefaultWorkspace, LeadID: lead.ID})
	requireStatus(t, err, fiber.StatusInternalServerError)

	suite.CreateAccount("sender", 20)
	suite.IG.FetchUserProfileFn = func(_ context.Context, _ instagram.Session, username string) (*instagram.Profile, error) {
		return &instagram.Profile{
			PK:            "u1",
			Username:      username,
			FullName:      "Ali Veli",
			Biography:     "Kadıköy emlak. info@ali.com",
			FollowerCount: 1200,
			MediaCount:    40,
		}, nil
	}

	enriched, err := suite.APIClient.EnrichLead(suite.Context(), handlers.LeadEnrichParams{WorkspaceID: test.DefaultWorkspace, LeadID: lead.ID})
	require.NoError(t, err)
	assert.Equal(t, "Ali Veli", enriched.FullName)
	assert.Equal(t, 1200, enriched.FollowerCount)
	require.NotNil(t, enriched.Email)
	assert.Equal(t, "info@ali.com", *enriched.Email)
}

func TestRPC_RejectsInvalidParams(t *testing.T) {
	suite := test.NewSuite(t)
	defer suite.Cleanup()

	_, err := suite.APIClient.GetLead(suite.Context(), handlers.LeadGetParams{WorkspaceID: test.DefaultWorkspace})
	requireStatus(t, err, fiber.StatusBadRequest)

	_, err = suite.APIClient.ListJobs(suite.Context(), handlers.JobListParams{})
	requireStatus(t, err, fiber.StatusBadRequest)
}
