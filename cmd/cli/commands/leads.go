package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
)

// leadOutput represents the filtered output for a lead
type leadOutput struct {
	ID          uint     `json:"id"`
	Username    string   `json:"username"`
	FullName    string   `json:"full_name,omitempty"`
	Status      string   `json:"status"`
	Score       int      `json:"score"`
	IntentScore *int     `json:"intent_score,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	City        *string  `json:"city,omitempty"`
	Email       *string  `json:"email,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
}

// leadListOutput represents the filtered output for a list of leads
type leadListOutput struct {
	Leads []leadOutput `json:"leads"`
}

func toLeadOutput(lead models.Lead) leadOutput {
	return leadOutput{
		ID:          lead.ID,
		Username:    lead.IgUsername,
		FullName:    lead.FullName,
		Status:      string(lead.Status),
		Score:       lead.LeadScore,
		IntentScore: lead.IntentScore,
		Keywords:    lead.MatchedKeywords,
		City:        lead.City,
		Email:       lead.Email,
		Phone:       lead.Phone,
	}
}

// GetLeadsCmd returns the leads command
func GetLeadsCmd() *cobra.Command {
	leadsCmd := &cobra.Command{
		Use:   "leads",
		Short: "Browse and enrich mined leads",
	}
	leadsCmd.AddCommand(newListLeadsCmd())
	leadsCmd.AddCommand(newGetLeadCmd())
	leadsCmd.AddCommand(newEnrichLeadCmd())
	return leadsCmd
}

func newListLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the leads of a workspace, best score first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceID, err := getWorkspaceID(cmd)
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			city, _ := cmd.Flags().GetString("city")
			minScore, _ := cmd.Flags().GetInt("min-score")
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")

			leads, err := apiClient.ListLeads(context.Background(), handlers.LeadListParams{
				WorkspaceID: workspaceID,
				Status:      status,
				City:        city,
				MinScore:    minScore,
				Page:        page,
				Limit:       limit,
			})
			if err != nil {
				return fmt.Errorf("error fetching leads: %w", err)
			}

			output := leadListOutput{Leads: make([]leadOutput, len(leads))}
			for i, lead := range leads {
				output.Leads[i] = toLeadOutput(lead)
			}
			return printJSON(cmd, output)
		},
	}
	cmd.Flags().String("status", "", "Filter by status (new, contacted, replied, converted, unsubscribed)")
	cmd.Flags().String("city", "", "Filter by city")
	cmd.Flags().Int("min-score", 0, "Minimum lead score")
	cmd.Flags().IntP("page", "g", 1, "Page number for pagination")
	cmd.Flags().IntP("limit", "l", 0, "Limit the number of leads returned")
	return cmd
}

func newGetLeadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a specific lead",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceID, err := getWorkspaceID(cmd)
			if err != nil {
				return err
			}
			leadID, _ := cmd.Flags().GetUint("id")

			lead, err := apiClient.GetLead(context.Background(), handlers.LeadGetParams{WorkspaceID: workspaceID, LeadID: leadID})
			if err != nil {
				return fmt.Errorf("error fetching lead: %w", err)
			}
			return printJSON(cmd, toLeadOutput(lead))
		},
	}
	cmd.Flags().UintP("id", "i", 0, "Lead ID to fetch")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newEnrichLeadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Refresh a lead from its Instagram profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceID, err := getWorkspaceID(cmd)
			if err != nil {
				return err
			}
			leadID, _ := cmd.Flags().GetUint("id")

			lead, err := apiClient.EnrichLead(context.Background(), handlers.LeadEnrichParams{WorkspaceID: workspaceID, LeadID: leadID})
			if err != nil {
				return fmt.Errorf("error enriching lead: %w", err)
			}
			return printJSON(cmd, toLeadOutput(lead))
		},
	}
	cmd.Flags().UintP("id", "i", 0, "Lead ID to enrich")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
