package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/socialora/outreach/pkg/api/v1/handlers"
)

// recipientOutput represents the filtered output for a scheduled recipient
type recipientOutput struct {
	ID                uint       `json:"id"`
	Username          string     `json:"username,omitempty"`
	Status            string     `json:"status"`
	AssignedAccountID *uint      `json:"assigned_account_id,omitempty"`
	NextProcessAt     *time.Time `json:"next_process_at,omitempty"`
}

type scheduleOutput struct {
	CampaignID uint              `json:"campaign_id"`
	Scheduled  int               `json:"scheduled"`
	Recipients []recipientOutput `json:"recipients"`
}

// GetCampaignsCmd returns the campaigns command
func GetCampaignsCmd() *cobra.Command {
	campaignsCmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Schedule and advance campaigns",
	}
	campaignsCmd.AddCommand(newProcessCampaignsCmd())
	campaignsCmd.AddCommand(newScheduleCampaignCmd())
	return campaignsCmd
}

func newProcessCampaignsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Run one pass over the running campaigns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outcomes, err := apiClient.ProcessCampaigns(context.Background())
			if err != nil {
				return fmt.Errorf("error processing campaigns: %w", err)
			}
			return printJSON(cmd, outcomes)
		},
	}
}

func newScheduleCampaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Assign sender accounts and first send times to campaign recipients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			campaignID, _ := cmd.Flags().GetUint("id")
			rawAccounts, _ := cmd.Flags().GetString("accounts")
			rawRecipients, _ := cmd.Flags().GetString("recipients")
			activate, _ := cmd.Flags().GetBool("activate")

			accountIDs, err := parseIDs(rawAccounts)
			if err != nil {
				return fmt.Errorf("invalid --accounts: %w", err)
			}
			if len(accountIDs) == 0 {
				return fmt.Errorf("at least one sender account is required")
			}
			recipientIDs, err := parseIDs(rawRecipients)
			if err != nil {
				return fmt.Errorf("invalid --recipients: %w", err)
			}
			startAt, err := scheduledAt(cmd)
			if err != nil {
				return err
			}

			res, err := apiClient.ScheduleCampaign(context.Background(), campaignID, handlers.ScheduleCampaignParams{
				AccountIDs:   accountIDs,
				RecipientIDs: recipientIDs,
				StartAt:      startAt,
				Activate:     activate,
			})
			if err != nil {
				return fmt.Errorf("error scheduling campaign: %w", err)
			}

			output := scheduleOutput{
				CampaignID: res.CampaignID,
				Scheduled:  res.Scheduled,
				Recipients: make([]recipientOutput, len(res.Recipients)),
			}
			for i, r := range res.Recipients {
				output.Recipients[i] = recipientOutput{
					ID:                r.ID,
					Username:          r.Contact.IgUsername,
					Status:            string(r.Status),
					AssignedAccountID: r.AssignedAccountID,
					NextProcessAt:     r.NextProcessAt,
				}
			}
			return printJSON(cmd, output)
		},
	}
	cmd.Flags().UintP("id", "i", 0, "Campaign ID")
	cmd.Flags().StringP("accounts", "a", "", "Comma separated sender account IDs, assigned round-robin")
	cmd.Flags().String("recipients", "", "Comma separated recipient IDs, all active recipients when empty")
	cmd.Flags().String("at", "", "Earliest first send (RFC3339), defaults to now")
	cmd.Flags().Bool("activate", false, "Move the campaign to RUNNING once scheduled")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("accounts")
	return cmd
}
