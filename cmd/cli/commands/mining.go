package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
)

// GetMiningCmd returns the mining command
func GetMiningCmd() *cobra.Command {
	miningCmd := &cobra.Command{
		Use:   "mining",
		Short: "Mine post comments for leads",
	}
	miningCmd.AddCommand(newRunMiningCmd())
	miningCmd.AddCommand(newAutonomousCmd())
	miningCmd.AddCommand(newStopAutonomousCmd())
	return miningCmd
}

func newRunMiningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mine the comments of the given posts once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceID, err := getWorkspaceID(cmd)
			if err != nil {
				return err
			}
			rawPosts, _ := cmd.Flags().GetString("posts")
			keywords, _ := cmd.Flags().GetString("keywords")
			accountID, _ := cmd.Flags().GetUint("account-id")
			query, _ := cmd.Flags().GetString("query")

			var posts []services.PostRef
			for _, id := range splitList(rawPosts) {
				posts = append(posts, services.PostRef{ID: id})
			}

			res, err := apiClient.RunMining(context.Background(), handlers.MiningRunParams{
				WorkspaceID: workspaceID,
				AccountID:   accountID,
				Posts:       posts,
				Keywords:    splitList(keywords),
				SourceQuery: query,
			})
			if err != nil {
				return fmt.Errorf("error mining comments: %w", err)
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringP("posts", "p", "", "Comma separated post IDs")
	cmd.Flags().StringP("keywords", "k", "", "Comma separated keywords")
	cmd.Flags().Uint("account-id", 0, "Account used to read comments, the first active one when unset")
	cmd.Flags().String("query", "", "Free text stored as the lead source query")
	_ = cmd.MarkFlagRequired("posts")
	_ = cmd.MarkFlagRequired("keywords")
	return cmd
}

func newAutonomousCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autonomous",
		Short: "Start a background run that mines target accounts until a lead target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceID, err := getWorkspaceID(cmd)
			if err != nil {
				return err
			}
			runID, _ := cmd.Flags().GetString("run-id")
			targets, _ := cmd.Flags().GetString("targets")
			keywords, _ := cmd.Flags().GetString("keywords")
			leadTarget, _ := cmd.Flags().GetInt("lead-target")
			maxCycles, _ := cmd.Flags().GetInt("max-cycles")
			postsPerAccount, _ := cmd.Flags().GetInt("posts-per-account")
			accountID, _ := cmd.Flags().GetUint("account-id")

			id, err := apiClient.StartAutonomous(context.Background(), services.AutonomousRequest{
				RunID:           runID,
				WorkspaceID:     workspaceID,
				AccountID:       accountID,
				TargetAccounts:  splitList(targets),
				Keywords:        splitList(keywords),
				LeadTarget:      leadTarget,
				PostsPerAccount: postsPerAccount,
				MaxCycles:       maxCycles,
			})
			if err != nil {
				return fmt.Errorf("error starting autonomous run: %w", err)
			}
			return printJSON(cmd, map[string]string{"run_id": id})
		},
	}
	cmd.Flags().String("run-id", "", "Run ID, resumes the snapshot of an earlier run with the same ID")
	cmd.Flags().StringP("targets", "t", "", "Comma separated target accounts")
	cmd.Flags().StringP("keywords", "k", "", "Comma separated keywords")
	cmd.Flags().Int("lead-target", 0, "Number of new leads after which the run stops")
	cmd.Flags().Int("max-cycles", 0, "Maximum number of cycles, unbounded when 0")
	cmd.Flags().Int("posts-per-account", 0, "Recent posts fetched per target account")
	cmd.Flags().Uint("account-id", 0, "Account used to read Instagram")
	_ = cmd.MarkFlagRequired("targets")
	_ = cmd.MarkFlagRequired("keywords")
	_ = cmd.MarkFlagRequired("lead-target")
	return cmd
}

func newStopAutonomousCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask an autonomous run to stop before its next cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			if err := apiClient.StopAutonomous(context.Background(), runID); err != nil {
				return fmt.Errorf("error stopping autonomous run: %w", err)
			}
			return printJSON(cmd, map[string]string{"run_id": runID, "status": "stop requested"})
		},
	}
	cmd.Flags().String("run-id", "", "Run ID to stop")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}
