package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	ID             uint       `json:"id"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	SenderUsername string     `json:"sender_username,omitempty"`
	CampaignID     *uint      `json:"campaign_id,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// jobListOutput represents the filtered output for a list of jobs
type jobListOutput struct {
	Jobs []jobOutput `json:"jobs"`
}

func toJobOutput(job models.Job) jobOutput {
	return jobOutput{
		ID:             job.ID,
		Type:           string(job.JobType),
		Status:         string(job.Status),
		ScheduledAt:    job.ScheduledAt.UTC(),
		SentAt:         job.SentAt,
		SenderUsername: job.SenderUsername,
		CampaignID:     job.CampaignID,
		Error:          job.Error,
	}
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage the job queue",
	}
	jobsCmd.AddCommand(newGetJobCmd())
	jobsCmd.AddCommand(newListJobsCmd())
	jobsCmd.AddCommand(newClaimJobCmd())
	jobsCmd.AddCommand(newEnqueueDMCmd())
	jobsCmd.AddCommand(newEnqueueDiscoveryCmd())
	jobsCmd.AddCommand(newCheckScheduleCmd())
	return jobsCmd
}

func newGetJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a specific job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceID, err := getWorkspaceID(cmd)
			if err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetUint("id")

			job, err := apiClient.GetJob(context.Background(), workspaceID, jobID)
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			return printJSON(cmd, toJobOutput(job))
		},
	}
	cmd.Flags().UintP("id", "i", 0, "Job ID to fetch")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newListJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the jobs of a workspace, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceID, err := getWorkspaceID(cmd)
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			jobType, _ := cmd.Flags().GetString("type")
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")

			jobs, err := apiClient.ListJobs(context.Background(), handlers.JobListParams{
				WorkspaceID: workspaceID,
				Status:      status,
				JobType:     jobType,
				Page:        page,
				Limit:       limit,
			})
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}

			output := jobListOutput{Jobs: make([]jobOutput, len(jobs))}
			for i, job := range jobs {
				output.Jobs[i] = toJobOutput(job)
			}
			return printJSON(cmd, output)
		},
	}
	cmd.Flags().String("status", "", "Filter jobs by status (QUEUED, PROCESSING, COMPLETED, FAILED)")
	cmd.Flags().String("type", "", "Filter jobs by type (DISCOVERY_JOB, EXTRACTION_JOB, DM)")
	cmd.Flags().IntP("page", "g", 1, "Page number for pagination")
	cmd.Flags().IntP("limit", "l", 0, "Limit the number of jobs returned")
	return cmd
}

func newClaimJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim and process the next due job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := apiClient.ClaimJob(context.Background())
			if err != nil {
				return fmt.Errorf("error claiming job: %w", err)
			}
			return printJSON(cmd, res)
		},
	}
}

// scheduledAt parses the optional --at flag
func scheduledAt(cmd *cobra.Command) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString("at")
	if raw == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --at value, expected RFC3339: %w", err)
	}
	return &at, nil
}

// optionalID returns a pointer to the flag value, nil when unset
func optionalID(cmd *cobra.Command, name string) *uint {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	id, _ := cmd.Flags().GetUint(name)
	return &id
}

func enqueue(cmd *cobra.Command, payload models.Payload) error {
	workspaceID, err := getWorkspaceID(cmd)
	if err != nil {
		return err
	}
	at, err := scheduledAt(cmd)
	if err != nil {
		return err
	}
	raw, err := models.EncodePayload(payload)
	if err != nil {
		return err
	}

	job, err := apiClient.EnqueueJob(context.Background(), handlers.EnqueueJobParams{
		WorkspaceID: workspaceID,
		JobType:     string(payload.JobType()),
		Payload:     raw,
		ScheduledAt: at,
		AccountID:   optionalID(cmd, "account-id"),
		CampaignID:  optionalID(cmd, "campaign-id"),
		LeadID:      optionalID(cmd, "lead-id"),
	})
	if err != nil {
		return fmt.Errorf("error enqueueing job: %w", err)
	}
	return printJSON(cmd, toJobOutput(job))
}

func newEnqueueDMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue-dm",
		Short: "Queue a direct message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipient, _ := cmd.Flags().GetString("recipient")
			message, _ := cmd.Flags().GetString("message")
			return enqueue(cmd, models.DMPayload{
				RecipientUsername: recipient,
				Message:           message,
			})
		},
	}
	cmd.Flags().StringP("recipient", "r", "", "Instagram username to message")
	cmd.Flags().StringP("message", "m", "", "Message text")
	cmd.Flags().String("at", "", "Earliest send time (RFC3339), defaults to now")
	cmd.Flags().Uint("account-id", 0, "Sender account")
	cmd.Flags().Uint("campaign-id", 0, "Campaign the message belongs to")
	cmd.Flags().Uint("lead-id", 0, "Lead the message is sent to")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newEnqueueDiscoveryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue-discovery",
		Short: "Queue a discovery of the recent posts of a target account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, _ := cmd.Flags().GetString("target")
			keywords, _ := cmd.Flags().GetString("keywords")
			postLimit, _ := cmd.Flags().GetInt("post-limit")
			frequency, _ := cmd.Flags().GetString("frequency")

			payload := models.DiscoveryPayload{
				TargetAccount: target,
				Keywords:      splitList(keywords),
				PostLimit:     postLimit,
			}
			if frequency != "" {
				raw, err := json.Marshal(frequency)
				if err != nil {
					return err
				}
				payload.Frequency = raw
			}
			return enqueue(cmd, payload)
		},
	}
	cmd.Flags().StringP("target", "t", "", "Target account whose posts are mined")
	cmd.Flags().StringP("keywords", "k", "", "Comma separated keywords")
	cmd.Flags().Int("post-limit", 0, "Number of recent posts to fetch")
	cmd.Flags().String("frequency", "", "Recurrence, hours or a duration such as 6h")
	cmd.Flags().String("at", "", "Earliest run time (RFC3339), defaults to now")
	cmd.Flags().Uint("account-id", 0, "Account used to read Instagram")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("keywords")
	return cmd
}

func newCheckScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-schedule",
		Short: "Move a queued campaign job back into its send window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, _ := cmd.Flags().GetUint("id")
			check, err := apiClient.CheckJobSchedule(context.Background(), jobID)
			if err != nil {
				return fmt.Errorf("error checking job schedule: %w", err)
			}
			return printJSON(cmd, check)
		},
	}
	cmd.Flags().UintP("id", "i", 0, "Job ID to check")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
