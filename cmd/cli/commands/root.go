package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/socialora/outreach/pkg/api/v1/client"
	"github.com/socialora/outreach/pkg/api/v1/routes"
)

// flag names
const (
	flagWorkspace     = "workspace"
	flagServerAddress = "server-address"
)

// environment variable names
const (
	envServerAddress = "OUTREACH_SERVER_ADDRESS"
	envWorkspace     = "OUTREACH_WORKSPACE"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
)

// initClient initializes the API client
func initClient() error {
	var err error
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	apiClient, err = client.NewClient(opts)
	return err
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "outreach",
		Short: "Outreach CLI - A command line interface for the outreach API",
		Long: `Outreach CLI drives the DM job queue, campaign scheduling and comment
mining through the outreach API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Flag > Env Var > Default
			if !cmd.Flags().Changed(flagServerAddress) {
				if envAddr := os.Getenv(envServerAddress); envAddr != "" {
					serverAddress = envAddr
				}
			}
			if serverAddress == "" {
				return fmt.Errorf("server address cannot be empty")
			}
			return initClient()
		},
	}

	root.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL, "Address of the outreach API server (env: "+envServerAddress+")")
	root.PersistentFlags().StringP(flagWorkspace, "w", "", "Workspace the command acts on (env: "+envWorkspace+")")

	root.AddCommand(GetJobsCmd())
	root.AddCommand(GetCampaignsCmd())
	root.AddCommand(GetMiningCmd())
	root.AddCommand(GetLeadsCmd())
	return root
}

// Execute builds the command tree and runs it
func Execute() error {
	// a missing .env file is fine
	_ = godotenv.Load()
	return NewRootCmd().Execute()
}

// getWorkspaceID returns the workspace from the persistent flag or the environment
func getWorkspaceID(cmd *cobra.Command) (string, error) {
	flag := cmd.Flag(flagWorkspace)
	if flag == nil {
		return "", fmt.Errorf("flag '%s' is not defined", flagWorkspace)
	}
	if ws := flag.Value.String(); ws != "" {
		return ws, nil
	}
	if flag.Changed {
		return "", fmt.Errorf("workspace cannot be empty")
	}
	if ws := os.Getenv(envWorkspace); ws != "" {
		return ws, nil
	}
	return "", fmt.Errorf("required flag(s) \"%s\" not set", flagWorkspace)
}

// parseIDs parses a comma separated list of positive IDs
func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range splitList(raw) {
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// splitList splits a comma separated flag value, dropping empty items
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// printJSON pretty prints v to the command output
func printJSON(cmd *cobra.Command, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(prettyJSON))
	return err
}
