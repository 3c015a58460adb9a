package services

import (
	"context"
	"sync"
	"time"

	"github.com/socialora/outreach/internal/logger"
)

// Worker defaults
const (
	DefaultPollInterval     = 5 * time.Second
	DefaultCampaignInterval = time.Minute
)

// WorkerOptions tunes LaunchWorker
type WorkerOptions struct {
	// PollInterval is the sleep after the queue was found empty or a storage error
	PollInterval time.Duration
	// CampaignInterval is the period of the running campaign pass, zero disables it
	CampaignInterval time.Duration
}

// JobProcessor claims and processes a single queued job
type JobProcessor interface {
	ClaimAndProcess(ctx context.Context) (*ClaimResult, error)
}

// CampaignProcessor runs one pass over the running campaigns
type CampaignProcessor interface {
	ProcessRunningCampaigns(ctx context.Context) ([]CampaignOutcome, error)
}

// LaunchWorker drains the job queue and periodically processes running
// campaigns until ctx is cancelled. campaigns may be nil.
func LaunchWorker(ctx context.Context, wg *sync.WaitGroup, jobs JobProcessor, campaigns CampaignProcessor, opts WorkerOptions) {
	defer wg.Done()
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	logger.Info("Worker started")

	var campaignTick <-chan time.Time
	if campaigns != nil && opts.CampaignInterval > 0 {
		ticker := time.NewTicker(opts.CampaignInterval)
		defer ticker.Stop()
		campaignTick = ticker.C
	}

	poll := time.NewTimer(0)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker received shutdown signal, stopping...")
			return

		case <-campaignTick:
			outcomes, err := campaigns.ProcessRunningCampaigns(ctx)
			if err != nil {
				logger.Errorf("Worker error processing campaigns: %v", err)
				continue
			}
			if len(outcomes) > 0 {
				logger.Infof("Worker processed %d running campaigns", len(outcomes))
			}

		case <-poll.C:
			n := drainQueue(ctx, jobs)
			if n > 0 {
				logger.Infof("Worker processed %d jobs", n)
			} else {
				logger.Debug("Worker: No jobs to process")
			}
			poll.Reset(opts.PollInterval)
		}
	}
}

// drainQueue processes due jobs until none is left, ctx is done or storage fails
func drainQueue(ctx context.Context, jobs JobProcessor) int {
	processed := 0
	for ctx.Err() == nil {
		res, err := jobs.ClaimAndProcess(ctx)
		if err != nil {
			logger.Errorf("Worker error claiming job: %v", err)
			return processed
		}
		if !res.Claimed {
			return processed
		}
		processed++
	}
	return processed
}
