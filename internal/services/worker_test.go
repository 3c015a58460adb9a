package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialora/outreach/internal/db/models"
)

type fakeJobs struct {
	mu      sync.Mutex
	pending int
	calls   atomic.Int32
	err     error
}

func (f *fakeJobs) ClaimAndProcess(context.Context) (*ClaimResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.pending == 0 {
		return &ClaimResult{}, nil
	}
	f.pending--
	return &ClaimResult{Claimed: true}, nil
}

func (f *fakeJobs) remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

type fakeCampaigns struct {
	passes atomic.Int32
}

func (f *fakeCampaigns) ProcessRunningCampaigns(context.Context) ([]CampaignOutcome, error) {
	f.passes.Add(1)
	return nil, nil
}

func TestLaunchWorker_DrainsQueueAndRunsCampaigns(t *testing.T) {
	jobs := &fakeJobs{pending: 3}
	campaigns := &fakeCampaigns{}
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go LaunchWorker(ctx, &wg, jobs, campaigns, WorkerOptions{
		PollInterval:     10 * time.Millisecond,
		CampaignInterval: 10 * time.Millisecond,
	})

	require.Eventually(t, func() bool { return jobs.remaining() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return campaigns.passes.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestLaunchWorker_BacksOffOnStorageErrors(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("database is locked")}
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go LaunchWorker(ctx, &wg, jobs, nil, WorkerOptions{PollInterval: 50 * time.Millisecond})

	time.Sleep(120 * time.Millisecond)
	cancel()
	wg.Wait()

	// one claim per poll, never a tight loop
	assert.LessOrEqual(t, jobs.calls.Load(), int32(4))
	assert.GreaterOrEqual(t, jobs.calls.Load(), int32(1))
}

func TestLaunchWorker_ProcessesRealQueue(t *testing.T) {
	ts := NewTestSetup(t)
	account := ts.createAccount(t, "sender", 40)
	dm := models.DMPayload{RecipientUsername: "ali", Message: "Merhaba"}
	first := ts.enqueue(t, models.JobTypeDM, dm, ts.Now, &account.ID, nil, nil)
	second := ts.enqueue(t, models.JobTypeDM, dm, ts.Now, &account.ID, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go LaunchWorker(ctx, &wg, ts.Job, nil, WorkerOptions{PollInterval: 10 * time.Millisecond})

	require.Eventually(t, func() bool { return len(ts.IG.Sent()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()

	assert.Equal(t, models.JobStatusCompleted, ts.reloadJob(t, first.ID).Status)
	assert.Equal(t, models.JobStatusCompleted, ts.reloadJob(t, second.ID).Status)
}
