package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/socialora/outreach/internal/control"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/logger"
)

const (
	cycleBackoffMin = 2 * time.Minute
	cycleBackoffMax = 3 * time.Minute
)

// ErrRunInProgress is returned when starting a run whose ID is already running
var ErrRunInProgress = errors.New("autonomous run already in progress")

// AutonomousRequest configures a multi-cycle mining run
type AutonomousRequest struct {
	// RunID names the run, its snapshot and its stop signal. Generated when empty.
	RunID           string   `json:"run_id,omitempty"`
	WorkspaceID     string   `json:"workspace_id" validate:"required"`
	AccountID       uint     `json:"account_id,omitempty"`
	TargetAccounts  []string `json:"target_accounts" validate:"required,min=1,dive,required"`
	Keywords        []string `json:"keywords" validate:"required,min=1,dive,required"`
	LeadTarget      int      `json:"lead_target" validate:"required,min=1"`
	PostsPerAccount int      `json:"posts_per_account,omitempty" validate:"min=0"`
	// MaxCycles bounds the run, zero means until the target is reached or stopped
	MaxCycles int `json:"max_cycles,omitempty" validate:"min=0"`
}

// Snapshot is the resumable state of an autonomous run
type Snapshot struct {
	RunID            string    `json:"runId"`
	LeadsCollected   int       `json:"leadsCollected"`
	CyclesCompleted  int       `json:"cyclesCompleted"`
	StartTime        time.Time `json:"startTime"`
	TargetAccounts   []string  `json:"targetAccounts"`
	ProcessedPostIDs []string  `json:"processedPostIds"`
	// StopReason is set once the run ended
	StopReason string `json:"stopReason,omitempty"`
}

// Reasons an autonomous run ends
const (
	StopReasonTarget    = "lead_target_reached"
	StopReasonSignal    = "stop_signal"
	StopReasonMaxCycles = "max_cycles_reached"
	StopReasonCancelled = "cancelled"
)

// Autonomous mines target accounts cycle after cycle until enough leads are collected
type Autonomous struct {
	mining   *Mining
	ig       instagram.Client
	accounts *repos.AccountRepository
	stop     control.StopSignal
	stateDir string
	validate *validator.Validate

	// sleep waits between cycles and returns early when ctx is done
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewAutonomousService creates an autonomous mining runner. An empty stateDir
// disables snapshots.
func NewAutonomousService(
	mining *Mining,
	ig instagram.Client,
	accounts *repos.AccountRepository,
	stop control.StopSignal,
	stateDir string,
) *Autonomous {
	if stop == nil {
		stop = control.NewMemoryStopSignal()
	}
	return &Autonomous{
		mining:   mining,
		ig:       ig,
		accounts: accounts,
		stop:     stop,
		stateDir: stateDir,
		validate: validator.New(),
		sleep:    sleepContext,
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		running:  make(map[string]context.CancelFunc),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stopSignalName(runID string) string {
	return "autonomous:" + runID
}

func (s *Autonomous) prepare(req *AutonomousRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return invalidInput(err)
	}
	if s.mining == nil || s.ig == nil || s.accounts == nil {
		return fmt.Errorf("%w: autonomous mining requires the mining service, an instagram client and accounts", ErrNotConfigured)
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.PostsPerAccount == 0 {
		req.PostsPerAccount = DefaultPostLimit
	}
	return nil
}

// Start launches a run in the background and returns its ID. A stop signal
// raised while the run was not running is discarded.
func (s *Autonomous) Start(req AutonomousRequest) (string, error) {
	if err := s.prepare(&req); err != nil {
		return "", err
	}

	s.mu.Lock()
	if _, ok := s.running[req.RunID]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrRunInProgress, req.RunID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running[req.RunID] = cancel
	s.mu.Unlock()

	signal := stopSignalName(req.RunID)
	if err := s.stop.Clear(ctx, signal); err != nil {
		logger.Warnf("Failed to clear stale stop signal %s: %v", signal, err)
	}

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, req.RunID)
			s.mu.Unlock()
			cancel()
		}()
		if _, err := s.Run(ctx, req); err != nil {
			logger.ErrorWithFields("Autonomous run failed", logger.Fields{"run_id": req.RunID, "error": err.Error()})
		}
	}()
	return req.RunID, nil
}

// Stop raises the stop signal of a run. The run notices it before its next cycle.
func (s *Autonomous) Stop(ctx context.Context, runID string) error {
	if runID == "" {
		return invalidInput(errors.New("run id cannot be empty"))
	}
	return s.stop.Raise(ctx, stopSignalName(runID))
}

// Shutdown cancels every run started by this process. Cancelled runs save
// their snapshot and can be resumed with the same run ID.
func (s *Autonomous) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.running {
		cancel()
	}
}

// Running lists the IDs of the runs started by this process that did not end yet
func (s *Autonomous) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run mines in cycles until the lead target, the cycle limit or a stop signal
// is reached. A previous snapshot of the same run is resumed.
func (s *Autonomous) Run(ctx context.Context, req AutonomousRequest) (*Snapshot, error) {
	if err := s.prepare(&req); err != nil {
		return nil, err
	}
	session, err := s.session(ctx, req)
	if err != nil {
		return nil, err
	}

	snap, err := s.LoadSnapshot(req.RunID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = &Snapshot{RunID: req.RunID, StartTime: s.now().UTC()}
	} else {
		logger.InfoWithFields("Resuming autonomous run", logger.Fields{
			"run_id":           req.RunID,
			"cycles_completed": snap.CyclesCompleted,
			"leads_collected":  snap.LeadsCollected,
		})
	}
	snap.TargetAccounts = req.TargetAccounts
	snap.StopReason = ""

	processed := make(map[string]struct{}, len(snap.ProcessedPostIDs))
	for _, id := range snap.ProcessedPostIDs {
		processed[id] = struct{}{}
	}

	signal := stopSignalName(req.RunID)
	for {
		raised, err := s.stop.IsRaised(ctx, signal)
		if err != nil {
			logger.Warnf("Failed to read stop signal %s: %v", signal, err)
		}
		switch {
		case raised:
			snap.StopReason = StopReasonSignal
			if err := s.stop.Clear(ctx, signal); err != nil {
				logger.Warnf("Failed to clear stop signal %s: %v", signal, err)
			}
		case snap.LeadsCollected >= req.LeadTarget:
			snap.StopReason = StopReasonTarget
		case req.MaxCycles > 0 && snap.CyclesCompleted >= req.MaxCycles:
			snap.StopReason = StopReasonMaxCycles
		}
		if snap.StopReason != "" {
			break
		}

		s.cycle(ctx, req, session, snap, processed)
		snap.CyclesCompleted++
		if err := s.saveSnapshot(snap); err != nil {
			return snap, err
		}
		logger.InfoWithFields("Autonomous cycle finished", logger.Fields{
			"run_id":          req.RunID,
			"cycle":           snap.CyclesCompleted,
			"leads_collected": snap.LeadsCollected,
			"lead_target":     req.LeadTarget,
		})

		if snap.LeadsCollected >= req.LeadTarget || (req.MaxCycles > 0 && snap.CyclesCompleted >= req.MaxCycles) {
			continue
		}
		if err := s.sleep(ctx, s.backoff()); err != nil {
			snap.StopReason = StopReasonCancelled
			break
		}
	}

	if err := s.saveSnapshot(snap); err != nil {
		return snap, err
	}
	logger.InfoWithFields("Autonomous run ended", logger.Fields{
		"run_id":          req.RunID,
		"reason":          snap.StopReason,
		"cycles":          snap.CyclesCompleted,
		"leads_collected": snap.LeadsCollected,
	})
	return snap, nil
}

// cycle mines the unprocessed recent posts of every target account once
func (s *Autonomous) cycle(ctx context.Context, req AutonomousRequest, session instagram.Session, snap *Snapshot, processed map[string]struct{}) {
	for _, target := range req.TargetAccounts {
		if ctx.Err() != nil {
			return
		}
		posts, err := s.ig.FetchRecentPosts(ctx, session, target, req.PostsPerAccount)
		if err != nil {
			logger.WarnWithFields("Failed to fetch posts of target account", logger.Fields{
				"run_id": req.RunID,
				"target": target,
				"error":  err.Error(),
			})
			continue
		}

		var refs []PostRef
		for _, p := range posts {
			if _, ok := processed[p.ID]; ok {
				continue
			}
			refs = append(refs, PostRef{ID: p.ID, Code: p.Code, Caption: p.Caption, TakenAt: p.TakenAt})
		}
		if len(refs) == 0 {
			continue
		}

		res, err := s.mining.Run(ctx, MiningRequest{
			WorkspaceID: req.WorkspaceID,
			Session:     session,
			Posts:       refs,
			Keywords:    req.Keywords,
			Source:      DefaultLeadSource,
			SourceQuery: target,
		})
		if err != nil {
			logger.WarnWithFields("Mining pass failed", logger.Fields{"run_id": req.RunID, "target": target, "error": err.Error()})
			continue
		}
		snap.LeadsCollected += res.LeadsCreated
		for _, id := range res.ProcessedPostIDs {
			if _, ok := processed[id]; ok {
				continue
			}
			processed[id] = struct{}{}
			snap.ProcessedPostIDs = append(snap.ProcessedPostIDs, id)
		}
		if snap.LeadsCollected >= req.LeadTarget {
			return
		}
	}
}

func (s *Autonomous) session(ctx context.Context, req AutonomousRequest) (instagram.Session, error) {
	session, _, err := accountSession(ctx, s.accounts, req.WorkspaceID, req.AccountID)
	return session, err
}

func (s *Autonomous) backoff() time.Duration {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return cycleBackoffMin + time.Duration(s.rnd.Int63n(int64(cycleBackoffMax-cycleBackoffMin)+1))
}

func (s *Autonomous) snapshotPath(runID string) string {
	return filepath.Join(s.stateDir, "autonomous-"+runID+".json")
}

// LoadSnapshot reads the snapshot of a run, nil when none was written
func (s *Autonomous) LoadSnapshot(runID string) (*Snapshot, error) {
	if s.stateDir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.snapshotPath(runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// saveSnapshot replaces the snapshot file through a rename so readers never see a partial write
func (s *Autonomous) saveSnapshot(snap *Snapshot) error {
	if s.stateDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.stateDir, 0o750); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(s.stateDir, ".autonomous-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.snapshotPath(snap.RunID)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
