package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Run is what one invocation decided, handed to every Recorder once the
// outcome is fixed.
type Run struct {
	Config FailoverConfig `json:"config"`
	Result Result         `json:"result"`
}

// Recorder receives finished runs. Recording is reporting only: the
// controller never reads it back when deciding.
type Recorder interface {
	Record(ctx context.Context, run Run) error
}

// RunSnapshot is the last-run summary written to disk after every
// invocation. It backs the status command.
//
// DailyFailoverCount and DailyFailoverResetDay are informational: they count
// promotions since local midnight for operators reading status. The
// controller never consults them, so there is no daily failover cap.
type RunSnapshot struct {
	LastRun               *Run      `json:"last_run,omitempty"`
	LastFailoverTime      time.Time `json:"last_failover_time"`
	DailyFailoverCount    int       `json:"daily_failover_count"`
	DailyFailoverResetDay int       `json:"daily_failover_reset_day"` // day-of-year
	ConsecutiveUnhealthy  int       `json:"consecutive_unhealthy"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// StateStore handles loading and saving the run snapshot to a JSON file.
type StateStore struct {
	path string
	mu   sync.Mutex
}

// NewStateStore creates a StateStore that reads/writes the snapshot at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the snapshot from disk. A missing or corrupt file yields an
// empty snapshot.
func (ss *StateStore) Load() (*RunSnapshot, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.load()
}

func (ss *StateStore) load() (*RunSnapshot, error) {
	data, err := os.ReadFile(ss.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ss.defaultSnapshot(), nil
		}
		return nil, fmt.Errorf("read state file %s: %w", ss.path, err)
	}

	var snap RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt file -- start fresh rather than crash.
		return ss.defaultSnapshot(), nil
	}

	// Reset daily failover count if the day has rolled over.
	today := time.Now().YearDay()
	if snap.DailyFailoverResetDay != today {
		snap.DailyFailoverCount = 0
		snap.DailyFailoverResetDay = today
	}

	return &snap, nil
}

// Record folds run into the snapshot and saves it.
func (ss *StateStore) Record(ctx context.Context, run Run) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	snap, err := ss.load()
	if err != nil {
		return err
	}

	snap.LastRun = &run
	if run.Result.Outcome == OutcomePrimaryHealthy {
		snap.ConsecutiveUnhealthy = 0
	} else {
		snap.ConsecutiveUnhealthy++
	}
	if run.Result.Promoted {
		snap.LastFailoverTime = run.Result.FinishedAt
		snap.DailyFailoverCount++
	}

	return ss.save(snap)
}

// save persists the snapshot atomically (write-to-temp then rename).
func (ss *StateStore) save(snap *RunSnapshot) error {
	snap.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := ss.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, ss.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

func (ss *StateStore) defaultSnapshot() *RunSnapshot {
	return &RunSnapshot{DailyFailoverResetDay: time.Now().YearDay()}
}
