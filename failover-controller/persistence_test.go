package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_LoadMissingFile(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))

	snap, err := store.Load()

	require.NoError(t, err)
	assert.Nil(t, snap.LastRun)
	assert.Equal(t, time.Now().YearDay(), snap.DailyFailoverResetDay)
}

func TestStateStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	snap, err := NewStateStore(path).Load()

	require.NoError(t, err)
	assert.Nil(t, snap.LastRun)
}

func TestStateStore_RecordFoldsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStateStore(path)
	ctx := context.Background()
	primaryDown := UnavailableStatus("stopped")

	require.NoError(t, store.Record(ctx, Run{
		Config: testFailoverConfig(),
		Result: Result{InvocationID: "run-1", Outcome: OutcomeBothUnavailable, State: StateBothDown, PrimaryStatus: &primaryDown},
	}))
	failedOverAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Record(ctx, Run{
		Config: testFailoverConfig(),
		Result: Result{
			InvocationID: "run-2",
			Outcome:      OutcomeFailedOverToSecondary,
			State:        StateFailedOver,
			Promoted:     true,
			Err:          errors.New("not persisted"),
			FinishedAt:   failedOverAt,
		},
	}))

	snap, err := NewStateStore(path).Load()
	require.NoError(t, err)

	require.NotNil(t, snap.LastRun)
	assert.Equal(t, "run-2", snap.LastRun.Result.InvocationID)
	assert.Equal(t, OutcomeFailedOverToSecondary, snap.LastRun.Result.Outcome)
	assert.Equal(t, 2, snap.ConsecutiveUnhealthy)
	assert.Equal(t, 1, snap.DailyFailoverCount)
	assert.True(t, failedOverAt.Equal(snap.LastFailoverTime))

	// A healthy run resets the unhealthy streak.
	require.NoError(t, store.Record(ctx, Run{Result: Result{Outcome: OutcomePrimaryHealthy}}))
	snap, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ConsecutiveUnhealthy)
	assert.Equal(t, 1, snap.DailyFailoverCount)
}

func TestStateStore_DailyFailoverCountRollsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	yesterday := time.Now().AddDate(0, 0, -1).YearDay()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(
		`{"daily_failover_count": 3, "daily_failover_reset_day": %d, "consecutive_unhealthy": 4}`, yesterday)), 0644))
	store := NewStateStore(path)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.DailyFailoverCount)
	assert.Equal(t, time.Now().YearDay(), snap.DailyFailoverResetDay)
	assert.Equal(t, 4, snap.ConsecutiveUnhealthy)

	require.NoError(t, store.Record(context.Background(), Run{Result: Result{Outcome: OutcomeFailedOverToSecondary, Promoted: true}}))
	snap, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.DailyFailoverCount)
}

func TestStateStore_NeverPersistsCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	cfg := testFailoverConfig()
	cfg.Credentials = &Credentials{User: "spark", Password: "s3cret"}

	require.NoError(t, NewStateStore(path).Record(context.Background(), Run{Config: cfg, Result: Result{Outcome: OutcomePrimaryHealthy}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
}
