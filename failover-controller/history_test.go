package main

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockHistory(t *testing.T) (*PostgresHistoryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresHistoryStore(db), mock
}

func TestPostgresHistoryStore_EnsureSchema(t *testing.T) {
	store, mock := newMockHistory(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS failover_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistoryStore_Record(t *testing.T) {
	store, mock := newMockHistory(t)
	started := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	primary := UnavailableStatus("stopped")
	secondary := AvailableStatus("available")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO failover_events")).
		WithArgs("inv-1", "failed_over_to_secondary", StateFailedOver,
			testPrimaryID, "us-east-1", "stopped",
			testSecondaryID, "us-west-2", "available",
			true, SubjectFailoverTriggered, true, "",
			started, started.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Record(context.Background(), Run{
		Config: testFailoverConfig(),
		Result: Result{
			InvocationID:    "inv-1",
			Outcome:         OutcomeFailedOverToSecondary,
			State:           StateFailedOver,
			PrimaryStatus:   &primary,
			SecondaryStatus: &secondary,
			Promoted:        true,
			AlertSubject:    SubjectFailoverTriggered,
			AlertDelivered:  true,
			StartedAt:       started,
			FinishedAt:      started.Add(time.Second),
		},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistoryStore_RecordError(t *testing.T) {
	store, mock := newMockHistory(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO failover_events")).
		WillReturnError(errors.New("connection reset"))

	err := store.Record(context.Background(), Run{Result: Result{InvocationID: "inv-2"}})

	assert.ErrorContains(t, err, "inv-2")
	assert.ErrorContains(t, err, "connection reset")
}

func TestPostgresHistoryStore_ListRecent(t *testing.T) {
	store, mock := newMockHistory(t)
	started := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "outcome", "terminal_state",
		"primary_identifier", "primary_region", "primary_status",
		"secondary_identifier", "secondary_region", "secondary_status",
		"promoted", "alert_subject", "alert_delivered", "error_message",
		"started_at", "finished_at",
	}).
		AddRow("inv-2", "primary_healthy", StateHealthy, testPrimaryID, "us-east-1", "available",
			testSecondaryID, "us-west-2", "", false, "", false, "", started.Add(time.Minute), started.Add(time.Minute)).
		AddRow("inv-1", "both_unavailable", StateBothDown, testPrimaryID, "us-east-1", "stopped",
			testSecondaryID, "us-west-2", "stopped", false, SubjectAllInstancesDown, true, "", started, started)

	mock.ExpectQuery(regexp.QuoteMeta("FROM failover_events")).
		WithArgs(10).
		WillReturnRows(rows)

	events, err := store.ListRecent(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, OutcomePrimaryHealthy, events[0].Outcome)
	assert.Equal(t, OutcomeBothUnavailable, events[1].Outcome)
	assert.Equal(t, SubjectAllInstancesDown, events[1].AlertSubject)
	assert.NoError(t, mock.ExpectationsWereMet())
}
