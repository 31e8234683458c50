package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS failover_events (
		id                   UUID PRIMARY KEY,
		outcome              TEXT NOT NULL,
		terminal_state       TEXT NOT NULL,
		primary_identifier   TEXT NOT NULL,
		primary_region       TEXT NOT NULL,
		primary_status       TEXT NOT NULL DEFAULT '',
		secondary_identifier TEXT NOT NULL,
		secondary_region     TEXT NOT NULL,
		secondary_status     TEXT NOT NULL DEFAULT '',
		promoted             BOOLEAN NOT NULL DEFAULT FALSE,
		alert_subject        TEXT NOT NULL DEFAULT '',
		alert_delivered      BOOLEAN NOT NULL DEFAULT FALSE,
		error_message        TEXT NOT NULL DEFAULT '',
		started_at           TIMESTAMPTZ NOT NULL,
		finished_at          TIMESTAMPTZ NOT NULL
	)
`

// HistoryEvent is one row of failover_events.
type HistoryEvent struct {
	ID              string    `json:"id"`
	Outcome         Outcome   `json:"outcome"`
	State           string    `json:"state"`
	Primary         string    `json:"primary"`
	PrimaryRegion   string    `json:"primary_region"`
	PrimaryStatus   string    `json:"primary_status,omitempty"`
	Secondary       string    `json:"secondary"`
	SecondaryRegion string    `json:"secondary_region"`
	SecondaryStatus string    `json:"secondary_status,omitempty"`
	Promoted        bool      `json:"promoted"`
	AlertSubject    string    `json:"alert_subject,omitempty"`
	AlertDelivered  bool      `json:"alert_delivered"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// PostgresHistoryStore appends one row per invocation to failover_events
// so operators can audit what the controller decided over time.
type PostgresHistoryStore struct {
	db *sql.DB
}

// OpenPostgresHistoryStore opens a Postgres connection, verifies it with a
// ping and makes sure the events table exists.
func OpenPostgresHistoryStore(ctx context.Context, connStr string) (*PostgresHistoryStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	// One insert per tick needs very little.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	s := NewPostgresHistoryStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresHistoryStore wraps an already connected *sql.DB.
func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (s *PostgresHistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create failover_events table: %w", err)
	}
	return nil
}

// Record implements Recorder.
func (s *PostgresHistoryStore) Record(ctx context.Context, run Run) error {
	query := `
		INSERT INTO failover_events
		(id, outcome, terminal_state,
		 primary_identifier, primary_region, primary_status,
		 secondary_identifier, secondary_region, secondary_status,
		 promoted, alert_subject, alert_delivered, error_message,
		 started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	r := run.Result
	_, err := s.db.ExecContext(ctx, query,
		r.InvocationID, string(r.Outcome), r.State,
		run.Config.Primary.Identifier, run.Config.Primary.Region, statusText(r.PrimaryStatus),
		run.Config.Secondary.Identifier, run.Config.Secondary.Region, statusText(r.SecondaryStatus),
		r.Promoted, r.AlertSubject, r.AlertDelivered, r.Error,
		r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert failover event %s: %w", r.InvocationID, err)
	}
	return nil
}

// ListRecent returns the newest events first.
func (s *PostgresHistoryStore) ListRecent(ctx context.Context, limit int) ([]HistoryEvent, error) {
	query := `
		SELECT id, outcome, terminal_state,
			primary_identifier, primary_region, primary_status,
			secondary_identifier, secondary_region, secondary_status,
			promoted, alert_subject, alert_delivered, error_message,
			started_at, finished_at
		FROM failover_events
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query failover events: %w", err)
	}
	defer rows.Close()

	var events []HistoryEvent
	for rows.Next() {
		var ev HistoryEvent
		var outcome string
		if err := rows.Scan(&ev.ID, &outcome, &ev.State,
			&ev.Primary, &ev.PrimaryRegion, &ev.PrimaryStatus,
			&ev.Secondary, &ev.SecondaryRegion, &ev.SecondaryStatus,
			&ev.Promoted, &ev.AlertSubject, &ev.AlertDelivered, &ev.Error,
			&ev.StartedAt, &ev.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan failover event row: %w", err)
		}
		ev.Outcome = Outcome(outcome)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failover event rows: %w", err)
	}

	return events, nil
}

// Close shuts down the connection pool.
func (s *PostgresHistoryStore) Close() error {
	return s.db.Close()
}

func statusText(s *DatabaseStatus) string {
	if s == nil {
		return ""
	}
	return s.Describe()
}
