// Package postgres stores job records in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Schema creates the itineraries table
const Schema = `
CREATE TABLE IF NOT EXISTS itineraries (
	id            TEXT PRIMARY KEY,
	destination   TEXT        NOT NULL,
	duration_days INTEGER     NOT NULL CHECK (duration_days > 0),
	status        TEXT        NOT NULL,
	retry_count   INTEGER     NOT NULL DEFAULT 0,
	itineraries   TEXT,
	error         TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
)`

// row is the database shape of a record
type row struct {
	ID           string         `db:"id"`
	Destination  string         `db:"destination"`
	DurationDays int            `db:"duration_days"`
	Status       string         `db:"status"`
	RetryCount   int            `db:"retry_count"`
	Result       sql.NullString `db:"itineraries"`
	Error        sql.NullString `db:"error"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
}

func (r *row) record() *itinerary.Record {
	rec := &itinerary.Record{
		ID:           r.ID,
		Destination:  r.Destination,
		DurationDays: r.DurationDays,
		Status:       itinerary.Status(r.Status),
		RetryCount:   r.RetryCount,
		Result:       r.Result.String,
		Error:        r.Error.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.CompletedAt.Valid {
		completedAt := r.CompletedAt.Time.UTC()
		rec.CompletedAt = &completedAt
	}
	return rec
}

// Store implements itinerary.Store on PostgreSQL
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store on an open database handle
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the table when it does not exist yet
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create itineraries table: %w", err)
	}
	return nil
}

// Create inserts rec under a new UUID
func (s *Store) Create(ctx context.Context, rec itinerary.Record) (string, error) {
	id := uuid.NewString()

	query := `
		INSERT INTO itineraries (
			id, destination, duration_days, status,
			retry_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		id,
		rec.Destination,
		rec.DurationDays,
		string(rec.Status),
		rec.RetryCount,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create itinerary: %w", err)
	}

	return id, nil
}

// Update writes the patched columns of one record that is still processing
func (s *Store) Update(ctx context.Context, id string, patch itinerary.Patch) error {
	query, args := buildUpdate(id, patch)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update itinerary: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return s.missedUpdate(ctx, id)
	}
	return nil
}

// missedUpdate explains an UPDATE that matched no processing row
func (s *Store) missedUpdate(ctx context.Context, id string) error {
	var status string
	err := s.db.GetContext(ctx, &status, `SELECT status FROM itineraries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", itinerary.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get itinerary status: %w", err)
	}
	return fmt.Errorf("%w: %s is %s", itinerary.ErrTerminal, id, status)
}

// Get loads one record
func (s *Store) Get(ctx context.Context, id string) (*itinerary.Record, error) {
	var r row
	query := `
		SELECT
			id, destination, duration_days, status, retry_count,
			itineraries, error, created_at, updated_at, completed_at
		FROM itineraries
		WHERE id = $1
	`

	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", itinerary.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}

	return r.record(), nil
}

// buildUpdate renders the UPDATE statement for the fields set in patch
func buildUpdate(id string, patch itinerary.Patch) (string, []any) {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.RetryCount != nil {
		add("retry_count", *patch.RetryCount)
	}
	if patch.Result != nil {
		add("itineraries", *patch.Result)
	}
	if patch.Error != nil {
		add("error", *patch.Error)
	}
	add("updated_at", patch.UpdatedAt)
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE itineraries SET %s WHERE id = $%d AND status = '%s'",
		strings.Join(sets, ", "), len(args), itinerary.StatusProcessing,
	)
	return query, args
}
