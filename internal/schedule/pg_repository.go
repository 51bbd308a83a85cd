package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanDay(row pgx.Row) (*Day, error) {
	var (
		practitionerID string
		locationID     string
		date           time.Time
		raw            []byte
	)

	err := row.Scan(&practitionerID, &locationID, &date, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDayNotFound
		}
		return nil, err
	}

	var sessions []*Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}

	return RestoreDay(practitionerID, locationID, date, sessions), nil
}

func (r *PgRepository) Load(ctx context.Context, practitionerID, locationID string, date time.Time) (*Day, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT practitioner_id, location_id, schedule_date, sessions
		FROM schedule_days
		WHERE practitioner_id = $1
		  AND location_id = $2
		  AND schedule_date = $3
	`, practitionerID, locationID, DateOf(date))
	return scanDay(row)
}

// Save overwrites the session set stored for the date.
func (r *PgRepository) Save(ctx context.Context, practitionerID, locationID string, date time.Time, sessions []*Session) error {
	if sessions == nil {
		sessions = []*Session{}
	}
	raw, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO schedule_days (practitioner_id, location_id, schedule_date, sessions, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (practitioner_id, location_id, schedule_date)
		DO UPDATE SET sessions = EXCLUDED.sessions,
		              updated_at = now()
	`, practitionerID, locationID, DateOf(date), raw)
	if err != nil {
		return fmt.Errorf("save schedule day %s: %w", FormatDate(date), err)
	}

	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_events (event_type, practitioner_id, location_id, schedule_date, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`, ev.EventType, ev.PractitionerID, ev.LocationID, DateOf(ev.Date), ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
