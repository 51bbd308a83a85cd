package schedule

import (
	"context"
	"errors"
	"time"
)

// ErrDayNotFound means nothing was saved for the date yet. It is an empty
// state, not a failure.
var ErrDayNotFound = errors.New("schedule day not found")

// Repository loads and saves schedule days keyed by (practitioner, location, date).
type Repository interface {
	Saver

	// Load returns ErrDayNotFound when the date has never been saved.
	Load(ctx context.Context, practitionerID, locationID string, date time.Time) (*Day, error)
}

// EventSink records schedule events for audit.
type EventSink interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}
