package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// WindowLength is the number of consecutive dates, anchor included, a
// finalized day is written to.
const WindowLength = 11

// Window returns the propagation dates for anchor in increasing order.
func Window(anchor time.Time) []time.Time {
	first := DateOf(anchor)
	dates := make([]time.Time, WindowLength)
	for i := range dates {
		dates[i] = first.AddDate(0, 0, i)
	}
	return dates
}

// WindowEnd is the last date Window(anchor) covers.
func WindowEnd(anchor time.Time) time.Time {
	return DateOf(anchor).AddDate(0, 0, WindowLength-1)
}

// Saver is the write half of Repository, which is all propagation needs.
type Saver interface {
	Save(ctx context.Context, practitionerID, locationID string, date time.Time, sessions []*Session) error
}

// PropagationResult reports how far a propagation run got.
type PropagationResult struct {
	Anchor    time.Time
	Succeeded []time.Time
	// FailedDate is the first date whose save failed or was never issued.
	FailedDate *time.Time
}

// Complete reports whether every date of the window was saved.
func (r *PropagationResult) Complete() bool {
	return r.FailedDate == nil && len(r.Succeeded) == WindowLength
}

// SavedThrough returns the last date saved, if any.
func (r *PropagationResult) SavedThrough() (time.Time, bool) {
	if len(r.Succeeded) == 0 {
		return time.Time{}, false
	}
	return r.Succeeded[len(r.Succeeded)-1], true
}

var ErrPropagationIncomplete = errors.New("propagation incomplete")

// PropagationError is returned when a run stops before the end of the window.
// Dates before Date were saved and are not rolled back.
type PropagationError struct {
	Date  time.Time
	Saved int
	Err   error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation stopped at %s after %d saved dates: %v", FormatDate(e.Date), e.Saved, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

func (e *PropagationError) Is(target error) bool {
	return target == ErrPropagationIncomplete
}

// Planner replicates a day's session set across the propagation window.
type Planner struct {
	repo   Saver
	logger zerolog.Logger
}

func NewPlanner(repo Saver, logger zerolog.Logger) *Planner {
	return &Planner{repo: repo, logger: logger}
}

// Propagate saves day's sessions to every date of Window(anchor), one at a
// time in date order. The anchor is written as is; later dates get the same
// sessions and slots with every booking cleared. The first failed save stops
// the run; later dates are never issued. Cancelling ctx stops the run before
// the next date, but a save already issued is allowed to finish within ctx's
// deadline. Each save overwrites its date, so a rerun with the same day is
// safe.
func (p *Planner) Propagate(ctx context.Context, anchor time.Time, day *Day) (*PropagationResult, error) {
	res := &PropagationResult{Anchor: DateOf(anchor)}
	sessions := day.Sessions()
	future := withoutBookings(sessions)

	log := p.logger.With().
		Str("practitioner_id", day.PractitionerID).
		Str("location_id", day.LocationID).
		Str("anchor", FormatDate(res.Anchor)).
		Logger()

	for _, date := range Window(anchor) {
		if err := ctx.Err(); err != nil {
			return res, p.stop(log, res, date, err)
		}

		copies := future
		if date.Equal(res.Anchor) {
			copies = sessions
		}
		if err := p.save(ctx, day, date, copies); err != nil {
			return res, p.stop(log, res, date, err)
		}

		res.Succeeded = append(res.Succeeded, date)
		log.Debug().Str("date", FormatDate(date)).Msg("schedule day saved")
	}

	log.Info().Int("dates", len(res.Succeeded)).Msg("propagation complete")
	return res, nil
}

// save detaches the write from cancellation but keeps ctx's deadline, which
// under the schedule lock is the end of the lease.
func (p *Planner) save(ctx context.Context, day *Day, date time.Time, sessions []*Session) error {
	saveCtx := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithDeadline(saveCtx, deadline)
		defer cancel()
	}
	return p.repo.Save(saveCtx, day.PractitionerID, day.LocationID, date, sessions)
}

func (p *Planner) stop(log zerolog.Logger, res *PropagationResult, date time.Time, err error) error {
	d := date
	res.FailedDate = &d
	log.Warn().
		Err(err).
		Str("failed_date", FormatDate(date)).
		Int("saved", len(res.Succeeded)).
		Msg("propagation stopped")
	return &PropagationError{Date: date, Saved: len(res.Succeeded), Err: err}
}
