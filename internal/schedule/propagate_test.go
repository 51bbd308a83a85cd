package schedule

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSaver struct {
	mock.Mock
}

func (m *mockSaver) Save(ctx context.Context, practitionerID, locationID string, date time.Time, sessions []*Session) error {
	args := m.Called(ctx, practitionerID, locationID, date, sessions)
	return args.Error(0)
}

func finalizedDay(t *testing.T) *Day {
	t.Helper()
	d := newTestDay()
	_, err := d.AddSession(rng(t, "09:00", "10:00"))
	require.NoError(t, err)
	_, err = d.AddSession(rng(t, "14:00", "16:00"))
	require.NoError(t, err)
	d.FinalizeAll()
	return d
}

func TestWindow(t *testing.T) {
	anchor := time.Date(2026, time.February, 25, 15, 4, 0, 0, time.UTC)
	dates := Window(anchor)

	require.Len(t, dates, WindowLength)
	assert.Equal(t, "2026-02-25", FormatDate(dates[0]))
	assert.Equal(t, "2026-03-07", FormatDate(dates[WindowLength-1]))
	assert.Equal(t, dates[WindowLength-1], WindowEnd(anchor))
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, dates[i-1].AddDate(0, 0, 1), dates[i])
	}
}

func TestPlannerPropagate(t *testing.T) {
	day := finalizedDay(t)
	saver := new(mockSaver)
	saver.On("Save", mock.Anything, "prac-1", "loc-1", mock.AnythingOfType("time.Time"), mock.Anything).Return(nil)

	res, err := NewPlanner(saver, zerolog.Nop()).Propagate(context.Background(), day.Date, day)
	require.NoError(t, err)

	assert.True(t, res.Complete())
	assert.Nil(t, res.FailedDate)
	assert.Equal(t, Window(day.Date), res.Succeeded)
	last, ok := res.SavedThrough()
	require.True(t, ok)
	assert.Equal(t, WindowEnd(day.Date), last)

	saver.AssertNumberOfCalls(t, "Save", WindowLength)
	for i, call := range saver.Calls {
		assert.Equal(t, day.Date.AddDate(0, 0, i), call.Arguments.Get(3))
		sessions := call.Arguments.Get(4).([]*Session)
		require.Len(t, sessions, 2)
		assert.Equal(t, "09:00-10:00", sessions[0].Range().String())
		assert.Equal(t, SessionFinalized, sessions[1].State)
	}
}

func TestPlannerPropagateStopsAtFirstFailure(t *testing.T) {
	day := finalizedDay(t)
	failing := day.Date.AddDate(0, 0, 3)
	boom := errors.New("disk full")

	saver := new(mockSaver)
	saver.On("Save", mock.Anything, "prac-1", "loc-1", failing, mock.Anything).Return(boom)
	saver.On("Save", mock.Anything, "prac-1", "loc-1", mock.Anything, mock.Anything).Return(nil)

	res, err := NewPlanner(saver, zerolog.Nop()).Propagate(context.Background(), day.Date, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPropagationIncomplete)
	assert.ErrorIs(t, err, boom)

	var perr *PropagationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, failing, perr.Date)
	assert.Equal(t, 3, perr.Saved)

	assert.False(t, res.Complete())
	assert.Equal(t, Window(day.Date)[:3], res.Succeeded)
	require.NotNil(t, res.FailedDate)
	assert.Equal(t, failing, *res.FailedDate)

	// Dates after the failure are never attempted.
	saver.AssertNumberOfCalls(t, "Save", 4)
	for _, d := range Window(day.Date)[4:] {
		saver.AssertNotCalled(t, "Save", mock.Anything, "prac-1", "loc-1", d, mock.Anything)
	}
}

func TestPlannerPropagateFirstDateFails(t *testing.T) {
	day := finalizedDay(t)
	saver := new(mockSaver)
	saver.On("Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("down"))

	res, err := NewPlanner(saver, zerolog.Nop()).Propagate(context.Background(), day.Date, day)
	require.Error(t, err)
	assert.Empty(t, res.Succeeded)
	_, ok := res.SavedThrough()
	assert.False(t, ok)
	saver.AssertNumberOfCalls(t, "Save", 1)
}

func TestPlannerPropagateCancelled(t *testing.T) {
	day := finalizedDay(t)
	ctx, cancel := context.WithCancel(context.Background())

	saver := new(mockSaver)
	saver.On("Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			// The save in flight still sees a live context.
			assert.NoError(t, args.Get(0).(context.Context).Err())
			if args.Get(3).(time.Time).Equal(day.Date.AddDate(0, 0, 1)) {
				cancel()
			}
		})

	res, err := NewPlanner(saver, zerolog.Nop()).Propagate(ctx, day.Date, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrPropagationIncomplete)

	assert.Len(t, res.Succeeded, 2)
	require.NotNil(t, res.FailedDate)
	assert.Equal(t, day.Date.AddDate(0, 0, 2), *res.FailedDate)
	saver.AssertNumberOfCalls(t, "Save", 2)
}

func TestPlannerPropagateIsIdempotent(t *testing.T) {
	day := finalizedDay(t)
	repo := NewMemoryRepository()
	planner := NewPlanner(repo, zerolog.Nop())

	_, err := planner.Propagate(context.Background(), day.Date, day)
	require.NoError(t, err)
	first, err := repo.Load(context.Background(), "prac-1", "loc-1", WindowEnd(day.Date))
	require.NoError(t, err)

	_, err = planner.Propagate(context.Background(), day.Date, day)
	require.NoError(t, err)
	second, err := repo.Load(context.Background(), "prac-1", "loc-1", WindowEnd(day.Date))
	require.NoError(t, err)

	assert.Equal(t, first.Sessions(), second.Sessions())

	_, err = repo.Load(context.Background(), "prac-1", "loc-1", WindowEnd(day.Date).AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrDayNotFound)
}

func TestPlannerPropagateOverwritesLaterDates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	later := testDate.AddDate(0, 0, 5)

	// Something already stored further down the window.
	other := NewDay("prac-1", "loc-1", later, 10)
	_, err := other.AddSession(rng(t, "18:00", "19:00"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "prac-1", "loc-1", later, other.Sessions()))

	day := finalizedDay(t)
	_, err = NewPlanner(repo, zerolog.Nop()).Propagate(ctx, day.Date, day)
	require.NoError(t, err)

	got, err := repo.Load(ctx, "prac-1", "loc-1", later)
	require.NoError(t, err)
	require.Len(t, got.Sessions(), 2)
	assert.Equal(t, "09:00-10:00", got.Sessions()[0].Range().String())
}

func TestPlannerPropagateClearsBookingsOnLaterDates(t *testing.T) {
	ctx := context.Background()
	day := finalizedDay(t)
	first := day.Sessions()[0]
	booked, emergency := uuid.New(), uuid.New()
	_, err := day.MarkSlot(first.Slots[4].ID, SlotBooked, &booked)
	require.NoError(t, err)
	_, err = day.MarkSlot(first.Slots[0].ID, SlotEmergency, &emergency)
	require.NoError(t, err)

	repo := NewMemoryRepository()
	_, err = NewPlanner(repo, zerolog.Nop()).Propagate(ctx, day.Date, day)
	require.NoError(t, err)

	anchor, err := repo.Load(ctx, "prac-1", "loc-1", day.Date)
	require.NoError(t, err)
	assert.Equal(t, day.Sessions(), anchor.Sessions())
	assert.Len(t, slices.Collect(anchor.WaitingQueue()), 2)

	for _, date := range Window(day.Date)[1:] {
		got, err := repo.Load(ctx, "prac-1", "loc-1", date)
		require.NoError(t, err)
		require.Len(t, got.Sessions(), 2)

		s := got.Sessions()[0]
		assert.Equal(t, first.ID, s.ID)
		assert.Equal(t, first.Slots[0].ID, s.Slots[0].ID)
		assert.Equal(t, SlotAvailable, s.Slots[0].Status)
		assert.Nil(t, s.Slots[0].AppointmentID)
		assert.Equal(t, SlotAvailable, s.Slots[4].Status)
		assert.Nil(t, s.Slots[4].AppointmentID)
		assert.Equal(t, first.Slots[3].Status, s.Slots[3].Status)
		assert.Empty(t, slices.Collect(got.WaitingQueue()), FormatDate(date))
	}

	// The caller's day is untouched.
	assert.Equal(t, SlotEmergency, day.Sessions()[0].Slots[0].Status)
}

// blockingSaver holds every save until its context is done.
type blockingSaver struct {
	deadlines []bool
}

func (b *blockingSaver) Save(ctx context.Context, _, _ string, _ time.Time, _ []*Session) error {
	_, ok := ctx.Deadline()
	b.deadlines = append(b.deadlines, ok)
	<-ctx.Done()
	return ctx.Err()
}

func TestPlannerPropagateSaveBoundedByDeadline(t *testing.T) {
	day := finalizedDay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	saver := &blockingSaver{}
	start := time.Now()
	res, err := NewPlanner(saver, zerolog.Nop()).Propagate(ctx, day.Date, day)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrPropagationIncomplete)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []bool{true}, saver.deadlines)
	assert.Empty(t, res.Succeeded)
	require.NotNil(t, res.FailedDate)
	assert.Equal(t, day.Date, *res.FailedDate)
}
