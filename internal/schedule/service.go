package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/practitioner-schedule/internal/redis"
)

var (
	ErrScheduleBusy = errors.New("schedule is being modified, please retry")
	ErrMissingKey   = errors.New("practitioner_id and location_id are required")
)

type Service struct {
	repo        Repository
	store       Repository
	events      EventSink
	locker      redisclient.Locker
	planner     *Planner
	granularity int
	logger      zerolog.Logger
}

// NewService wires the schedule service. granularity is the slot width in
// minutes used for days that have no stored slots yet.
func NewService(repo Repository, events EventSink, locker redisclient.Locker, granularity int, logger zerolog.Logger) *Service {
	// Locked writers bypass any read cache in front of the store.
	store := repo
	if c, ok := repo.(interface{ Uncached() Repository }); ok {
		store = c.Uncached()
	}

	return &Service{
		repo:        repo,
		store:       store,
		events:      events,
		locker:      locker,
		planner:     NewPlanner(repo, logger),
		granularity: granularity,
		logger:      logger,
	}
}

// OpenDay loads the day or, when nothing is stored yet, returns an empty one.
func (s *Service) OpenDay(ctx context.Context, key DayKey) (*Day, error) {
	return s.openDay(ctx, s.repo, key)
}

func (s *Service) openDay(ctx context.Context, repo Repository, key DayKey) (*Day, error) {
	if key.PractitionerID == "" || key.LocationID == "" {
		return nil, ErrMissingKey
	}

	day, err := repo.Load(ctx, key.PractitionerID, key.LocationID, key.Date)
	if errors.Is(err, ErrDayNotFound) {
		return NewDay(key.PractitionerID, key.LocationID, key.Date, s.granularity), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule day: %w", err)
	}
	if day.Granularity == 0 {
		day.Granularity = s.granularity
	}
	return day, nil
}

// AddSession creates a draft session and saves the day.
func (s *Service) AddSession(ctx context.Context, key DayKey, r TimeRange) (*Session, error) {
	var created *Session
	err := s.mutate(ctx, key, func(lockCtx context.Context, day *Day) error {
		sess, err := day.AddSession(r)
		if err != nil {
			return err
		}
		created = sess
		return s.save(lockCtx, day)
	})
	return created, err
}

// EditSession moves a draft session to a new range and saves the day.
func (s *Service) EditSession(ctx context.Context, key DayKey, id uuid.UUID, r TimeRange) (*Session, error) {
	var edited *Session
	err := s.mutate(ctx, key, func(lockCtx context.Context, day *Day) error {
		sess, err := day.EditSession(id, r)
		if err != nil {
			return err
		}
		edited = sess
		return s.save(lockCtx, day)
	})
	return edited, err
}

// FinalizeSession locks one session and propagates the day across the window.
// Finalizing an already finalized session still propagates, which doubles as
// a retry after a partial failure.
func (s *Service) FinalizeSession(ctx context.Context, key DayKey, id uuid.UUID) (*PropagationResult, error) {
	var res *PropagationResult
	err := s.mutate(ctx, key, func(lockCtx context.Context, day *Day) error {
		sess, err := day.FinalizeSession(id)
		if err != nil {
			return err
		}
		s.logEvent(lockCtx, day, EventSessionFinalized, map[string]any{
			"session_id": sess.ID.String(),
			"range":      sess.Range().String(),
		})

		res, err = s.propagate(lockCtx, day)
		return err
	})
	return res, err
}

// FinalizeDay locks every session of the day and propagates it.
func (s *Service) FinalizeDay(ctx context.Context, key DayKey) (*PropagationResult, error) {
	var res *PropagationResult
	err := s.mutate(ctx, key, func(lockCtx context.Context, day *Day) error {
		if len(day.Sessions()) == 0 {
			return ErrSessionNotFound
		}
		changed := day.FinalizeAll()
		s.logEvent(lockCtx, day, EventSessionFinalized, map[string]any{
			"sessions": changed,
		})

		var err error
		res, err = s.propagate(lockCtx, day)
		return err
	})
	return res, err
}

// DeleteSession removes a session and saves only the day itself. Copies on
// later dates stay as they are until Propagate is called again.
func (s *Service) DeleteSession(ctx context.Context, key DayKey, id uuid.UUID, confirmed bool) error {
	return s.mutate(ctx, key, func(lockCtx context.Context, day *Day) error {
		sess, found := day.Session(id)
		if !found {
			return nil
		}
		wasFinalized := sess.Finalized()
		if err := day.RemoveSession(id, confirmed); err != nil {
			return err
		}
		if err := s.save(lockCtx, day); err != nil {
			return err
		}
		s.logEvent(lockCtx, day, EventSessionDeleted, map[string]any{
			"session_id": sess.ID.String(),
			"finalized":  wasFinalized,
		})
		return nil
	})
}

// Propagate replays the stored day over the window. Used to resync after a
// deletion or to retry a partially failed run.
func (s *Service) Propagate(ctx context.Context, key DayKey) (*PropagationResult, error) {
	var res *PropagationResult
	err := s.withLock(ctx, key, func(lockCtx context.Context) error {
		day, err := s.store.Load(lockCtx, key.PractitionerID, key.LocationID, key.Date)
		if err != nil {
			return err
		}
		res, err = s.propagate(lockCtx, day)
		return err
	})
	return res, err
}

// RecordBooking is the booking subsystem's entry point for changing a slot's
// status. The scheduling core never books slots on its own.
func (s *Service) RecordBooking(ctx context.Context, key DayKey, slotID uuid.UUID, status SlotStatus, appointmentID *uuid.UUID) (Slot, error) {
	var updated Slot
	err := s.mutate(ctx, key, func(lockCtx context.Context, day *Day) error {
		sl, err := day.MarkSlot(slotID, status, appointmentID)
		if err != nil {
			return err
		}
		updated = sl
		return s.save(lockCtx, day)
	})
	return updated, err
}

// WaitingQueue lists the day's booked and emergency slots in queue order.
func (s *Service) WaitingQueue(ctx context.Context, key DayKey) ([]QueueEntry, error) {
	day, err := s.OpenDay(ctx, key)
	if err != nil {
		return nil, err
	}
	return slices.Collect(day.WaitingQueue()), nil
}

func (s *Service) mutate(ctx context.Context, key DayKey, fn func(ctx context.Context, day *Day) error) error {
	return s.withLock(ctx, key, func(lockCtx context.Context) error {
		day, err := s.openDay(lockCtx, s.store, key)
		if err != nil {
			return err
		}
		return fn(lockCtx, day)
	})
}

func (s *Service) withLock(ctx context.Context, key DayKey, fn func(ctx context.Context) error) error {
	if key.PractitionerID == "" || key.LocationID == "" {
		return ErrMissingKey
	}
	err := s.locker.WithScheduleLock(ctx, key.PractitionerID, key.LocationID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

func (s *Service) save(ctx context.Context, day *Day) error {
	if err := s.repo.Save(ctx, day.PractitionerID, day.LocationID, day.Date, day.Sessions()); err != nil {
		return fmt.Errorf("save schedule day: %w", err)
	}
	return nil
}

func (s *Service) propagate(ctx context.Context, day *Day) (*PropagationResult, error) {
	res, err := s.planner.Propagate(ctx, day.Date, day)

	payload := map[string]any{
		"anchor":     FormatDate(res.Anchor),
		"window_end": FormatDate(WindowEnd(res.Anchor)),
		"saved":      len(res.Succeeded),
	}
	if err != nil {
		payload["failed_date"] = FormatDate(*res.FailedDate)
		payload["error"] = err.Error()
		s.logEvent(context.WithoutCancel(ctx), day, EventPropagationFailed, payload)
		return res, err
	}

	s.logEvent(ctx, day, EventSchedulePropagated, payload)
	return res, nil
}

func (s *Service) logEvent(ctx context.Context, day *Day, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType:      eventType,
		PractitionerID: day.PractitionerID,
		LocationID:     day.LocationID,
		Date:           day.Date,
		Payload:        data,
		CreatedAt:      time.Now(),
	}

	if err := s.events.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event", eventType).
			Str("practitioner_id", day.PractitionerID).
			Str("location_id", day.LocationID).
			Msg("failed to insert event log")
	}
}
