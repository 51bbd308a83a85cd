package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound   = errors.New("slot not found")
	ErrInvalidBooking = errors.New("invalid booking update")
)

// Day holds the sessions one practitioner works at one location on one date,
// in creation order. No two sessions overlap.
type Day struct {
	PractitionerID string
	LocationID     string
	Date           time.Time
	Granularity    int

	sessions []*Session
}

// NewDay returns an empty day. Granularity is the slot width in minutes.
func NewDay(practitionerID, locationID string, date time.Time, granularity int) *Day {
	return &Day{
		PractitionerID: practitionerID,
		LocationID:     locationID,
		Date:           DateOf(date),
		Granularity:    granularity,
	}
}

// RestoreDay rebuilds a day from stored sessions. Granularity is taken from
// the width of the first stored slot, or left zero when there is none.
func RestoreDay(practitionerID, locationID string, date time.Time, sessions []*Session) *Day {
	d := NewDay(practitionerID, locationID, date, 0)
	d.sessions = sessions
	for _, s := range sessions {
		if len(s.Slots) > 0 {
			d.Granularity = s.Slots[0].Range().Minutes()
			break
		}
	}
	return d
}

// Sessions returns the sessions in creation order. The slice is a copy; the
// sessions are shared.
func (d *Day) Sessions() []*Session {
	out := make([]*Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Session looks a session up by id.
func (d *Day) Session(id uuid.UUID) (*Session, bool) {
	if i := d.indexOf(id); i >= 0 {
		return d.sessions[i], true
	}
	return nil, false
}

func (d *Day) indexOf(id uuid.UUID) int {
	for i, s := range d.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (d *Day) rangesExcept(id uuid.UUID) []TimeRange {
	out := make([]TimeRange, 0, len(d.sessions))
	for _, s := range d.sessions {
		if s.ID != id {
			out = append(out, s.Range())
		}
	}
	return out
}

// AddSession validates r against every existing session, partitions it and
// appends the new draft session.
func (d *Day) AddSession(r TimeRange) (*Session, error) {
	if err := Validate(r, d.rangesExcept(uuid.Nil)); err != nil {
		return nil, err
	}
	s, err := newSession(r, d.Granularity)
	if err != nil {
		return nil, err
	}
	d.sessions = append(d.sessions, s)
	return s, nil
}

// EditSession moves a draft session to r and regenerates its slots. A
// finalized session is rejected before r is even looked at.
func (d *Day) EditSession(id uuid.UUID, r TimeRange) (*Session, error) {
	s, ok := d.Session(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Finalized() {
		return nil, ErrSessionLocked
	}
	if err := Validate(r, d.rangesExcept(id)); err != nil {
		return nil, err
	}
	if err := s.regenerate(r, d.Granularity); err != nil {
		return nil, err
	}
	return s, nil
}

// FinalizeSession locks one session.
func (d *Day) FinalizeSession(id uuid.UUID) (*Session, error) {
	s, ok := d.Session(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Finalize()
	return s, nil
}

// FinalizeAll locks every session and returns how many changed state.
func (d *Day) FinalizeAll() int {
	n := 0
	for _, s := range d.sessions {
		if !s.Finalized() {
			s.Finalize()
			n++
		}
	}
	return n
}

// RemoveSession deletes a session. A missing id is treated as already
// removed. Finalized sessions need confirmed=true; their propagated copies on
// later dates are not touched.
func (d *Day) RemoveSession(id uuid.UUID, confirmed bool) error {
	i := d.indexOf(id)
	if i < 0 {
		return nil
	}
	s := d.sessions[i]
	if s.Finalized() && !confirmed {
		return ErrConfirmationRequired
	}
	s.State = SessionDeleted
	d.sessions = append(d.sessions[:i:i], d.sessions[i+1:]...)
	return nil
}

// MarkSlot applies a booking update coming from the booking subsystem.
// Booked and Emergency require an appointment id; Available clears it.
// Break slots cannot be booked and no slot can be turned into a break.
func (d *Day) MarkSlot(slotID uuid.UUID, status SlotStatus, appointmentID *uuid.UUID) (Slot, error) {
	for _, s := range d.sessions {
		i := s.slotIndex(slotID)
		if i < 0 {
			continue
		}
		slot := &s.Slots[i]
		switch {
		case !status.Valid() || status == SlotBreak:
			return Slot{}, fmt.Errorf("%w: status %q", ErrInvalidBooking, status)
		case slot.Status == SlotBreak:
			return Slot{}, fmt.Errorf("%w: slot %s is a break", ErrInvalidBooking, slotID)
		case status.carriesAppointment() && appointmentID == nil:
			return Slot{}, fmt.Errorf("%w: %s requires an appointment id", ErrInvalidBooking, status)
		}
		slot.Status = status
		slot.AppointmentID = nil
		if status.carriesAppointment() {
			id := *appointmentID
			slot.AppointmentID = &id
		}
		return *slot, nil
	}
	return Slot{}, ErrSlotNotFound
}

type Stats struct {
	Sessions       int `json:"sessions"`
	TotalSlots     int `json:"total_slots"`
	AvailableSlots int `json:"available_slots"`
	WaitingQueue   int `json:"waiting_queue"`
}

// Stats folds over every slot of the day. Nothing is cached.
func (d *Day) Stats() Stats {
	st := Stats{Sessions: len(d.sessions)}
	for _, s := range d.sessions {
		for _, sl := range s.Slots {
			st.TotalSlots++
			switch {
			case sl.Status == SlotAvailable:
				st.AvailableSlots++
			case sl.Status.carriesAppointment():
				st.WaitingQueue++
			}
		}
	}
	return st
}
