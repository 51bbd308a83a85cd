package schedule

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSessionLocked        = errors.New("session is finalized and cannot be edited")
	ErrSessionNotFound      = errors.New("session not found")
	ErrConfirmationRequired = errors.New("deleting a finalized session requires confirmation")
)

type SessionState string

const (
	SessionDraft     SessionState = "draft"
	SessionFinalized SessionState = "finalized"
	SessionDeleted   SessionState = "deleted"
)

// Session is a contiguous block of working hours and the slots derived from it.
type Session struct {
	ID    uuid.UUID    `json:"id"`
	Start TimeOfDay    `json:"start"`
	End   TimeOfDay    `json:"end"`
	State SessionState `json:"state"`
	Slots []Slot       `json:"slots"`
}

func newSession(r TimeRange, granularity int) (*Session, error) {
	slots, err := Partition(r.Start, r.End, granularity)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:    uuid.New(),
		Start: r.Start,
		End:   r.End,
		State: SessionDraft,
		Slots: slots,
	}, nil
}

func (s *Session) Range() TimeRange {
	return TimeRange{Start: s.Start, End: s.End}
}

func (s *Session) Finalized() bool {
	return s.State == SessionFinalized
}

// Finalize locks the session. Finalizing twice is a no-op.
func (s *Session) Finalize() {
	if s.State == SessionDraft {
		s.State = SessionFinalized
	}
}

// regenerate replaces the whole slot sequence for a new range. Bookings held
// by the old slots are discarded with them.
func (s *Session) regenerate(r TimeRange, granularity int) error {
	if s.State != SessionDraft {
		return ErrSessionLocked
	}
	slots, err := Partition(r.Start, r.End, granularity)
	if err != nil {
		return err
	}
	s.Start, s.End = r.Start, r.End
	s.Slots = slots
	return nil
}

func (s *Session) slotIndex(id uuid.UUID) int {
	for i := range s.Slots {
		if s.Slots[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) clone() *Session {
	c := *s
	c.Slots = make([]Slot, len(s.Slots))
	for i, sl := range s.Slots {
		if sl.AppointmentID != nil {
			id := *sl.AppointmentID
			sl.AppointmentID = &id
		}
		c.Slots[i] = sl
	}
	return &c
}

// withoutBookings copies sessions with every Booked or Emergency slot back to
// Available. An appointment belongs to one date only.
func withoutBookings(sessions []*Session) []*Session {
	out := CloneSessions(sessions)
	for _, s := range out {
		for i := range s.Slots {
			if s.Slots[i].Status.carriesAppointment() {
				s.Slots[i].Status = SlotAvailable
				s.Slots[i].AppointmentID = nil
			}
		}
	}
	return out
}

// CloneSessions deep-copies a session set so the copy can be stored or
// mutated independently.
func CloneSessions(sessions []*Session) []*Session {
	out := make([]*Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.clone()
	}
	return out
}
