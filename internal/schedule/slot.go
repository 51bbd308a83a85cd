package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBreak     SlotStatus = "break"
	SlotEmergency SlotStatus = "emergency"
)

// Valid reports whether s is one of the known statuses.
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotBreak, SlotEmergency:
		return true
	}
	return false
}

// carriesAppointment reports whether a slot in this status must reference an appointment.
func (s SlotStatus) carriesAppointment() bool {
	return s == SlotBooked || s == SlotEmergency
}

var ErrInvalidRange = errors.New("invalid time range")

// InvalidRangeError is returned when a range or granularity cannot be partitioned.
type InvalidRangeError struct {
	Range       TimeRange
	Granularity int
	Reason      string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %s (granularity %dm): %s", e.Range, e.Granularity, e.Reason)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// Slot is one fixed-width subdivision of a session. Status and AppointmentID
// change only through the booking callback; everything else is fixed at
// partition time.
type Slot struct {
	ID            uuid.UUID  `json:"id"`
	Start         TimeOfDay  `json:"start"`
	End           TimeOfDay  `json:"end"`
	Status        SlotStatus `json:"status"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

func (s Slot) Range() TimeRange {
	return TimeRange{Start: s.Start, End: s.End}
}

// Partition splits [start, end) into consecutive slots of granularity minutes.
// A trailing interval shorter than one granule is dropped. The slot at index
// floor(n/2) is the break; every other slot starts Available.
func Partition(start, end TimeOfDay, granularity int) ([]Slot, error) {
	r := TimeRange{Start: start, End: end}
	if granularity <= 0 {
		return nil, &InvalidRangeError{Range: r, Granularity: granularity, Reason: "granularity must be positive"}
	}
	if end <= start {
		return nil, &InvalidRangeError{Range: r, Granularity: granularity, Reason: "end must be after start"}
	}

	total := r.Minutes() / granularity
	if total == 0 {
		return nil, &InvalidRangeError{Range: r, Granularity: granularity, Reason: "range is shorter than one slot"}
	}

	breakIdx := total / 2
	slots := make([]Slot, 0, total)
	for i := 0; i < total; i++ {
		from := start.Add(i * granularity)
		status := SlotAvailable
		if i == breakIdx {
			status = SlotBreak
		}
		slots = append(slots, Slot{
			ID:     uuid.New(),
			Start:  from,
			End:    from.Add(granularity),
			Status: status,
		})
	}
	return slots, nil
}
