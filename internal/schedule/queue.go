package schedule

import (
	"iter"

	"github.com/google/uuid"
)

// QueueEntry is one booked or emergency slot together with its session.
type QueueEntry struct {
	SessionID    uuid.UUID `json:"session_id"`
	SessionStart TimeOfDay `json:"session_start"`
	SessionEnd   TimeOfDay `json:"session_end"`
	Slot         Slot      `json:"slot"`
}

// queuePriority orders the waiting queue; lower goes first.
var queuePriority = []SlotStatus{SlotEmergency, SlotBooked}

// WaitingQueue yields every Emergency slot, then every Booked slot, each group
// in session-then-slot order. The sequence reads the day lazily and can be
// ranged over any number of times.
func (d *Day) WaitingQueue() iter.Seq[QueueEntry] {
	return func(yield func(QueueEntry) bool) {
		for _, status := range queuePriority {
			for _, s := range d.sessions {
				for _, sl := range s.Slots {
					if sl.Status != status {
						continue
					}
					e := QueueEntry{SessionID: s.ID, SessionStart: s.Start, SessionEnd: s.End, Slot: sl}
					if !yield(e) {
						return
					}
				}
			}
		}
	}
}
