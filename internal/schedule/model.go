package schedule

import "time"

const (
	EventSessionFinalized   = "SESSION_FINALIZED"
	EventSessionDeleted     = "SESSION_DELETED"
	EventSchedulePropagated = "SCHEDULE_PROPAGATED"
	EventPropagationFailed  = "PROPAGATION_FAILED"
)

// DayKey identifies one schedule day.
type DayKey struct {
	PractitionerID string
	LocationID     string
	Date           time.Time
}

type EventLog struct {
	ID             int64
	EventType      string
	PractitionerID string
	LocationID     string
	Date           time.Time
	Payload        []byte
	CreatedAt      time.Time
}
