package schedule

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps schedule days in process. Stored and returned
// sessions are deep copies, so callers never share state with the store.
type MemoryRepository struct {
	mu     sync.RWMutex
	days   map[DayKey][]*Session
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{days: make(map[DayKey][]*Session)}
}

func memoryKey(practitionerID, locationID string, date time.Time) DayKey {
	return DayKey{PractitionerID: practitionerID, LocationID: locationID, Date: DateOf(date)}
}

func (m *MemoryRepository) Load(_ context.Context, practitionerID, locationID string, date time.Time) (*Day, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions, ok := m.days[memoryKey(practitionerID, locationID, date)]
	if !ok {
		return nil, ErrDayNotFound
	}
	return RestoreDay(practitionerID, locationID, date, CloneSessions(sessions)), nil
}

func (m *MemoryRepository) Save(_ context.Context, practitionerID, locationID string, date time.Time, sessions []*Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.days[memoryKey(practitionerID, locationID, date)] = CloneSessions(sessions)
	return nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded events in insertion order.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}
