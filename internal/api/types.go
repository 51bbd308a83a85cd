package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-schedule/internal/schedule"
)

type SessionRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type BookingRequest struct {
	Status        string `json:"status"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

type SessionResponse struct {
	ID        uuid.UUID          `json:"id"`
	Start     schedule.TimeOfDay `json:"start"`
	End       schedule.TimeOfDay `json:"end"`
	State     string             `json:"state"`
	Finalized bool               `json:"finalized"`
	Slots     []schedule.Slot    `json:"slots"`
}

type DayResponse struct {
	PractitionerID string            `json:"practitioner_id"`
	LocationID     string            `json:"location_id"`
	Date           string            `json:"date"`
	Granularity    int               `json:"granularity_minutes"`
	WindowEnd      string            `json:"window_end"`
	Sessions       []SessionResponse `json:"sessions"`
	Stats          schedule.Stats    `json:"stats"`
}

type PropagationResponse struct {
	Anchor     string   `json:"anchor"`
	WindowEnd  string   `json:"window_end"`
	Complete   bool     `json:"complete"`
	Succeeded  []string `json:"succeeded_dates"`
	SavedUntil string   `json:"saved_through,omitempty"`
	FailedDate string   `json:"failed_date,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type QueueResponse struct {
	Date    string                `json:"date"`
	Entries []schedule.QueueEntry `json:"entries"`
}

type WindowResponse struct {
	Anchor string   `json:"anchor"`
	Dates  []string `json:"dates"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSessionResponse(s *schedule.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Start:     s.Start,
		End:       s.End,
		State:     string(s.State),
		Finalized: s.Finalized(),
		Slots:     s.Slots,
	}
}

func toDayResponse(d *schedule.Day) DayResponse {
	sessions := d.Sessions()
	resp := DayResponse{
		PractitionerID: d.PractitionerID,
		LocationID:     d.LocationID,
		Date:           schedule.FormatDate(d.Date),
		Granularity:    d.Granularity,
		WindowEnd:      schedule.FormatDate(schedule.WindowEnd(d.Date)),
		Sessions:       make([]SessionResponse, 0, len(sessions)),
		Stats:          d.Stats(),
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	return resp
}

func toPropagationResponse(res *schedule.PropagationResult, err error) PropagationResponse {
	resp := PropagationResponse{
		Anchor:    schedule.FormatDate(res.Anchor),
		WindowEnd: schedule.FormatDate(schedule.WindowEnd(res.Anchor)),
		Complete:  err == nil && res.Complete(),
		Succeeded: formatDates(res.Succeeded),
	}
	if last, ok := res.SavedThrough(); ok {
		resp.SavedUntil = schedule.FormatDate(last)
	}
	if res.FailedDate != nil {
		resp.FailedDate = schedule.FormatDate(*res.FailedDate)
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = schedule.FormatDate(d)
	}
	return out
}
