package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/practitioner-schedule/internal/schedule"
)

func dayKeyFromRequest(w http.ResponseWriter, r *http.Request) (schedule.DayKey, bool) {
	date, err := schedule.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return schedule.DayKey{}, false
	}
	return schedule.DayKey{
		PractitionerID: chi.URLParam(r, "practitionerID"),
		LocationID:     chi.URLParam(r, "locationID"),
		Date:           date,
	}, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeRange(w http.ResponseWriter, r *http.Request) (schedule.TimeRange, bool) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return schedule.TimeRange{}, false
	}

	start, err := schedule.ParseTimeOfDay(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
		return schedule.TimeRange{}, false
	}
	end, err := schedule.ParseTimeOfDay(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
		return schedule.TimeRange{}, false
	}
	return schedule.TimeRange{Start: start, End: end}, true
}

func getDayHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}

		day, err := svc.OpenDay(r.Context(), key)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDayResponse(day))
	}
}

func addSessionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}
		rng, ok := decodeRange(w, r)
		if !ok {
			return
		}

		sess, err := svc.AddSession(r.Context(), key, rng)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSessionResponse(sess))
	}
}

func editSessionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "sessionID", "invalid_session_id")
		if !ok {
			return
		}
		rng, ok := decodeRange(w, r)
		if !ok {
			return
		}

		sess, err := svc.EditSession(r.Context(), key, id, rng)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func finalizeSessionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "sessionID", "invalid_session_id")
		if !ok {
			return
		}

		res, err := svc.FinalizeSession(r.Context(), key, id)
		writePropagation(w, res, err)
	}
}

func finalizeDayHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.FinalizeDay(r.Context(), key)
		writePropagation(w, res, err)
	}
}

func propagateHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.Propagate(r.Context(), key)
		writePropagation(w, res, err)
	}
}

func deleteSessionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "sessionID", "invalid_session_id")
		if !ok {
			return
		}

		confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
		if err := svc.DeleteSession(r.Context(), key, id, confirmed); err != nil {
			handleScheduleError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func waitingQueueHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}

		entries, err := svc.WaitingQueue(r.Context(), key)
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		if entries == nil {
			entries = []schedule.QueueEntry{}
		}

		writeJSON(w, http.StatusOK, QueueResponse{Date: schedule.FormatDate(key.Date), Entries: entries})
	}
}

func recordBookingHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := dayKeyFromRequest(w, r)
		if !ok {
			return
		}
		slotID, ok := uuidParam(w, r, "slotID", "invalid_slot_id")
		if !ok {
			return
		}

		var req BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var apptID *uuid.UUID
		if req.AppointmentID != "" {
			id, err := uuid.Parse(req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			apptID = &id
		}

		slot, err := svc.RecordBooking(r.Context(), key, slotID, schedule.SlotStatus(req.Status), apptID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slot)
	}
}

func windowHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := dayKeyFromRequest(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, WindowResponse{
		Anchor: schedule.FormatDate(key.Date),
		Dates:  formatDates(schedule.Window(key.Date)),
	})
}

// writePropagation reports a finalize or propagate outcome. A run that stopped
// part way still returns which dates were saved.
func writePropagation(w http.ResponseWriter, res *schedule.PropagationResult, err error) {
	var perr *schedule.PropagationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toPropagationResponse(res, nil))
	case errors.As(err, &perr) && res != nil:
		writeJSON(w, http.StatusBadGateway, toPropagationResponse(res, err))
	default:
		handleScheduleError(w, err)
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	var rej *schedule.RejectionError
	var inv *schedule.InvalidRangeError
	switch {
	case errors.As(err, &rej) && rej.Reason == schedule.ReasonOverlap:
		writeError(w, http.StatusConflict, "session_overlap", err.Error())
	case errors.As(err, &rej), errors.As(err, &inv):
		writeError(w, http.StatusUnprocessableEntity, "invalid_range", err.Error())
	case errors.Is(err, schedule.ErrSessionLocked):
		writeError(w, http.StatusConflict, "session_locked", err.Error())
	case errors.Is(err, schedule.ErrConfirmationRequired):
		writeError(w, http.StatusConflict, "confirmation_required", err.Error())
	case errors.Is(err, schedule.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", err.Error())
	case errors.Is(err, schedule.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, schedule.ErrDayNotFound):
		writeError(w, http.StatusNotFound, "day_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidBooking):
		writeError(w, http.StatusUnprocessableEntity, "invalid_booking", err.Error())
	case errors.Is(err, schedule.ErrMissingKey):
		writeError(w, http.StatusBadRequest, "missing_key", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
